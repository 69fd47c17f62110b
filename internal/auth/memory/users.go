// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package memory provides in-process implementations of the auth storage interfaces.
// Data does not survive a restart.
package memory

import (
	"context"
	"sync"
	"time"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// UserRepository implements auth.UserRepository and auth.SessionStore over maps.
// Session tokens live on the user record, as they do in the SQL backends.
type UserRepository struct {
	mu      sync.RWMutex
	nextID  int64
	byID    map[int64]*auth.User
	byEmail map[string]int64
}

// NewUserRepository creates an empty repository.
func NewUserRepository() *UserRepository {
	return &UserRepository{
		byID:    make(map[int64]*auth.User),
		byEmail: make(map[string]int64),
	}
}

// Create stores a new user and assigns its ID.
func (r *UserRepository) Create(_ context.Context, user *auth.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, taken := r.byEmail[user.Email]; taken {
		return oops.Code("USER_ALREADY_EXISTS").
			With("email", user.Email).
			Wrap(auth.ErrAlreadyExists)
	}

	r.nextID++
	user.ID = r.nextID
	stored := *user
	r.byID[user.ID] = &stored
	r.byEmail[user.Email] = user.ID
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(_ context.Context, id int64) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	user, ok := r.byID[id]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return copyUser(user), nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(_ context.Context, email string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.byEmail[email]
	if !ok {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	return copyUser(r.byID[id]), nil
}

// FindByEmail returns the user with the email, if any.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) ([]*auth.User, error) {
	user, err := r.GetByEmail(ctx, email)
	if err != nil {
		return []*auth.User{}, nil //nolint:nilerr // a miss is an empty result
	}
	return []*auth.User{user}, nil
}

// GetByResetToken retrieves the user holding token.
func (r *UserRepository) GetByResetToken(_ context.Context, token string) (*auth.User, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user := r.findLocked(func(u *auth.User) bool { return equalsPtr(u.ResetToken, token) }); user != nil {
		return copyUser(user), nil
	}
	return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// SetResetToken stores a reset token for the user.
func (r *UserRepository) SetResetToken(_ context.Context, id int64, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[id]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	user.ResetToken = &token
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// ConsumeResetToken replaces the password hash and clears the token under one lock.
func (r *UserRepository) ConsumeResetToken(_ context.Context, token, hashedPassword string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user := r.findLocked(func(u *auth.User) bool { return equalsPtr(u.ResetToken, token) })
	if user == nil {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	user.HashedPassword = hashedPassword
	user.ResetToken = nil
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Get returns the user whose session token is token.
func (r *UserRepository) Get(_ context.Context, token string) (int64, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if user := r.findLocked(func(u *auth.User) bool { return equalsPtr(u.SessionID, token) }); user != nil {
		return user.ID, nil
	}
	return 0, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
}

// Set overwrites the user's session token.
func (r *UserRepository) Set(_ context.Context, token string, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	user, ok := r.byID[userID]
	if !ok {
		return oops.Code("USER_NOT_FOUND").With("id", userID).Wrap(auth.ErrNotFound)
	}
	user.SessionID = &token
	user.UpdatedAt = time.Now().UTC()
	return nil
}

// Delete clears the user's session token.
func (r *UserRepository) Delete(_ context.Context, userID int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if user, ok := r.byID[userID]; ok && user.SessionID != nil {
		user.SessionID = nil
		user.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (r *UserRepository) findLocked(match func(*auth.User) bool) *auth.User {
	for _, user := range r.byID {
		if match(user) {
			return user
		}
	}
	return nil
}

func equalsPtr(p *string, s string) bool {
	return p != nil && s != "" && *p == s
}

func copyUser(u *auth.User) *auth.User {
	c := *u
	if u.SessionID != nil {
		s := *u.SessionID
		c.SessionID = &s
	}
	if u.ResetToken != nil {
		s := *u.ResetToken
		c.ResetToken = &s
	}
	return &c
}

var (
	_ auth.UserRepository = (*UserRepository)(nil)
	_ auth.SessionStore   = (*UserRepository)(nil)
)
