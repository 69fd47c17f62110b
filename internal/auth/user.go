// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"strings"
	"time"

	"github.com/samber/oops"
)

// MaxEmailLength bounds the stored email address.
const MaxEmailLength = 254

// User represents a registered account.
type User struct {
	ID             int64
	Email          string
	HashedPassword string
	SessionID      *string
	ResetToken     *string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// NewUser creates a User ready to be persisted. The ID is assigned by storage.
func NewUser(email, hashedPassword string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if hashedPassword == "" {
		return nil, oops.Code("AUTH_INVALID_PASSWORD").Errorf("password hash cannot be empty")
	}

	now := time.Now().UTC()
	return &User{
		Email:          email,
		HashedPassword: hashedPassword,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// HasSession reports whether the user has a live session token.
func (u *User) HasSession() bool {
	return u.SessionID != nil && *u.SessionID != ""
}

// HasPendingReset reports whether a password reset is outstanding.
func (u *User) HasPendingReset() bool {
	return u.ResetToken != nil && *u.ResetToken != ""
}

// ValidateEmail performs the minimal checks needed before an email becomes an identity.
// Format validation beyond that is left to the caller's confirmation flow.
func ValidateEmail(email string) error {
	if strings.TrimSpace(email) == "" {
		return oops.Code("AUTH_INVALID_INPUT").Errorf("email cannot be empty")
	}
	if len(email) > MaxEmailLength {
		return oops.Code("AUTH_INVALID_INPUT").
			With("max", MaxEmailLength).
			Errorf("email must be at most %d characters", MaxEmailLength)
	}
	return nil
}

// UserRepository manages user persistence.
type UserRepository interface {
	// Create stores a new user and sets its ID.
	// Returns ErrAlreadyExists if the email is taken.
	Create(ctx context.Context, user *User) error

	// GetByID retrieves a user by ID.
	GetByID(ctx context.Context, id int64) (*User, error)

	// GetByEmail retrieves a user by email.
	// Returns ErrNotFound if no user has the given email.
	GetByEmail(ctx context.Context, email string) (*User, error)

	// FindByEmail returns every user matching the email. Empty slice on no match.
	FindByEmail(ctx context.Context, email string) ([]*User, error)

	// GetByResetToken retrieves the user holding a pending reset token.
	GetByResetToken(ctx context.Context, token string) (*User, error)

	// SetResetToken stores a reset token for the user.
	SetResetToken(ctx context.Context, id int64, token string) error

	// ConsumeResetToken writes the new hash and clears the token in one update.
	// Returns ErrNotFound if no user holds the token.
	ConsumeResetToken(ctx context.Context, token, hashedPassword string) error
}
