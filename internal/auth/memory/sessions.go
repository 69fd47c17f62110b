// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package memory

import (
	"context"
	"sync"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// SessionStore implements auth.SessionStore with process-local maps.
// It can be paired with any UserRepository.
type SessionStore struct {
	mu      sync.RWMutex
	byToken map[string]int64
	byUser  map[int64]string
}

// NewSessionStore creates an empty store.
func NewSessionStore() *SessionStore {
	return &SessionStore{
		byToken: make(map[string]int64),
		byUser:  make(map[int64]string),
	}
}

// Get returns the user bound to token.
func (s *SessionStore) Get(_ context.Context, token string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	userID, ok := s.byToken[token]
	if !ok {
		return 0, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return userID, nil
}

// Set binds token to userID and drops the user's previous token.
func (s *SessionStore) Set(_ context.Context, token string, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[userID]; ok {
		delete(s.byToken, old)
	}
	s.byToken[token] = userID
	s.byUser[userID] = token
	return nil
}

// Delete removes the user's binding.
func (s *SessionStore) Delete(_ context.Context, userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if old, ok := s.byUser[userID]; ok {
		delete(s.byToken, old)
		delete(s.byUser, userID)
	}
	return nil
}

// Len returns the number of live sessions.
func (s *SessionStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byToken)
}

var _ auth.SessionStore = (*SessionStore)(nil)
