// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package sqlite

import (
	"context"
	"database/sql"
	"errors"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// SessionStore implements auth.SessionStore on the users.session_id column.
type SessionStore struct {
	db DB
}

// NewSessionStore creates a new SessionStore.
func NewSessionStore(db DB) *SessionStore {
	return &SessionStore{db: db}
}

// Get returns the ID of the user whose session_id is token.
func (s *SessionStore) Get(ctx context.Context, token string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx, `SELECT id FROM users WHERE session_id = ?`, token).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("SESSION_GET_FAILED").Wrap(err)
	}
	return id, nil
}

// Set overwrites the user's session_id.
func (s *SessionStore) Set(ctx context.Context, token string, userID int64) error {
	result, err := s.db.ExecContext(ctx, `
		UPDATE users SET session_id = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, token, userID)
	if err != nil {
		return oops.Code("SESSION_SET_FAILED").With("user_id", userID).Wrap(err)
	}
	return requireRow(result, userID)
}

// Delete clears the user's session_id. Zero affected rows is not an error.
func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE users SET session_id = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE id = ? AND session_id IS NOT NULL
	`, userID); err != nil {
		return oops.Code("SESSION_DELETE_FAILED").With("user_id", userID).Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
