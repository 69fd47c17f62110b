// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// SessionStore implements auth.SessionStore on the users.session_id column.
// Overwriting the column is what limits each user to one session.
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
	err := s.db.QueryRow(ctx, `SELECT id FROM users WHERE session_id = $1`, token).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, oops.Code("SESSION_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return 0, oops.Code("SESSION_GET_FAILED").
			With("operation", "get user by session id").
			Wrap(err)
	}
	return id, nil
}

// Set overwrites the user's session_id.
func (s *SessionStore) Set(ctx context.Context, token string, userID int64) error {
	result, err := s.db.Exec(ctx, `
		UPDATE users SET session_id = $2, updated_at = now()
		WHERE id = $1
	`, userID, token)
	if err != nil {
		return oops.Code("SESSION_SET_FAILED").
			With("operation", "update session id").
			With("user_id", userID).
			Wrap(err)
	}
	if result.RowsAffected() == 0 {
		return oops.Code("USER_NOT_FOUND").
			With("user_id", userID).
			Wrap(auth.ErrNotFound)
	}
	return nil
}

// Delete clears the user's session_id. Zero affected rows is not an error.
func (s *SessionStore) Delete(ctx context.Context, userID int64) error {
	_, err := s.db.Exec(ctx, `
		UPDATE users SET session_id = NULL, updated_at = now()
		WHERE id = $1 AND session_id IS NOT NULL
	`, userID)
	if err != nil {
		return oops.Code("SESSION_DELETE_FAILED").
			With("operation", "clear session id").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// Compile-time interface check.
var _ auth.SessionStore = (*SessionStore)(nil)
