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

const userColumns = `id, email, hashed_password, session_id, reset_token, created_at, updated_at`

// UserRepository implements auth.UserRepository using SQLite.
type UserRepository struct {
	db DB
}

// NewUserRepository creates a new UserRepository.
func NewUserRepository(db DB) *UserRepository {
	return &UserRepository{db: db}
}

// Create stores a new user and sets its ID from the rowid.
func (r *UserRepository) Create(ctx context.Context, user *auth.User) error {
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO users (email, hashed_password, created_at, updated_at)
		VALUES (?, ?, ?, ?)
	`, user.Email, user.HashedPassword, user.CreatedAt, user.UpdatedAt)
	if isUniqueViolation(err) {
		return oops.Code("USER_ALREADY_EXISTS").
			With("email", user.Email).
			Wrap(auth.ErrAlreadyExists)
	}
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "insert user").
			With("email", user.Email).
			Wrap(err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return oops.Code("USER_CREATE_FAILED").
			With("operation", "read inserted id").
			Wrap(err)
	}
	user.ID = id
	return nil
}

// GetByID retrieves a user by ID.
func (r *UserRepository) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	user, err := r.getOne(ctx, `WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_ID_FAILED").With("id", id).Wrap(err)
	}
	return user, nil
}

// GetByEmail retrieves a user by email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	user, err := r.getOne(ctx, `WHERE email = ?`, email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").With("email", email).Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_EMAIL_FAILED").With("email", email).Wrap(err)
	}
	return user, nil
}

// FindByEmail returns every user with the email, oldest first.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) ([]*auth.User, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = ? ORDER BY id`, email)
	if err != nil {
		return nil, oops.Code("USER_FIND_FAILED").With("email", email).Wrap(err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0, 1)
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, oops.Code("USER_FIND_FAILED").With("operation", "scan user").Wrap(err)
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, oops.Code("USER_FIND_FAILED").With("operation", "iterate users").Wrap(err)
	}
	return users, nil
}

// GetByResetToken retrieves the user holding a pending reset token.
func (r *UserRepository) GetByResetToken(ctx context.Context, token string) (*auth.User, error) {
	user, err := r.getOne(ctx, `WHERE reset_token = ?`, token)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	if err != nil {
		return nil, oops.Code("USER_GET_BY_RESET_TOKEN_FAILED").Wrap(err)
	}
	return user, nil
}

// SetResetToken stores token as the user's pending reset token.
func (r *UserRepository) SetResetToken(ctx context.Context, id int64, token string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET reset_token = ?, updated_at = CURRENT_TIMESTAMP
		WHERE id = ?
	`, token, id)
	if err != nil {
		return oops.Code("USER_SET_RESET_TOKEN_FAILED").With("id", id).Wrap(err)
	}
	return requireRow(result, id)
}

// ConsumeResetToken replaces the password of the user holding token and clears
// the token in one statement.
func (r *UserRepository) ConsumeResetToken(ctx context.Context, token, hashedPassword string) error {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET hashed_password = ?, reset_token = NULL, updated_at = CURRENT_TIMESTAMP
		WHERE reset_token = ?
	`, hashedPassword, token)
	if err != nil {
		return oops.Code("USER_CONSUME_RESET_TOKEN_FAILED").Wrap(err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_CONSUME_RESET_TOKEN_FAILED").With("operation", "rows affected").Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").Wrap(auth.ErrNotFound)
	}
	return nil
}

func (r *UserRepository) getOne(ctx context.Context, where string, arg any) (*auth.User, error) {
	return scanUser(r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users `+where, arg))
}

// requireRow maps zero affected rows to a not-found error for user id.
func requireRow(result sql.Result, id int64) error {
	n, err := result.RowsAffected()
	if err != nil {
		return oops.Code("USER_UPDATE_FAILED").With("operation", "rows affected").Wrap(err)
	}
	if n == 0 {
		return oops.Code("USER_NOT_FOUND").With("id", id).Wrap(auth.ErrNotFound)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*auth.User, error) {
	var (
		user              auth.User
		session, resetTok sql.NullString
	)
	if err := row.Scan(
		&user.ID,
		&user.Email,
		&user.HashedPassword,
		&session,
		&resetTok,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, err //nolint:wrapcheck // callers map sql.ErrNoRows
	}
	if session.Valid {
		user.SessionID = &session.String
	}
	if resetTok.Valid {
		user.ResetToken = &resetTok.String
	}
	return &user, nil
}

// Compile-time interface check.
var _ auth.UserRepository = (*UserRepository)(nil)
