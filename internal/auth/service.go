// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"context"
	"errors"
	"log/slog"

	"github.com/samber/oops"
)

// Service implements the authentication policy: registration, login checks,
// the session lifecycle and the password reset lifecycle. It owns no storage.
type Service struct {
	users    UserRepository
	sessions SessionStore
	hasher   PasswordHasher
	tokens   TokenGenerator
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithLogger sets the logger used for faults that are not surfaced to callers.
func WithLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithTokenGenerator overrides the session and reset token source.
func WithTokenGenerator(tokens TokenGenerator) ServiceOption {
	return func(s *Service) {
		s.tokens = tokens
	}
}

// NewService creates a new Service.
func NewService(users UserRepository, sessions SessionStore, hasher PasswordHasher, opts ...ServiceOption) (*Service, error) {
	if users == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("users repository is required")
	}
	if sessions == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("session store is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("password hasher is required")
	}

	s := &Service{
		users:    users,
		sessions: sessions,
		hasher:   hasher,
		tokens:   UUIDTokenGenerator{},
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	if s.tokens == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("token generator is required")
	}
	if s.logger == nil {
		return nil, oops.Code("AUTH_SERVICE_INVALID").Errorf("logger is required")
	}
	return s, nil
}

// dummyPasswordHash is verified when a user doesn't exist so that login timing
// does not reveal which emails are registered. It matches no password.
//
//nolint:gosec // G101: intentionally fake hash, not a credential.
const dummyPasswordHash = "$argon2id$v=19$m=65536,t=1,p=4$AAAAAAAAAAAAAAAAAAAAAA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"

// RegisterUser creates a user with the given credentials.
// Returns an error wrapping ErrAlreadyExists if the email is taken.
func (s *Service) RegisterUser(ctx context.Context, email, password string) (*User, error) {
	if err := ValidateEmail(email); err != nil {
		return nil, err
	}
	if password == "" {
		return nil, oops.Code("AUTH_INVALID_INPUT").Errorf("password cannot be empty")
	}

	// The unique constraint in storage is authoritative; this lookup only
	// avoids hashing for an obvious duplicate.
	_, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		return nil, oops.Code("USER_ALREADY_EXISTS").
			With("email", email).
			Wrap(ErrAlreadyExists)
	case !errors.Is(err, ErrNotFound):
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "hash password").
			Wrap(err)
	}

	user, err := NewUser(email, hash)
	if err != nil {
		return nil, err
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, oops.Code("USER_ALREADY_EXISTS").
				With("email", email).
				Wrap(ErrAlreadyExists)
		}
		return nil, oops.Code("USER_REGISTER_FAILED").
			With("operation", "create user").
			Wrap(err)
	}

	return user, nil
}

// ValidLogin reports whether password is correct for the user with the given email.
// Unknown users and storage faults both yield false.
func (s *Service) ValidLogin(ctx context.Context, email, password string) bool {
	if email == "" || password == "" {
		return false
	}

	target := dummyPasswordHash
	user, err := s.users.GetByEmail(ctx, email)
	switch {
	case err == nil:
		target = user.HashedPassword
	case !errors.Is(err, ErrNotFound):
		s.logger.ErrorContext(ctx, "login lookup failed", "error", err)
		user = nil
	}

	valid, err := s.hasher.Verify(password, target)
	if err != nil {
		if user != nil {
			s.logger.WarnContext(ctx, "stored password hash is unreadable",
				"user_id", user.ID,
				"error", err,
			)
		}
		return false
	}

	return user != nil && valid
}

// CreateSession issues a session token for the user with the given email,
// replacing any session the user already had. ok is false for an unknown email.
func (s *Service) CreateSession(ctx context.Context, email string) (token string, ok bool, err error) {
	token, err = s.tokens.NewToken()
	if err != nil {
		return "", false, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "generate session token").
			Wrap(err)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", false, nil
		}
		return "", false, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	if err := s.sessions.Set(ctx, token, user.ID); err != nil {
		return "", false, oops.Code("SESSION_CREATE_FAILED").
			With("operation", "store session").
			With("user_id", user.ID).
			Wrap(err)
	}

	return token, true, nil
}

// GetUserFromSessionID resolves a session token to its user.
// ok is false for an empty or unknown token.
func (s *Service) GetUserFromSessionID(ctx context.Context, token string) (*User, bool, error) {
	if token == "" {
		return nil, false, nil
	}

	userID, err := s.sessions.Get(ctx, token)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get session").
			Wrap(err)
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, false, nil
		}
		return nil, false, oops.Code("SESSION_VALIDATE_FAILED").
			With("operation", "get user by id").
			With("user_id", userID).
			Wrap(err)
	}

	return user, true, nil
}

// DestroySession ends the user's session. Ending an absent session is a no-op.
func (s *Service) DestroySession(ctx context.Context, userID int64) error {
	if err := s.sessions.Delete(ctx, userID); err != nil {
		return oops.Code("SESSION_DESTROY_FAILED").
			With("operation", "delete session").
			With("user_id", userID).
			Wrap(err)
	}
	return nil
}

// GetResetPasswordToken stores and returns a fresh reset token for the user.
// Returns an error wrapping ErrUnknownUser if no user has the email.
func (s *Service) GetResetPasswordToken(ctx context.Context, email string) (string, error) {
	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", oops.Code("USER_UNKNOWN").
				With("email", email).
				Wrap(ErrUnknownUser)
		}
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "get user by email").
			Wrap(err)
	}

	token, err := s.tokens.NewToken()
	if err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "generate reset token").
			Wrap(err)
	}

	if err := s.users.SetResetToken(ctx, user.ID, token); err != nil {
		return "", oops.Code("RESET_REQUEST_FAILED").
			With("operation", "store reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return token, nil
}

// UpdatePassword sets a new password for the user holding resetToken and
// consumes the token. Returns an error wrapping ErrInvalidToken if no user holds it.
func (s *Service) UpdatePassword(ctx context.Context, resetToken, newPassword string) error {
	if resetToken == "" {
		return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
	}

	user, err := s.users.GetByResetToken(ctx, resetToken)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "get user by reset token").
			Wrap(err)
	}

	hash, err := s.hasher.Hash(newPassword)
	if err != nil {
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "hash password").
			With("user_id", user.ID).
			Wrap(err)
	}

	// The token is matched again inside the update, so a concurrent reset
	// with the same token loses here.
	if err := s.users.ConsumeResetToken(ctx, resetToken, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return oops.Code("RESET_TOKEN_INVALID").Wrap(ErrInvalidToken)
		}
		return oops.Code("RESET_PASSWORD_FAILED").
			With("operation", "consume reset token").
			With("user_id", user.ID).
			Wrap(err)
	}

	return nil
}
