// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package authn authenticates API requests.
//
// An Authenticator pulls a raw credential from a request and resolves it to a
// user. Two strategies exist: Basic credentials in the Authorization header,
// and a session token in a cookie. One is chosen at startup with New.
package authn

import (
	"context"
	"net/http"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// Strategy names an authentication strategy.
type Strategy string

// Supported strategies.
const (
	StrategyBasic   Strategy = "basic"
	StrategySession Strategy = "session"
)

// DefaultCookieName is the session cookie used when none is configured.
const DefaultCookieName = "session_id"

// Credential is the raw material extracted from a request.
// Basic credentials set Email and Password; session credentials set Token.
type Credential struct {
	Strategy Strategy
	Email    string
	Password string //nolint:gosec // G117: in-memory only, never serialized
	Token    string
}

// Authenticator extracts and resolves request credentials.
type Authenticator interface {
	// RequireAuth reports whether path needs authentication given the excluded paths.
	RequireAuth(path string, excluded []string) bool

	// ExtractCredential returns the request's credential, or false if it carries none.
	ExtractCredential(r *http.Request) (Credential, bool)

	// ResolveUser maps a credential to its user. ok is false when no user matches;
	// err is reserved for storage faults.
	ResolveUser(ctx context.Context, cred Credential) (user *auth.User, ok bool, err error)
}

// UserFinder lists users by email.
type UserFinder interface {
	FindByEmail(ctx context.Context, email string) ([]*auth.User, error)
}

// SessionResolver resolves a session token to its user.
type SessionResolver interface {
	GetUserFromSessionID(ctx context.Context, token string) (*auth.User, bool, error)
}

// Config holds the collaborators each strategy needs.
type Config struct {
	Users      UserFinder
	Hasher     auth.PasswordHasher
	Sessions   SessionResolver
	CookieName string
}

// ParseStrategy returns the Strategy for name.
func ParseStrategy(name string) (Strategy, error) {
	switch s := Strategy(strings.ToLower(strings.TrimSpace(name))); s {
	case StrategyBasic, StrategySession:
		return s, nil
	default:
		return "", oops.Code("AUTH_STRATEGY_INVALID").
			With("strategy", name).
			Errorf("unknown auth strategy %q (expected basic or session)", name)
	}
}

// New builds the Authenticator for strategy.
func New(strategy Strategy, cfg Config) (Authenticator, error) {
	switch strategy {
	case StrategyBasic:
		return NewBasicAuthenticator(cfg.Users, cfg.Hasher)
	case StrategySession:
		return NewSessionAuthenticator(cfg.Sessions, cfg.CookieName)
	default:
		return nil, oops.Code("AUTH_STRATEGY_INVALID").
			With("strategy", string(strategy)).
			Errorf("unknown auth strategy %q", strategy)
	}
}

type userKey struct{}

// WithUser returns a copy of ctx carrying the authenticated user.
func WithUser(ctx context.Context, user *auth.User) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the user placed in ctx by Middleware.
func UserFromContext(ctx context.Context) (*auth.User, bool) {
	user, ok := ctx.Value(userKey{}).(*auth.User)
	return user, ok && user != nil
}
