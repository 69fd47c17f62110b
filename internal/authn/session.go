// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"context"
	"net/http"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

// SessionAuthenticator authenticates a session token carried in a cookie.
type SessionAuthenticator struct {
	pathPolicy
	sessions   SessionResolver
	cookieName string
}

// NewSessionAuthenticator creates a SessionAuthenticator reading cookieName,
// or DefaultCookieName when empty.
func NewSessionAuthenticator(sessions SessionResolver, cookieName string) (*SessionAuthenticator, error) {
	if sessions == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("session resolver is required")
	}
	if cookieName == "" {
		cookieName = DefaultCookieName
	}
	return &SessionAuthenticator{sessions: sessions, cookieName: cookieName}, nil
}

// CookieName returns the cookie the authenticator reads.
func (a *SessionAuthenticator) CookieName() string {
	return a.cookieName
}

// ExtractCredential reads the session cookie.
func (a *SessionAuthenticator) ExtractCredential(r *http.Request) (Credential, bool) {
	token := SessionCookie(r, a.cookieName)
	if token == "" {
		return Credential{}, false
	}
	return Credential{Strategy: StrategySession, Token: token}, true
}

// ResolveUser resolves the token through the session store.
func (a *SessionAuthenticator) ResolveUser(ctx context.Context, cred Credential) (*auth.User, bool, error) {
	user, ok, err := a.sessions.GetUserFromSessionID(ctx, cred.Token)
	if err != nil {
		return nil, false, oops.Code("AUTHN_RESOLVE_FAILED").
			With("strategy", string(StrategySession)).
			Wrap(err)
	}
	return user, ok, nil
}

// SessionCookie returns the value of the named cookie, or "" if absent.
func SessionCookie(r *http.Request, name string) string {
	cookie, err := r.Cookie(name)
	if err != nil {
		return ""
	}
	return cookie.Value
}

var _ Authenticator = (*SessionAuthenticator)(nil)
