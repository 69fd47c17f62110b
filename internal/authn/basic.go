// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"context"
	"encoding/base64"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
)

const basicPrefix = "Basic "

// BasicAuthenticator authenticates "Authorization: Basic" headers against
// stored password hashes.
type BasicAuthenticator struct {
	pathPolicy
	users  UserFinder
	hasher auth.PasswordHasher
}

// NewBasicAuthenticator creates a BasicAuthenticator.
func NewBasicAuthenticator(users UserFinder, hasher auth.PasswordHasher) (*BasicAuthenticator, error) {
	if users == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("user finder is required")
	}
	if hasher == nil {
		return nil, oops.Code("AUTHENTICATOR_INVALID").Errorf("password hasher is required")
	}
	return &BasicAuthenticator{users: users, hasher: hasher}, nil
}

// ExtractBase64 returns the encoded part of a Basic authorization header.
func ExtractBase64(header string) (string, bool) {
	encoded, ok := strings.CutPrefix(header, basicPrefix)
	if !ok || encoded == "" {
		return "", false
	}
	return encoded, true
}

// DecodeBase64 decodes a Basic payload, which must be valid UTF-8.
func DecodeBase64(encoded string) (string, bool) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil || !utf8.Valid(raw) {
		return "", false
	}
	return string(raw), true
}

// SplitCredentials splits "email:password" at the first colon.
func SplitCredentials(decoded string) (email, password string, ok bool) {
	return strings.Cut(decoded, ":")
}

// ParseBasicAuthorization runs the full header pipeline.
func ParseBasicAuthorization(header string) (email, password string, ok bool) {
	encoded, ok := ExtractBase64(header)
	if !ok {
		return "", "", false
	}
	decoded, ok := DecodeBase64(encoded)
	if !ok {
		return "", "", false
	}
	return SplitCredentials(decoded)
}

// ExtractCredential reads the Authorization header.
func (a *BasicAuthenticator) ExtractCredential(r *http.Request) (Credential, bool) {
	email, password, ok := ParseBasicAuthorization(r.Header.Get("Authorization"))
	if !ok {
		return Credential{}, false
	}
	return Credential{Strategy: StrategyBasic, Email: email, Password: password}, true
}

// ResolveUser returns the first user with the email whose password verifies.
// Unreadable stored hashes are skipped.
func (a *BasicAuthenticator) ResolveUser(ctx context.Context, cred Credential) (*auth.User, bool, error) {
	if cred.Email == "" || cred.Password == "" {
		return nil, false, nil
	}

	candidates, err := a.users.FindByEmail(ctx, cred.Email)
	if err != nil {
		return nil, false, oops.Code("AUTHN_RESOLVE_FAILED").
			With("strategy", string(StrategyBasic)).
			Wrap(err)
	}

	for _, user := range candidates {
		if ok, err := a.hasher.Verify(cred.Password, user.HashedPassword); err == nil && ok {
			return user, true, nil
		}
	}
	return nil, false, nil
}

var _ Authenticator = (*BasicAuthenticator)(nil)
