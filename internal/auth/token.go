// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import (
	"github.com/google/uuid"
	"github.com/samber/oops"
)

// TokenGenerator produces opaque session and reset tokens.
type TokenGenerator interface {
	NewToken() (string, error)
}

// TokenGeneratorFunc adapts a function to TokenGenerator.
type TokenGeneratorFunc func() (string, error)

// NewToken calls f.
func (f TokenGeneratorFunc) NewToken() (string, error) {
	return f()
}

// UUIDTokenGenerator issues random (version 4) UUIDs drawn from crypto/rand.
type UUIDTokenGenerator struct{}

// NewToken returns a fresh UUID string.
func (UUIDTokenGenerator) NewToken() (string, error) {
	id, err := uuid.NewRandom()
	if err != nil {
		return "", oops.Code("TOKEN_GENERATE_FAILED").Wrap(err)
	}
	return id.String(), nil
}
