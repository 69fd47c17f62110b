// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package auth

import "errors"

// ErrNotFound is returned when a requested entity does not exist.
var ErrNotFound = errors.New("not found")

// ErrAlreadyExists is returned when registering an email that is already taken.
var ErrAlreadyExists = errors.New("already exists")

// ErrUnknownUser is returned when a reset token is requested for an unknown email.
var ErrUnknownUser = errors.New("unknown user")

// ErrInvalidToken is returned when no user holds the presented reset token.
var ErrInvalidToken = errors.New("invalid token")
