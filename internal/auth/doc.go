// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package auth provides the authentication policy for holoauth.
//
// # Domain Types
//
// A User is created with NewUser, which validates the email and requires an
// already-hashed password. Storage assigns the ID on Create.
//
// # Storage
//
// The policy depends on two collaborators:
//   - UserRepository - user records, reset tokens
//   - SessionStore - the single session token bound to each user
//
// Implementations live in the postgres, sqlite and memory subpackages.
// Storage enforces email uniqueness and performs the reset-token consume as
// one conditional update; the Service relies on both.
//
// # Results
//
// Expected misses (unknown login, unknown session) are reported as false
// results. Business failures wrap ErrAlreadyExists, ErrUnknownUser or
// ErrInvalidToken and carry an oops code. Anything else is a storage fault.
package auth
