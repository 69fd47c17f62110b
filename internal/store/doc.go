// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package store opens the configured database and manages its schema.
//
// Schema migrations for each SQL driver are embedded in the binary and applied
// with golang-migrate. The memory driver has no schema.
package store

import (
	"strings"

	"github.com/samber/oops"
)

// Driver names a storage backend.
type Driver string

// Supported drivers.
const (
	DriverPostgres Driver = "postgres"
	DriverSQLite   Driver = "sqlite"
	DriverMemory   Driver = "memory"
)

// ParseDriver returns the Driver for name. "sqlite3" is accepted as an alias.
func ParseDriver(name string) (Driver, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "postgres", "postgresql", "pgx":
		return DriverPostgres, nil
	case "sqlite", "sqlite3":
		return DriverSQLite, nil
	case "memory":
		return DriverMemory, nil
	default:
		return "", oops.Code("DRIVER_INVALID").
			With("driver", name).
			Errorf("unknown database driver %q (expected postgres, sqlite or memory)", name)
	}
}

// HasSchema reports whether the driver uses SQL migrations.
func (d Driver) HasSchema() bool {
	return d == DriverPostgres || d == DriverSQLite
}
