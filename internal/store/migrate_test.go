// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/pkg/errutil"
)

func TestNewMigrator_InvalidURL(t *testing.T) {
	_, err := NewMigrator(DriverPostgres, "invalid://url")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
}

// postgresql:// must be rewritten to pgx5://; otherwise golang-migrate
// reports an unknown driver instead of a connection failure.
func TestNewMigrator_PostgresqlScheme(t *testing.T) {
	_, err := NewMigrator(DriverPostgres, "postgresql://localhost:1/testdb?connect_timeout=1")
	require.Error(t, err, "should fail due to connection, not URL scheme")
	errutil.AssertErrorCode(t, err, "MIGRATION_INIT_FAILED")
	assert.NotContains(t, err.Error(), "unknown driver")
}

func TestNewMigrator_MemoryDriverHasNoSchema(t *testing.T) {
	_, err := NewMigrator(DriverMemory, "")
	require.Error(t, err)
	errutil.AssertErrorCode(t, err, "MIGRATION_UNSUPPORTED")
}

func TestNewMigrator_SQLiteFullCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "auth.db")

	migrator, err := NewMigrator(DriverSQLite, path)
	require.NoError(t, err)
	defer func() { _ = migrator.Close() }()

	version, dirty, err := migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
	assert.False(t, dirty)

	require.NoError(t, migrator.Up())
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(1), version)

	pending, err := migrator.PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	require.NoError(t, migrator.Down())
	version, _, err = migrator.Version()
	require.NoError(t, err)
	assert.Equal(t, uint(0), version)
}

func TestMigrateURL(t *testing.T) {
	tests := []struct {
		driver Driver
		in     string
		want   string
	}{
		{DriverPostgres, "postgres://u:p@h/db", "pgx5://u:p@h/db"},
		{DriverPostgres, "postgresql://u:p@h/db", "pgx5://u:p@h/db"},
		{DriverPostgres, "pgx5://u:p@h/db", "pgx5://u:p@h/db"},
		{DriverSQLite, "/var/lib/auth.db", "sqlite3:///var/lib/auth.db"},
		{DriverSQLite, "file:auth.db", "sqlite3://auth.db"},
		{DriverSQLite, "sqlite3://auth.db", "sqlite3://auth.db"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, migrateURL(tt.driver, tt.in))
		})
	}
}

// stubMigrate returns canned results in place of golang-migrate.
type stubMigrate struct {
	err        error
	version    uint
	dirty      bool
	versionErr error
	srcErr     error
	dbErr      error
	closed     bool
}

var errClosed = errors.New("migrate: closed")

func (s *stubMigrate) result() error {
	if s.closed {
		return errClosed
	}
	return s.err
}

func (s *stubMigrate) Up() error         { return s.result() }
func (s *stubMigrate) Down() error       { return s.result() }
func (s *stubMigrate) Force(_ int) error { return s.result() }

func (s *stubMigrate) Version() (uint, bool, error) {
	if s.closed {
		return 0, false, errClosed
	}
	return s.version, s.dirty, s.versionErr
}

func (s *stubMigrate) Close() (error, error) {
	s.closed = true
	return s.srcErr, s.dbErr
}

func sqliteMigrator(stub *stubMigrate) *Migrator {
	return &Migrator{m: stub, dir: "migrations/sqlite"}
}

func TestMigrator_Operations(t *testing.T) {
	failure := errors.New("database is locked")

	tests := []struct {
		name string
		run  func(*Migrator) error
		code string
	}{
		{"up", (*Migrator).Up, "MIGRATION_UP_FAILED"},
		{"down", (*Migrator).Down, "MIGRATION_DOWN_FAILED"},
		{"force", func(m *Migrator) error { return m.Force(1) }, "MIGRATION_FORCE_FAILED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.NoError(t, tt.run(sqliteMigrator(&stubMigrate{})))

			err := tt.run(sqliteMigrator(&stubMigrate{err: failure}))
			errutil.AssertErrorCode(t, err, tt.code)
			assert.ErrorIs(t, err, failure)
		})
	}

	t.Run("no change is success", func(t *testing.T) {
		m := sqliteMigrator(&stubMigrate{err: migrate.ErrNoChange})
		assert.NoError(t, m.Up())
		assert.NoError(t, m.Down())
	})

	t.Run("negative force version", func(t *testing.T) {
		err := sqliteMigrator(&stubMigrate{}).Force(-1)
		errutil.AssertErrorCode(t, err, "INVALID_VERSION")
	})

	t.Run("after close", func(t *testing.T) {
		m := sqliteMigrator(&stubMigrate{})
		require.NoError(t, m.Close())
		assert.Error(t, m.Up())
		_, _, err := m.Version()
		assert.Error(t, err)
		_, err = m.PendingMigrations()
		assert.Error(t, err)
	})
}

func TestMigrator_Version(t *testing.T) {
	tests := []struct {
		name      string
		stub      stubMigrate
		wantVer   uint
		wantDirty bool
	}{
		{"applied", stubMigrate{version: 1}, 1, false},
		{"dirty", stubMigrate{version: 1, dirty: true}, 1, true},
		{"fresh database", stubMigrate{versionErr: migrate.ErrNilVersion}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			version, dirty, err := sqliteMigrator(&tt.stub).Version()
			require.NoError(t, err)
			assert.Equal(t, tt.wantVer, version)
			assert.Equal(t, tt.wantDirty, dirty)
		})
	}

	t.Run("failure", func(t *testing.T) {
		_, _, err := sqliteMigrator(&stubMigrate{versionErr: errors.New("disk I/O error")}).Version()
		errutil.AssertErrorCode(t, err, "MIGRATION_VERSION_FAILED")
	})
}

func TestMigrator_PendingMigrations(t *testing.T) {
	pending, err := sqliteMigrator(&stubMigrate{versionErr: migrate.ErrNilVersion}).PendingMigrations()
	require.NoError(t, err)
	assert.Equal(t, []uint{1}, pending)

	pending, err = sqliteMigrator(&stubMigrate{version: 1}).PendingMigrations()
	require.NoError(t, err)
	assert.Empty(t, pending)

	_, err = sqliteMigrator(&stubMigrate{versionErr: errors.New("disk I/O error")}).PendingMigrations()
	errutil.AssertErrorContext(t, err, "operation", "get pending migrations")
}

func TestMigrator_Close(t *testing.T) {
	src, db := errors.New("source close failed"), errors.New("db close failed")

	tests := []struct {
		name      string
		stub      stubMigrate
		component string
	}{
		{"source", stubMigrate{srcErr: src}, "source"},
		{"database", stubMigrate{dbErr: db}, "database"},
		{"both", stubMigrate{srcErr: src, dbErr: db}, "both"},
	}

	require.NoError(t, sqliteMigrator(&stubMigrate{}).Close())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := sqliteMigrator(&tt.stub).Close()
			errutil.AssertErrorCode(t, err, "MIGRATION_CLOSE_FAILED")
			errutil.AssertErrorContext(t, err, "component", tt.component)
		})
	}
}

func TestAllMigrationVersions_ReturnsCopy(t *testing.T) {
	first, err := allMigrationVersions("migrations/postgres")
	require.NoError(t, err)
	require.NotEmpty(t, first)
	first[0] = 99999

	second, err := allMigrationVersions("migrations/postgres")
	require.NoError(t, err)
	assert.Equal(t, uint(1), second[0])
}
