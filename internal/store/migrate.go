// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"embed"
	"errors"
	"log/slog"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/golang-migrate/migrate/v4"
	// golang-migrate database drivers for the pgx5:// and sqlite3:// schemes.
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/samber/oops"
)

//go:embed migrations/postgres/*.sql migrations/sqlite/*.sql
var migrationsFS embed.FS

const upSuffix = ".up.sql"

// migrationFile is one embedded up migration, e.g. 1 / "000001_create_users".
type migrationFile struct {
	version uint
	name    string
}

// catalogs caches the parsed migration list per embedded directory.
var (
	catalogMu sync.Mutex
	catalogs  = make(map[string][]migrationFile)
)

// migrateIface is the subset of *migrate.Migrate the Migrator drives.
type migrateIface interface {
	Up() error
	Down() error
	Version() (version uint, dirty bool, err error)
	Force(version int) error
	Close() (source error, database error)
}

// Migrator applies the embedded schema of one driver to one database.
type Migrator struct {
	m   migrateIface
	dir string
}

func migrationsDir(driver Driver) (string, error) {
	if !driver.HasSchema() {
		return "", oops.Code("MIGRATION_UNSUPPORTED").
			With("driver", string(driver)).
			Errorf("driver %q has no schema migrations", driver)
	}
	return "migrations/" + string(driver), nil
}

// migrateURL rewrites a connection string into the scheme golang-migrate
// registers for the driver: pgx5:// or sqlite3://.
func migrateURL(driver Driver, databaseURL string) string {
	switch driver {
	case DriverPostgres:
		for _, scheme := range []string{"postgres://", "postgresql://"} {
			if rest, ok := strings.CutPrefix(databaseURL, scheme); ok {
				return "pgx5://" + rest
			}
		}
	case DriverSQLite:
		if strings.HasPrefix(databaseURL, "sqlite3://") {
			return databaseURL
		}
		return "sqlite3://" + strings.TrimPrefix(databaseURL, "file:")
	}
	return databaseURL
}

// NewMigrator opens databaseURL for schema changes.
// PostgreSQL accepts postgres://, postgresql:// or pgx5:// URLs; SQLite
// accepts a bare path, a file: URI or a sqlite3:// URL.
func NewMigrator(driver Driver, databaseURL string) (*Migrator, error) {
	dir, err := migrationsDir(driver)
	if err != nil {
		return nil, err
	}

	source, err := iofs.New(migrationsFS, dir)
	if err != nil {
		return nil, oops.Code("MIGRATION_SOURCE_FAILED").With("dir", dir).Wrap(err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", source, migrateURL(driver, databaseURL))
	if err != nil {
		_ = source.Close() //nolint:errcheck // embedded source; the init error is the one to report
		return nil, oops.Code("MIGRATION_INIT_FAILED").
			With("driver", string(driver)).
			Wrap(err)
	}

	return &Migrator{m: m, dir: dir}, nil
}

// Up applies every pending migration. An up-to-date schema is not an error.
func (m *Migrator) Up() error {
	if err := m.m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_UP_FAILED").With("dir", m.dir).Wrap(err)
	}
	return nil
}

// Down reverts every migration, dropping the users table and its data.
func (m *Migrator) Down() error {
	if err := m.m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return oops.Code("MIGRATION_DOWN_FAILED").With("dir", m.dir).Wrap(err)
	}
	return nil
}

// Version reports the applied version and whether the last migration failed
// midway (dirty). A database that was never migrated is version 0.
func (m *Migrator) Version() (version uint, dirty bool, err error) {
	version, dirty, err = m.m.Version()
	switch {
	case errors.Is(err, migrate.ErrNilVersion):
		return 0, false, nil
	case err != nil:
		return 0, false, oops.Code("MIGRATION_VERSION_FAILED").Wrap(err)
	}
	return version, dirty, nil
}

// Force records version as applied and clears the dirty flag without running
// any SQL. Used after repairing a failed migration by hand.
func (m *Migrator) Force(version int) error {
	if version < 0 {
		return oops.Code("INVALID_VERSION").Errorf("version must be non-negative, got %d", version)
	}
	if err := m.m.Force(version); err != nil {
		return oops.Code("MIGRATION_FORCE_FAILED").With("version", version).Wrap(err)
	}
	return nil
}

// Close releases the source and the database connection.
func (m *Migrator) Close() error {
	srcErr, dbErr := m.m.Close()
	switch {
	case srcErr != nil && dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").
			With("component", "both").
			Errorf("source: %v; database: %v", srcErr, dbErr)
	case srcErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "source").Wrap(srcErr)
	case dbErr != nil:
		return oops.Code("MIGRATION_CLOSE_FAILED").With("component", "database").Wrap(dbErr)
	}
	return nil
}

// PendingMigrations lists, ascending, the versions Up would apply.
func (m *Migrator) PendingMigrations() ([]uint, error) {
	current, _, err := m.Version()
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	all, err := allMigrationVersions(m.dir)
	if err != nil {
		return nil, oops.With("operation", "get pending migrations").Wrap(err)
	}

	var pending []uint
	for _, v := range all {
		if v > current {
			pending = append(pending, v)
		}
	}
	return pending, nil
}

// MigrationName returns the NNNNNN_name of a driver's migration, or "" for a
// version that is not embedded (a forced version, for example).
func MigrationName(driver Driver, version uint) (string, error) {
	dir, err := migrationsDir(driver)
	if err != nil {
		return "", err
	}
	files, err := catalog(dir)
	if err != nil {
		return "", err
	}
	for _, f := range files {
		if f.version == version {
			return f.name, nil
		}
	}
	return "", nil
}

// allMigrationVersions returns the embedded versions in dir, ascending.
// The slice is the caller's to modify.
func allMigrationVersions(dir string) ([]uint, error) {
	files, err := catalog(dir)
	if err != nil {
		return nil, err
	}
	versions := make([]uint, len(files))
	for i, f := range files {
		versions[i] = f.version
	}
	return versions, nil
}

func catalog(dir string) ([]migrationFile, error) {
	catalogMu.Lock()
	defer catalogMu.Unlock()

	if files, ok := catalogs[dir]; ok {
		return files, nil
	}
	files, err := readCatalog(dir)
	if err != nil {
		return nil, err
	}
	catalogs[dir] = files
	return files, nil
}

// readCatalog parses the up migrations in dir. Names not of the form
// NNNNNN_name.up.sql are skipped with a warning; TestMigrationsFS_EmbeddedFiles
// keeps the embedded set well formed.
func readCatalog(dir string) ([]migrationFile, error) {
	entries, err := migrationsFS.ReadDir(dir)
	if err != nil {
		return nil, oops.Code("MIGRATION_LIST_FAILED").With("dir", dir).Wrap(err)
	}

	var files []migrationFile
	for _, entry := range entries {
		name, ok := strings.CutSuffix(entry.Name(), upSuffix)
		if !ok {
			continue
		}
		prefix, _, _ := strings.Cut(name, "_")
		version, err := strconv.ParseUint(prefix, 10, 32)
		if err != nil || len(prefix) != 6 {
			slog.Warn("skipping migration with unexpected file name",
				"dir", dir,
				"filename", entry.Name(),
			)
			continue
		}
		files = append(files, migrationFile{version: uint(version), name: name})
	}

	slices.SortFunc(files, func(a, b migrationFile) int {
		return int(a.version) - int(b.version)
	})
	return files, nil
}
