// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/auth/postgres"
	"github.com/holomush/holoauth/internal/auth/sqlite"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/store"
	"github.com/holomush/holoauth/internal/xdg"
)

// Session store choices.
const (
	sessionStoreDatabase = "database"
	sessionStoreMemory   = "memory"
)

// Storage is an opened backend.
type Storage struct {
	Users    auth.UserRepository
	Sessions auth.SessionStore
	close    func()
}

// Close releases the backend's connections.
func (s *Storage) Close() {
	if s.close != nil {
		s.close()
	}
}

// openStorage connects the configured driver, applies migrations when asked
// and assembles the session store.
func openStorage(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Storage, error) {
	driver, err := store.ParseDriver(cfg.Database.Driver)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "database.driver").Wrap(err)
	}

	if driver == store.DriverSQLite {
		if dir, ok := sqliteDir(cfg.Database.URL); ok {
			if err := xdg.EnsureDir(dir); err != nil {
				return nil, err
			}
		}
	}

	if driver.HasSchema() && cfg.Database.AutoMigrate {
		if err := runAutoMigrate(driver, cfg.Database.URL, logger); err != nil {
			return nil, err
		}
	}

	s := &Storage{}
	var dbSessions auth.SessionStore

	switch driver {
	case store.DriverPostgres:
		pool, err := store.ConnectPostgres(ctx, cfg.Database.URL, logger)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("driver", string(driver)).Wrap(err)
		}
		s.Users = postgres.NewUserRepository(pool)
		dbSessions = postgres.NewSessionStore(pool)
		s.close = pool.Close
	case store.DriverSQLite:
		db, err := store.OpenSQLite(ctx, cfg.Database.URL)
		if err != nil {
			return nil, oops.Code("DB_CONNECT_FAILED").With("driver", string(driver)).Wrap(err)
		}
		s.Users = sqlite.NewUserRepository(db)
		dbSessions = sqlite.NewSessionStore(db)
		s.close = func() {
			if err := db.Close(); err != nil {
				logger.Warn("error closing sqlite database", "error", err)
			}
		}
	default:
		users := memory.NewUserRepository()
		s.Users = users
		dbSessions = users
	}

	s.Sessions = dbSessions
	if cfg.Session.Store == sessionStoreMemory {
		s.Sessions = memory.NewSessionStore()
	}

	if cfg.Session.CacheSize > 0 {
		cached, err := auth.NewCachedSessionStore(s.Sessions, cfg.Session.CacheSize, cfg.Session.CacheTTL)
		if err != nil {
			s.Close()
			return nil, err
		}
		s.Sessions = cached
	}

	logger.Info("storage ready",
		"driver", string(driver),
		"session_store", cfg.Session.Store,
		"session_cache_size", cfg.Session.CacheSize,
	)
	return s, nil
}

// sqliteDir returns the directory holding a plain SQLite file path.
// URIs and in-memory databases have none.
func sqliteDir(path string) (string, bool) {
	if path == "" || strings.Contains(path, ":") {
		return "", false
	}
	return filepath.Dir(path), true
}

func runAutoMigrate(driver store.Driver, databaseURL string, logger *slog.Logger) error {
	m, err := store.NewMigrator(driver, databaseURL)
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("driver", string(driver)).Wrap(err)
	}
	defer func() {
		if closeErr := m.Close(); closeErr != nil {
			logger.Warn("error closing migrator", "error", closeErr)
		}
	}()

	pending, err := m.PendingMigrations()
	if err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("driver", string(driver)).Wrap(err)
	}
	if len(pending) == 0 {
		logger.Debug("schema up to date", "driver", string(driver))
		return nil
	}

	if err := m.Up(); err != nil {
		return oops.Code("AUTO_MIGRATE_FAILED").With("driver", string(driver)).Wrap(err)
	}
	logger.Info("applied migrations", "driver", string(driver), "count", len(pending))
	return nil
}
