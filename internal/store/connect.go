// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package store

import (
	"context"
	"database/sql"
	"log/slog"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	// Register the sqlite3 database/sql driver.
	_ "github.com/mattn/go-sqlite3"
	"github.com/samber/oops"
	"github.com/sethvargo/go-retry"
)

// Connection retry defaults. The database often starts alongside the service.
const (
	defaultConnectAttempts = 5
	defaultConnectBackoff  = 200 * time.Millisecond
)

// pinger is the part of a pool needed to check connectivity.
type pinger interface {
	Ping(ctx context.Context) error
}

// waitForDatabase pings db with exponential backoff until it answers,
// the attempts run out, or ctx is done.
func waitForDatabase(ctx context.Context, db pinger, attempts uint64, base time.Duration, logger *slog.Logger) error {
	backoff := retry.WithMaxRetries(attempts, retry.NewExponential(base))
	attempt := 0
	//nolint:wrapcheck // retry.Do returns the last ping error, wrapped by the caller
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		if err := db.Ping(ctx); err != nil {
			logger.WarnContext(ctx, "database not ready", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		return nil
	})
}

// ConnectPostgres opens a pgx pool and waits for the server to accept connections.
func ConnectPostgres(ctx context.Context, databaseURL string, logger *slog.Logger) (*pgxpool.Pool, error) {
	if databaseURL == "" {
		return nil, oops.Code("DB_CONNECT_FAILED").Errorf("database URL is required")
	}

	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "create pool").Wrap(err)
	}

	if err := waitForDatabase(ctx, pool, defaultConnectAttempts, defaultConnectBackoff, logger); err != nil {
		pool.Close()
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").Wrap(err)
	}
	return pool, nil
}

// sqlPinger adapts *sql.DB to pinger.
type sqlPinger struct{ db *sql.DB }

func (p sqlPinger) Ping(ctx context.Context) error { return p.db.PingContext(ctx) } //nolint:wrapcheck // passthrough

// OpenSQLite opens the SQLite database at path, creating the file if needed.
// SQLite serializes writers, so the pool is limited to one connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if path == "" {
		return nil, oops.Code("DB_CONNECT_FAILED").Errorf("database path is required")
	}

	db, err := sql.Open("sqlite3", sqliteDSN(path))
	if err != nil {
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "open sqlite").Wrap(err)
	}
	db.SetMaxOpenConns(1)

	if err := (sqlPinger{db}).Ping(ctx); err != nil {
		_ = db.Close() //nolint:errcheck // ping error takes precedence
		return nil, oops.Code("DB_CONNECT_FAILED").With("operation", "ping").With("path", path).Wrap(err)
	}
	return db, nil
}

// sqliteDSN strips a sqlite3:// scheme and enables a busy timeout.
func sqliteDSN(path string) string {
	dsn := strings.TrimPrefix(path, "sqlite3://")
	if strings.Contains(dsn, "_busy_timeout") {
		return dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	return dsn + sep + "_busy_timeout=5000"
}
