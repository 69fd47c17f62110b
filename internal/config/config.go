// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package config loads holoauth configuration.
//
// Sources are layered, later ones winning: flag defaults, an optional YAML
// file, environment variables, then flags set explicitly on the command line.
package config

import (
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/holomush/holoauth/internal/authn"
	"github.com/holomush/holoauth/internal/logging"
	"github.com/holomush/holoauth/internal/store"
	"github.com/holomush/holoauth/internal/xdg"
)

// Defaults.
const (
	DefaultHTTPAddr     = ":5000"
	DefaultMetricsAddr  = "127.0.0.1:9100"
	DefaultDriver       = "postgres"
	DefaultSessionName  = authn.DefaultCookieName
	DefaultSessionStore = "database"
	DefaultCacheTTL     = time.Minute
	DefaultAuthType     = "session"
	DefaultLogFormat    = "json"
	DefaultLogLevel     = "info"
)

// DefaultExcludedPaths are the API paths served without authentication.
var DefaultExcludedPaths = []string{
	"/api/v1/status/",
	"/api/v1/unauthorized/",
	"/api/v1/forbidden/",
	"/api/v1/auth_session/login/",
}

// Config is the complete service configuration.
type Config struct {
	HTTP     HTTPConfig     `koanf:"http"`
	Metrics  MetricsConfig  `koanf:"metrics"`
	Database DatabaseConfig `koanf:"database"`
	Session  SessionConfig  `koanf:"session"`
	Auth     AuthConfig     `koanf:"auth"`
	Log      LogConfig      `koanf:"log"`
}

// HTTPConfig configures the API listener.
type HTTPConfig struct {
	Addr string `koanf:"addr"`
}

// MetricsConfig configures the observability listener. An empty Addr disables it.
type MetricsConfig struct {
	Addr string `koanf:"addr"`
}

// DatabaseConfig selects and locates the storage backend.
type DatabaseConfig struct {
	Driver      string `koanf:"driver"`
	URL         string `koanf:"url"`
	AutoMigrate bool   `koanf:"auto_migrate"`
}

// SessionConfig configures session storage and the session cookie.
type SessionConfig struct {
	Name      string        `koanf:"name"`
	Store     string        `koanf:"store"`
	CacheSize int           `koanf:"cache_size"`
	CacheTTL  time.Duration `koanf:"cache_ttl"`
}

// AuthConfig configures API request authentication.
type AuthConfig struct {
	Type          string   `koanf:"type"`
	ExcludedPaths []string `koanf:"excluded_paths"`
}

// LogConfig configures logging.
type LogConfig struct {
	Format string `koanf:"format"`
	Level  string `koanf:"level"`
}

// flagKeys maps command-line flag names to configuration keys.
var flagKeys = map[string]string{
	"http-addr":           "http.addr",
	"metrics-addr":        "metrics.addr",
	"database-driver":     "database.driver",
	"database-url":        "database.url",
	"auto-migrate":        "database.auto_migrate",
	"session-name":        "session.name",
	"session-store":       "session.store",
	"session-cache-size":  "session.cache_size",
	"session-cache-ttl":   "session.cache_ttl",
	"auth-type":           "auth.type",
	"auth-excluded-paths": "auth.excluded_paths",
	"log-format":          "log.format",
	"log-level":           "log.level",
}

// envKeys maps environment variables to configuration keys.
var envKeys = map[string]string{
	"HTTP_ADDR":           "http.addr",
	"METRICS_ADDR":        "metrics.addr",
	"DATABASE_DRIVER":     "database.driver",
	"DATABASE_URL":        "database.url",
	"AUTO_MIGRATE":        "database.auto_migrate",
	"SESSION_NAME":        "session.name",
	"SESSION_STORE":       "session.store",
	"SESSION_CACHE_SIZE":  "session.cache_size",
	"SESSION_CACHE_TTL":   "session.cache_ttl",
	"AUTH_TYPE":           "auth.type",
	"AUTH_EXCLUDED_PATHS": "auth.excluded_paths",
	"LOG_FORMAT":          "log.format",
	"LOG_LEVEL":           "log.level",
}

// RegisterFlags adds the configuration flags, with their defaults, to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	fs.String("http-addr", DefaultHTTPAddr, "API listen address")
	fs.String("metrics-addr", DefaultMetricsAddr, "metrics and health listen address (empty disables)")
	fs.String("database-driver", DefaultDriver, "storage driver: postgres, sqlite or memory")
	fs.String("database-url", "", "database URL (postgres) or file path (sqlite, default under XDG_DATA_HOME)")
	fs.Bool("auto-migrate", true, "apply pending migrations on startup")
	fs.String("session-name", DefaultSessionName, "session cookie name")
	fs.String("session-store", DefaultSessionStore, "session storage: database or memory")
	fs.Int("session-cache-size", 0, "in-process session cache entries (0 disables)")
	fs.Duration("session-cache-ttl", DefaultCacheTTL, "session cache entry lifetime")
	fs.String("auth-type", DefaultAuthType, "API authentication: basic or session")
	fs.StringSlice("auth-excluded-paths", DefaultExcludedPaths, "API paths served without authentication")
	fs.String("log-format", DefaultLogFormat, "log format: json or text")
	fs.String("log-level", DefaultLogLevel, "log level: debug, info, warn or error")
}

// Load reads configuration from path (optional), the environment and fs.
// fs must have been populated by RegisterFlags.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	k := koanf.New(".")

	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, oops.Code("CONFIG_LOAD_FAILED").
				With("source", "file").
				With("path", path).
				Wrap(err)
		}
	}

	if err := k.Load(env.ProviderWithValue("", ".", envValue), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "env").Wrap(err)
	}

	// Unchanged flags only fill keys that no earlier source set.
	if err := k.Load(posflag.ProviderWithFlag(fs, ".", k, flagValue(fs)), nil); err != nil {
		return nil, oops.Code("CONFIG_LOAD_FAILED").With("source", "flags").Wrap(err)
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "unmarshal").Wrap(err)
	}

	if err := cfg.applyDefaults(); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// envValue maps a known environment variable to its key. Unknown variables are skipped.
func envValue(name, value string) (string, any) {
	key, ok := envKeys[name]
	if !ok {
		return "", nil
	}
	if key == "auth.excluded_paths" {
		return key, splitList(value)
	}
	return key, value
}

// flagValue renames flags to configuration keys.
func flagValue(fs *pflag.FlagSet) func(*pflag.Flag) (string, any) {
	return func(f *pflag.Flag) (string, any) {
		key, ok := flagKeys[f.Name]
		if !ok {
			return "", nil
		}
		return key, posflag.FlagVal(fs, f)
	}
}

func splitList(value string) []string {
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// applyDefaults fills values that depend on the environment.
func (c *Config) applyDefaults() error {
	driver, err := store.ParseDriver(c.Database.Driver)
	if err != nil {
		return nil //nolint:nilerr // Validate reports it with its key
	}
	if driver == store.DriverSQLite && c.Database.URL == "" {
		path, err := xdg.SQLitePath()
		if err != nil {
			return oops.Code("CONFIG_INVALID").With("key", "database.url").Wrap(err)
		}
		c.Database.URL = path
	}
	return nil
}

// Validate checks the configuration for internal consistency.
func (c *Config) Validate() error {
	if c.HTTP.Addr == "" {
		return oops.Code("CONFIG_INVALID").With("key", "http.addr").Errorf("http address is required")
	}

	driver, err := store.ParseDriver(c.Database.Driver)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "database.driver").Wrap(err)
	}
	if driver != store.DriverMemory && c.Database.URL == "" {
		return oops.Code("CONFIG_INVALID").
			With("key", "database.url").
			Errorf("database url is required for driver %s", driver)
	}

	if _, err := authn.ParseStrategy(c.Auth.Type); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "auth.type").Wrap(err)
	}

	switch c.Session.Store {
	case "database", "memory":
	default:
		return oops.Code("CONFIG_INVALID").
			With("key", "session.store").
			Errorf("session store must be database or memory, got %q", c.Session.Store)
	}
	if c.Session.Name == "" {
		return oops.Code("CONFIG_INVALID").With("key", "session.name").Errorf("session cookie name is required")
	}
	if c.Session.CacheSize < 0 {
		return oops.Code("CONFIG_INVALID").With("key", "session.cache_size").Errorf("cache size cannot be negative")
	}
	if c.Session.CacheSize > 0 && c.Session.CacheTTL <= 0 {
		return oops.Code("CONFIG_INVALID").With("key", "session.cache_ttl").Errorf("cache ttl must be positive")
	}

	if c.Log.Format != "json" && c.Log.Format != "text" {
		return oops.Code("CONFIG_INVALID").
			With("key", "log.format").
			Errorf("log format must be json or text, got %q", c.Log.Format)
	}
	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	return nil
}

// LoadFromArgs registers flags on a fresh set, parses args and loads.
func LoadFromArgs(path string, args []string) (*Config, error) {
	fs := pflag.NewFlagSet("holoauth", pflag.ContinueOnError)
	RegisterFlags(fs)
	if err := fs.Parse(args); err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("operation", "parse flags").Wrap(err)
	}
	return Load(path, fs)
}
