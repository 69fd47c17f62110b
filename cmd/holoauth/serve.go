// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/samber/oops"
	"github.com/spf13/cobra"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/authn"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/httpapi"
	"github.com/holomush/holoauth/internal/logging"
	"github.com/holomush/holoauth/internal/observability"
)

const shutdownTimeout = 5 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the authentication HTTP server",
		Long: `Start the HTTP server. Configuration is layered: flag defaults,
then the --config file, then environment variables, then flags given
on the command line.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(resolveConfigFile(), cmd.Flags())
			if err != nil {
				return err
			}
			return runServeWithDeps(cmd.Context(), cfg, cmd, nil)
		},
	}

	config.RegisterFlags(cmd.Flags())
	return cmd
}

// runServeWithDeps starts the server with injectable dependencies and blocks
// until a signal, a server failure or ctx cancellation.
// If deps is nil, default implementations are used.
func runServeWithDeps(ctx context.Context, cfg *config.Config, cmd *cobra.Command, deps *ServeDeps) error {
	deps = deps.withDefaults()
	if ctx == nil {
		ctx = context.Background()
	}

	level, err := logging.ParseLevel(cfg.Log.Level)
	if err != nil {
		return oops.Code("CONFIG_INVALID").With("key", "log.level").Wrap(err)
	}
	logger := logging.SetDefault("holoauth", version, cfg.Log.Format, level)

	logger.Info("starting holoauth",
		"http_addr", cfg.HTTP.Addr,
		"driver", cfg.Database.Driver,
		"auth_type", cfg.Auth.Type,
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	storage, err := deps.StorageOpener(ctx, cfg, logger)
	if err != nil {
		return oops.With("operation", "open storage").Wrap(err)
	}
	defer storage.Close()

	var ready atomic.Bool

	var obsServer ObservabilityServer
	var metrics *observability.Metrics
	if cfg.Metrics.Addr != "" {
		obsServer = deps.ObservabilityServerFactory(cfg.Metrics.Addr, ready.Load)
		metrics = obsServer.Metrics()
		obsErrCh, err := obsServer.Start()
		if err != nil {
			return oops.Code("OBSERVABILITY_START_FAILED").With("addr", cfg.Metrics.Addr).Wrap(err)
		}
		go monitorServerErrors(ctx, cancel, obsErrCh, "observability")
	}

	handler, err := buildHandler(cfg, storage, metrics, logger)
	if err != nil {
		stopAll(logger, nil, obsServer)
		return err
	}

	apiServer := deps.HTTPServerFactory(cfg.HTTP.Addr, handler)
	apiErrCh, err := apiServer.Start()
	if err != nil {
		stopAll(logger, nil, obsServer)
		return oops.Code("HTTP_START_FAILED").With("addr", cfg.HTTP.Addr).Wrap(err)
	}
	go monitorServerErrors(ctx, cancel, apiErrCh, "http")

	ready.Store(true)
	cmd.Println("holoauth listening on " + apiServer.Addr())
	logger.Info("holoauth ready", "http_addr", apiServer.Addr())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		logger.Info("received shutdown signal", "signal", sig.String())
	case <-ctx.Done():
		logger.Info("context cancelled, shutting down")
	}

	ready.Store(false)
	stopAll(logger, apiServer, obsServer)
	logger.Info("shutdown complete")
	return nil
}

// buildHandler wires the auth policy, the API authenticator and the router.
func buildHandler(cfg *config.Config, storage *Storage, metrics *observability.Metrics, logger *slog.Logger) (http.Handler, error) {
	hasher := auth.NewArgon2idHasher()

	svc, err := auth.NewService(storage.Users, storage.Sessions, hasher, auth.WithLogger(logger))
	if err != nil {
		return nil, err
	}

	strategy, err := authn.ParseStrategy(cfg.Auth.Type)
	if err != nil {
		return nil, oops.Code("CONFIG_INVALID").With("key", "auth.type").Wrap(err)
	}
	authenticator, err := authn.New(strategy, authn.Config{
		Users:      storage.Users,
		Hasher:     hasher,
		Sessions:   svc,
		CookieName: cfg.Session.Name,
	})
	if err != nil {
		return nil, err
	}

	excluded := cfg.Auth.ExcludedPaths
	if len(excluded) == 0 {
		excluded = config.DefaultExcludedPaths
	}

	h, err := httpapi.NewRouter(httpapi.Config{
		Service:       svc,
		Authenticator: authenticator,
		ExcludedPaths: excluded,
		CookieName:    cfg.Session.Name,
		Logger:        logger,
		Metrics:       metrics,
	})
	if err != nil {
		return nil, err
	}
	return h, nil
}

// stopAll stops whichever servers were started.
func stopAll(logger *slog.Logger, api Server, obs ObservabilityServer) {
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	if api != nil {
		if err := api.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping http server", "error", err)
		}
	}
	if obs != nil {
		if err := obs.Stop(shutdownCtx); err != nil {
			logger.Warn("error stopping observability server", "error", err)
		}
	}
}

// monitorServerErrors cancels ctx when a server fails. It exits when the
// channel closes or ctx is done.
func monitorServerErrors(ctx context.Context, cancel context.CancelFunc, errCh <-chan error, serverName string) {
	select {
	case err, ok := <-errCh:
		if !ok {
			return
		}
		if err != nil {
			slog.Error("server error, triggering shutdown",
				"server", serverName,
				"error", err,
			)
			cancel()
		}
	case <-ctx.Done():
	}
}
