// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package observability serves Prometheus metrics and health probes on a
// listener separate from the API.
package observability

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/samber/oops"

	"github.com/holomush/holoauth/internal/httputil"
)

// Probe paths.
const (
	MetricsPath   = "/metrics"
	LivenessPath  = "/healthz/liveness"
	ReadinessPath = "/healthz/readiness"
)

// ReadinessChecker reports whether holoauth can serve requests.
type ReadinessChecker func() bool

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger for lifecycle events. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Server) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithBuildInfo exports holoauth_build_info{version} with value 1.
func WithBuildInfo(version string) Option {
	return func(s *Server) {
		s.version = version
	}
}

// Server exposes /metrics and the health probes.
type Server struct {
	addr     string
	registry *prometheus.Registry
	metrics  *Metrics
	isReady  ReadinessChecker
	logger   *slog.Logger
	version  string

	listener   net.Listener
	httpServer *http.Server
	running    atomic.Bool
}

type probeResponse struct {
	Status string `json:"status"`
}

// NewServer creates a server for addr ("host:port"). A nil readiness checker
// always reports ready.
func NewServer(addr string, isReady ReadinessChecker, opts ...Option) *Server {
	s := &Server{
		addr:     addr,
		registry: prometheus.NewRegistry(),
		isReady:  isReady,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	s.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if s.version != "" {
		buildInfo := prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "holoauth_build_info",
			Help:        "Build information of the running holoauth binary",
			ConstLabels: prometheus.Labels{"version": s.version},
		})
		buildInfo.Set(1)
		s.registry.MustRegister(buildInfo)
	}
	s.metrics = NewMetrics(s.registry)

	return s
}

// Metrics returns the application metrics registered on this server.
func (s *Server) Metrics() *Metrics {
	return s.metrics
}

// Handler returns the probe and metrics routes.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.Handle(MetricsPath, promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})).Methods(http.MethodGet)
	r.HandleFunc(LivenessPath, s.handleLiveness).Methods(http.MethodGet)
	r.HandleFunc(ReadinessPath, s.handleReadiness).Methods(http.MethodGet)
	return r
}

// Start binds the listener and serves in the background. The returned channel
// receives a serve failure and is closed when the server stops.
func (s *Server) Start() (<-chan error, error) {
	if !s.running.CompareAndSwap(false, true) {
		return nil, oops.Code("OBSERVABILITY_RUNNING").Errorf("observability server already running")
	}

	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		s.running.Store(false)
		return nil, oops.Code("OBSERVABILITY_LISTEN_FAILED").With("addr", s.addr).Wrap(err)
	}
	s.listener = listener
	s.httpServer = &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	srv := s.httpServer
	go func() {
		defer close(errCh)
		if serveErr := srv.Serve(listener); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			s.logger.Error("observability server error", "error", serveErr)
			errCh <- serveErr
		}
	}()

	s.logger.Info("observability server started", "addr", listener.Addr().String())
	return errCh, nil
}

// Stop gracefully shuts the server down. Stopping an idle server is a no-op.
func (s *Server) Stop(ctx context.Context) error {
	if !s.running.CompareAndSwap(true, false) {
		return nil
	}

	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.running.Store(true)
		return oops.Code("OBSERVABILITY_SHUTDOWN_FAILED").With("addr", s.Addr()).Wrap(err)
	}

	s.logger.Info("observability server stopped")
	return nil
}

// Addr returns the bound address, or "" before Start.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

func (s *Server) handleLiveness(w http.ResponseWriter, _ *http.Request) {
	//nolint:errcheck // probe clients may disconnect
	httputil.WriteJSON(w, http.StatusOK, probeResponse{Status: "ok"})
}

// handleReadiness reports 503 until storage is open and the API listener is bound.
func (s *Server) handleReadiness(w http.ResponseWriter, _ *http.Request) {
	if s.isReady != nil && !s.isReady() {
		//nolint:errcheck // probe clients may disconnect
		httputil.WriteJSON(w, http.StatusServiceUnavailable, probeResponse{Status: "not ready"})
		return
	}
	//nolint:errcheck // probe clients may disconnect
	httputil.WriteJSON(w, http.StatusOK, probeResponse{Status: "ready"})
}
