// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httpapi serves the holoauth HTTP interface.
//
// The root routes register users and manage sessions and password resets
// with form-encoded requests. The /api/v1 routes are guarded by the configured
// authn.Authenticator. Trailing slashes are optional on every route.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/samber/oops"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/authn"
	"github.com/holomush/holoauth/internal/httputil"
	"github.com/holomush/holoauth/internal/observability"
)

// AuthService is the authentication policy consumed by the handlers.
type AuthService interface {
	RegisterUser(ctx context.Context, email, password string) (*auth.User, error)
	ValidLogin(ctx context.Context, email, password string) bool
	CreateSession(ctx context.Context, email string) (string, bool, error)
	GetUserFromSessionID(ctx context.Context, token string) (*auth.User, bool, error)
	DestroySession(ctx context.Context, userID int64) error
	GetResetPasswordToken(ctx context.Context, email string) (string, error)
	UpdatePassword(ctx context.Context, resetToken, newPassword string) error
}

// Config holds the router's collaborators.
type Config struct {
	Service       AuthService
	Authenticator authn.Authenticator
	ExcludedPaths []string
	CookieName    string
	Logger        *slog.Logger
	Metrics       *observability.Metrics // optional
}

// slash makes a trailing slash optional.
const slash = "{slash:/?}"

// NewRouter builds the complete HTTP handler.
func NewRouter(cfg Config) (http.Handler, error) {
	if cfg.Service == nil {
		return nil, oops.Code("ROUTER_INVALID").Errorf("auth service is required")
	}
	if cfg.Authenticator == nil {
		return nil, oops.Code("ROUTER_INVALID").Errorf("authenticator is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.CookieName == "" {
		cfg.CookieName = authn.DefaultCookieName
	}

	h := &handlers{
		service:    cfg.Service,
		cookieName: cfg.CookieName,
		logger:     cfg.Logger,
		metrics:    cfg.Metrics,
	}

	r := mux.NewRouter()
	r.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteNotFound(w)
	})
	r.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		httputil.WriteErrorMessage(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	r.Use(metricsMiddleware(cfg.Metrics))

	r.HandleFunc("/", h.index).Methods(http.MethodGet).Name("index")
	r.HandleFunc("/users"+slash, h.register).Methods(http.MethodPost).Name("users")
	r.HandleFunc("/sessions"+slash, h.login).Methods(http.MethodPost).Name("sessions.create")
	r.HandleFunc("/sessions"+slash, h.logout).Methods(http.MethodDelete).Name("sessions.delete")
	r.HandleFunc("/profile"+slash, h.profile).Methods(http.MethodGet).Name("profile")
	r.HandleFunc("/reset_password"+slash, h.resetToken).Methods(http.MethodPost).Name("reset_password.create")
	r.HandleFunc("/reset_password"+slash, h.updatePassword).Methods(http.MethodPut).Name("reset_password.update")

	api := r.PathPrefix("/api/v1").Subrouter()
	api.Use(authn.Middleware(cfg.Authenticator, cfg.ExcludedPaths, cfg.Logger))
	api.HandleFunc("/status"+slash, h.apiStatus).Methods(http.MethodGet).Name("api.status")
	api.HandleFunc("/unauthorized"+slash, h.apiUnauthorized).Methods(http.MethodGet).Name("api.unauthorized")
	api.HandleFunc("/forbidden"+slash, h.apiForbidden).Methods(http.MethodGet).Name("api.forbidden")
	api.HandleFunc("/users/me"+slash, h.apiMe).Methods(http.MethodGet).Name("api.users.me")
	api.HandleFunc("/auth_session/login"+slash, h.apiSessionLogin).Methods(http.MethodPost).Name("api.session.login")
	api.HandleFunc("/auth_session/logout"+slash, h.apiSessionLogout).Methods(http.MethodDelete).Name("api.session.logout")

	var handler http.Handler = r
	handler = loggingMiddleware(cfg.Logger)(handler)
	handler = recoveryMiddleware(cfg.Logger)(handler)
	handler = requestIDMiddleware(handler)
	return otelhttp.NewHandler(handler, "holoauth",
		otelhttp.WithTracerProvider(otel.GetTracerProvider()),
		otelhttp.WithPropagators(otel.GetTextMapPropagator()),
	), nil
}
