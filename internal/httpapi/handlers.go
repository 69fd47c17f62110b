// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/authn"
	"github.com/holomush/holoauth/internal/httputil"
	"github.com/holomush/holoauth/internal/observability"
	"github.com/holomush/holoauth/pkg/errutil"
)

type handlers struct {
	service    AuthService
	cookieName string
	logger     *slog.Logger
	metrics    *observability.Metrics
}

type messageResponse struct {
	Message string `json:"message"`
}

type emailMessageResponse struct {
	Email   string `json:"email"`
	Message string `json:"message"`
}

type emailResponse struct {
	Email string `json:"email"`
}

type resetTokenResponse struct {
	Email      string `json:"email"`
	ResetToken string `json:"reset_token"`
}

func (h *handlers) index(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, messageResponse{Message: "Bienvenue"})
}

func (h *handlers) register(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if email == "" || password == "" {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "email and password are required")
		return
	}

	_, err := h.service.RegisterUser(r.Context(), email, password)
	switch {
	case err == nil:
		h.metrics.RecordAuthEvent("register", observability.OutcomeSuccess)
		h.writeJSON(w, http.StatusOK, emailMessageResponse{Email: email, Message: "user created"})
	case errors.Is(err, auth.ErrAlreadyExists):
		h.metrics.RecordAuthEvent("register", observability.OutcomeRejected)
		h.writeJSON(w, http.StatusNotFound, messageResponse{Message: "email already registered"})
	case isInvalidInput(err):
		h.metrics.RecordAuthEvent("register", observability.OutcomeRejected)
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "invalid email or password")
	default:
		h.fault(w, r, "register", err)
	}
}

func (h *handlers) login(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if !h.service.ValidLogin(r.Context(), email, password) {
		h.metrics.RecordAuthEvent("login", observability.OutcomeRejected)
		httputil.WriteUnauthorized(w)
		return
	}

	token, ok, err := h.service.CreateSession(r.Context(), email)
	if err != nil {
		h.fault(w, r, "create_session", err)
		return
	}
	if !ok {
		// The user vanished between the password check and session creation.
		h.metrics.RecordAuthEvent("login", observability.OutcomeRejected)
		httputil.WriteUnauthorized(w)
		return
	}

	h.metrics.RecordAuthEvent("login", observability.OutcomeSuccess)
	http.SetCookie(w, h.sessionCookie(token))
	h.writeJSON(w, http.StatusOK, emailMessageResponse{Email: email, Message: "logged in"})
}

func (h *handlers) logout(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}

	if err := h.service.DestroySession(r.Context(), user.ID); err != nil {
		h.fault(w, r, "destroy_session", err)
		return
	}

	h.metrics.RecordAuthEvent("logout", observability.OutcomeSuccess)
	http.SetCookie(w, h.expiredCookie())
	http.Redirect(w, r, "/", http.StatusFound)
}

func (h *handlers) profile(w http.ResponseWriter, r *http.Request) {
	user, ok := h.sessionUser(w, r)
	if !ok {
		return
	}
	h.writeJSON(w, http.StatusOK, emailResponse{Email: user.Email})
}

func (h *handlers) resetToken(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")

	token, err := h.service.GetResetPasswordToken(r.Context(), email)
	switch {
	case err == nil:
		h.metrics.RecordAuthEvent("reset_request", observability.OutcomeSuccess)
		h.writeJSON(w, http.StatusOK, resetTokenResponse{Email: email, ResetToken: token})
	case errors.Is(err, auth.ErrUnknownUser):
		h.metrics.RecordAuthEvent("reset_request", observability.OutcomeRejected)
		httputil.WriteForbidden(w)
	default:
		h.fault(w, r, "reset_request", err)
	}
}

func (h *handlers) updatePassword(w http.ResponseWriter, r *http.Request) {
	email := r.PostFormValue("email")
	resetToken := r.PostFormValue("reset_token")
	newPassword := r.PostFormValue("new_password")
	if newPassword == "" {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "new_password is required")
		return
	}

	err := h.service.UpdatePassword(r.Context(), resetToken, newPassword)
	switch {
	case err == nil:
		h.metrics.RecordAuthEvent("password_update", observability.OutcomeSuccess)
		h.writeJSON(w, http.StatusOK, emailMessageResponse{Email: email, Message: "Password updated"})
	case errors.Is(err, auth.ErrInvalidToken):
		h.metrics.RecordAuthEvent("password_update", observability.OutcomeRejected)
		httputil.WriteForbidden(w)
	default:
		h.fault(w, r, "password_update", err)
	}
}

// sessionUser resolves the session cookie. On failure it has already written
// the response.
func (h *handlers) sessionUser(w http.ResponseWriter, r *http.Request) (*auth.User, bool) {
	token := authn.SessionCookie(r, h.cookieName)
	if token == "" {
		httputil.WriteForbidden(w)
		return nil, false
	}

	user, ok, err := h.service.GetUserFromSessionID(r.Context(), token)
	if err != nil {
		h.fault(w, r, "resolve_session", err)
		return nil, false
	}
	if !ok {
		httputil.WriteForbidden(w)
		return nil, false
	}
	return user, true
}

func (h *handlers) sessionCookie(token string) *http.Cookie {
	return &http.Cookie{
		Name:     h.cookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
}

func (h *handlers) expiredCookie() *http.Cookie {
	c := h.sessionCookie("")
	c.MaxAge = -1
	return c
}

// fault logs an unexpected failure and answers 500.
func (h *handlers) fault(w http.ResponseWriter, r *http.Request, operation string, err error) {
	observability.RecordStorageFault(operation)
	errutil.LogErrorContext(r.Context(), h.logger, "request failed", err)
	httputil.WriteInternalError(w)
}

func (h *handlers) writeJSON(w http.ResponseWriter, status int, body any) {
	if err := httputil.WriteJSON(w, status, body); err != nil {
		h.logger.Debug("write response failed", "error", err)
	}
}

func isInvalidInput(err error) bool {
	switch errutil.Code(err) {
	case "AUTH_INVALID_INPUT", "AUTH_EMPTY_PASSWORD", "AUTH_INVALID_PASSWORD":
		return true
	}
	return false
}
