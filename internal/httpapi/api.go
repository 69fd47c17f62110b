// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi

import (
	"net/http"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/authn"
	"github.com/holomush/holoauth/internal/httputil"
	"github.com/holomush/holoauth/internal/observability"
)

type statusResponse struct {
	Status string `json:"status"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Email string `json:"email"`
}

func toUserResponse(u *auth.User) userResponse {
	return userResponse{ID: u.ID, Email: u.Email}
}

func (h *handlers) apiStatus(w http.ResponseWriter, _ *http.Request) {
	h.writeJSON(w, http.StatusOK, statusResponse{Status: "OK"})
}

func (h *handlers) apiUnauthorized(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteUnauthorized(w)
}

func (h *handlers) apiForbidden(w http.ResponseWriter, _ *http.Request) {
	httputil.WriteForbidden(w)
}

func (h *handlers) apiMe(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// apiSessionLogin checks form credentials and starts a cookie session.
func (h *handlers) apiSessionLogin(w http.ResponseWriter, r *http.Request) {
	email, password := r.PostFormValue("email"), r.PostFormValue("password")
	if email == "" {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "email missing")
		return
	}
	if password == "" {
		httputil.WriteErrorMessage(w, http.StatusBadRequest, "password missing")
		return
	}

	if !h.service.ValidLogin(r.Context(), email, password) {
		h.metrics.RecordAuthEvent("api_login", observability.OutcomeRejected)
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	token, ok, err := h.service.CreateSession(r.Context(), email)
	if err != nil {
		h.fault(w, r, "create_session", err)
		return
	}
	if !ok {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	user, ok, err := h.service.GetUserFromSessionID(r.Context(), token)
	if err != nil {
		h.fault(w, r, "resolve_session", err)
		return
	}
	if !ok {
		httputil.WriteErrorMessage(w, http.StatusUnauthorized, "invalid credentials")
		return
	}

	h.metrics.RecordAuthEvent("api_login", observability.OutcomeSuccess)
	http.SetCookie(w, h.sessionCookie(token))
	h.writeJSON(w, http.StatusOK, toUserResponse(user))
}

// apiSessionLogout ends the authenticated user's session.
func (h *handlers) apiSessionLogout(w http.ResponseWriter, r *http.Request) {
	user, ok := authn.UserFromContext(r.Context())
	if !ok {
		httputil.WriteUnauthorized(w)
		return
	}
	if err := h.service.DestroySession(r.Context(), user.ID); err != nil {
		h.fault(w, r, "destroy_session", err)
		return
	}
	http.SetCookie(w, h.expiredCookie())
	h.writeJSON(w, http.StatusOK, struct{}{})
}
