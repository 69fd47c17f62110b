// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi_test

import (
	"encoding/base64"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/holomush/holoauth/internal/authn"
)

func basicHeader(email, password string) map[string]string {
	enc := base64.StdEncoding.EncodeToString([]byte(email + ":" + password))
	return map[string]string{"Authorization": "Basic " + enc}
}

func TestAPI_ExcludedPaths(t *testing.T) {
	app := newTestApp(t, authn.StrategyBasic)

	tests := []struct {
		path       string
		wantStatus int
		wantBody   string
	}{
		{"/api/v1/status", http.StatusOK, `{"status":"OK"}`},
		{"/api/v1/status/", http.StatusOK, `{"status":"OK"}`},
		{"/api/v1/unauthorized", http.StatusUnauthorized, `{"error":"Unauthorized"}`},
		{"/api/v1/forbidden/", http.StatusForbidden, `{"error":"Forbidden"}`},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			rec := app.do(t, request{method: http.MethodGet, path: tt.path})
			assert.Equal(t, tt.wantStatus, rec.Code)
			assert.JSONEq(t, tt.wantBody, rec.Body.String())
		})
	}
}

func TestAPI_BasicAuth(t *testing.T) {
	app := newTestApp(t, authn.StrategyBasic)
	app.do(t, request{method: http.MethodPost, path: "/users", form: creds("a@b.com", "pw1")})

	tests := []struct {
		name       string
		header     map[string]string
		wantStatus int
	}{
		{"no header", nil, http.StatusUnauthorized},
		{"not basic", map[string]string{"Authorization": "Bearer abc"}, http.StatusUnauthorized},
		{"bad base64", map[string]string{"Authorization": "Basic %%%"}, http.StatusUnauthorized},
		{"wrong password", basicHeader("a@b.com", "nope"), http.StatusForbidden},
		{"unknown user", basicHeader("x@b.com", "pw1"), http.StatusForbidden},
		{"valid", basicHeader("a@b.com", "pw1"), http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := app.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", header: tt.header})
			assert.Equal(t, tt.wantStatus, rec.Code)
		})
	}

	rec := app.do(t, request{method: http.MethodGet, path: "/api/v1/users/me/", header: basicHeader("a@b.com", "pw1")})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "a@b.com", body["email"])
	assert.EqualValues(t, 1, body["id"])
}

func TestAPI_SessionAuth(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)
	app.do(t, request{method: http.MethodPost, path: "/users", form: creds("a@b.com", "pw1")})

	t.Run("login validation", func(t *testing.T) {
		rec := app.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login", form: creds("", "pw1")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"email missing"}`, rec.Body.String())

		rec = app.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login", form: creds("a@b.com", "")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.JSONEq(t, `{"error":"password missing"}`, rec.Body.String())

		rec = app.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login", form: creds("a@b.com", "bad")})
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	rec := app.do(t, request{method: http.MethodGet, path: "/api/v1/users/me"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: "stale"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, request{method: http.MethodPost, path: "/api/v1/auth_session/login/", form: creds("a@b.com", "pw1")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@b.com", decode(t, rec)["email"])
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)

	rec = app.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: cookie.Value})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "a@b.com", decode(t, rec)["email"])

	rec = app.do(t, request{method: http.MethodDelete, path: "/api/v1/auth_session/logout", cookie: cookie.Value})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{}`, rec.Body.String())

	rec = app.do(t, request{method: http.MethodGet, path: "/api/v1/users/me", cookie: cookie.Value})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}
