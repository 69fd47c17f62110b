// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package httpapi_test

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/holomush/holoauth/internal/auth"
	"github.com/holomush/holoauth/internal/auth/memory"
	"github.com/holomush/holoauth/internal/authn"
	"github.com/holomush/holoauth/internal/config"
	"github.com/holomush/holoauth/internal/httpapi"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testApp is a router over in-memory storage.
type testApp struct {
	handler http.Handler
	service *auth.Service
}

func newTestApp(t *testing.T, strategy authn.Strategy) *testApp {
	t.Helper()

	users := memory.NewUserRepository()
	hasher := auth.NewArgon2idHasherWithParams(1, 8*1024, 1)
	svc, err := auth.NewService(users, users, hasher, auth.WithLogger(discardLogger()))
	require.NoError(t, err)

	a, err := authn.New(strategy, authn.Config{
		Users:      users,
		Hasher:     hasher,
		Sessions:   svc,
		CookieName: authn.DefaultCookieName,
	})
	require.NoError(t, err)

	h, err := httpapi.NewRouter(httpapi.Config{
		Service:       svc,
		Authenticator: a,
		ExcludedPaths: config.DefaultExcludedPaths,
		Logger:        discardLogger(),
	})
	require.NoError(t, err)

	return &testApp{handler: h, service: svc}
}

type request struct {
	method string
	path   string
	form   url.Values
	cookie string
	header map[string]string
}

func (a *testApp) do(t *testing.T, req request) *httptest.ResponseRecorder {
	t.Helper()

	var body io.Reader
	if req.form != nil {
		body = strings.NewReader(req.form.Encode())
	}
	r := httptest.NewRequest(req.method, req.path, body)
	if req.form != nil {
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if req.cookie != "" {
		r.AddCookie(&http.Cookie{Name: authn.DefaultCookieName, Value: req.cookie})
	}
	for k, v := range req.header {
		r.Header.Set(k, v)
	}

	rec := httptest.NewRecorder()
	a.handler.ServeHTTP(rec, r)
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func sessionCookie(rec *httptest.ResponseRecorder) *http.Cookie {
	for _, c := range rec.Result().Cookies() {
		if c.Name == authn.DefaultCookieName {
			return c
		}
	}
	return nil
}

func creds(email, password string) url.Values {
	return url.Values{"email": {email}, "password": {password}}
}

func TestNewRouter_Validation(t *testing.T) {
	_, err := httpapi.NewRouter(httpapi.Config{})
	require.Error(t, err)

	app := newTestApp(t, authn.StrategySession)
	assert.NotNil(t, app.handler)
}

func TestIndex(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)

	rec := app.do(t, request{method: http.MethodGet, path: "/"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"Bienvenue"}`, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(httpapi.RequestIDHeader))
}

func TestRequestID(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)

	t.Run("honors incoming id", func(t *testing.T) {
		rec := app.do(t, request{method: http.MethodGet, path: "/", header: map[string]string{httpapi.RequestIDHeader: "abc-123"}})
		assert.Equal(t, "abc-123", rec.Header().Get(httpapi.RequestIDHeader))
	})

	t.Run("replaces oversized id", func(t *testing.T) {
		long := strings.Repeat("x", 65)
		rec := app.do(t, request{method: http.MethodGet, path: "/", header: map[string]string{httpapi.RequestIDHeader: long}})
		got := rec.Header().Get(httpapi.RequestIDHeader)
		assert.NotEqual(t, long, got)
		assert.Len(t, got, 26)
	})
}

func TestRegister(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)

	rec := app.do(t, request{method: http.MethodPost, path: "/users", form: creds("a@b.com", "pw1")})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"a@b.com","message":"user created"}`, rec.Body.String())

	t.Run("duplicate email", func(t *testing.T) {
		rec := app.do(t, request{method: http.MethodPost, path: "/users/", form: creds("a@b.com", "other")})
		assert.Equal(t, http.StatusNotFound, rec.Code)
		assert.JSONEq(t, `{"message":"email already registered"}`, rec.Body.String())
	})

	t.Run("missing fields", func(t *testing.T) {
		for _, form := range []url.Values{creds("", "pw"), creds("x@y.com", ""), {}} {
			rec := app.do(t, request{method: http.MethodPost, path: "/users", form: form})
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			assert.Contains(t, decode(t, rec), "error")
		}
	})

	t.Run("email too long", func(t *testing.T) {
		long := strings.Repeat("a", 300) + "@b.com"
		rec := app.do(t, request{method: http.MethodPost, path: "/users", form: creds(long, "pw")})
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("wrong method", func(t *testing.T) {
		rec := app.do(t, request{method: http.MethodGet, path: "/users"})
		assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	})
}

func TestSessionLifecycle(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)
	app.do(t, request{method: http.MethodPost, path: "/users", form: creds("a@b.com", "pw1")})

	rec := app.do(t, request{method: http.MethodPost, path: "/sessions", form: creds("a@b.com", "wrong")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, sessionCookie(rec))

	rec = app.do(t, request{method: http.MethodPost, path: "/sessions", form: creds("nobody@b.com", "pw1")})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = app.do(t, request{method: http.MethodPost, path: "/sessions/", form: creds("a@b.com", "pw1")})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"a@b.com","message":"logged in"}`, rec.Body.String())
	cookie := sessionCookie(rec)
	require.NotNil(t, cookie)
	assert.True(t, cookie.HttpOnly)
	assert.Equal(t, "/", cookie.Path)
	token := cookie.Value

	rec = app.do(t, request{method: http.MethodGet, path: "/profile", cookie: token})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"a@b.com"}`, rec.Body.String())

	rec = app.do(t, request{method: http.MethodGet, path: "/profile"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, request{method: http.MethodGet, path: "/profile", cookie: "not-a-session"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, request{method: http.MethodDelete, path: "/sessions", cookie: token})
	assert.Equal(t, http.StatusFound, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))
	cleared := sessionCookie(rec)
	require.NotNil(t, cleared)
	assert.Negative(t, cleared.MaxAge)

	rec = app.do(t, request{method: http.MethodGet, path: "/profile", cookie: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, request{method: http.MethodDelete, path: "/sessions", cookie: token})
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestLogin_ReplacesPreviousSession(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)
	app.do(t, request{method: http.MethodPost, path: "/users", form: creds("a@b.com", "pw1")})

	first := sessionCookie(app.do(t, request{method: http.MethodPost, path: "/sessions", form: creds("a@b.com", "pw1")}))
	second := sessionCookie(app.do(t, request{method: http.MethodPost, path: "/sessions", form: creds("a@b.com", "pw1")}))
	require.NotNil(t, first)
	require.NotNil(t, second)
	assert.NotEqual(t, first.Value, second.Value)

	assert.Equal(t, http.StatusForbidden, app.do(t, request{method: http.MethodGet, path: "/profile", cookie: first.Value}).Code)
	assert.Equal(t, http.StatusOK, app.do(t, request{method: http.MethodGet, path: "/profile", cookie: second.Value}).Code)
}

func TestPasswordReset(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)
	app.do(t, request{method: http.MethodPost, path: "/users", form: creds("a@b.com", "pw1")})

	rec := app.do(t, request{method: http.MethodPost, path: "/reset_password", form: url.Values{"email": {"nobody@b.com"}}})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = app.do(t, request{method: http.MethodPost, path: "/reset_password/", form: url.Values{"email": {"a@b.com"}}})
	require.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.Equal(t, "a@b.com", body["email"])
	token, _ := body["reset_token"].(string)
	require.NotEmpty(t, token)

	update := func(token, password string) *httptest.ResponseRecorder {
		return app.do(t, request{method: http.MethodPut, path: "/reset_password", form: url.Values{
			"email":        {"a@b.com"},
			"reset_token":  {token},
			"new_password": {password},
		}})
	}

	assert.Equal(t, http.StatusBadRequest, update(token, "").Code)
	assert.Equal(t, http.StatusForbidden, update("bogus", "pw2").Code)

	rec = update(token, "pw2")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"email":"a@b.com","message":"Password updated"}`, rec.Body.String())

	assert.Equal(t, http.StatusForbidden, update(token, "pw3").Code, "token is single use")

	assert.Equal(t, http.StatusUnauthorized, app.do(t, request{method: http.MethodPost, path: "/sessions", form: creds("a@b.com", "pw1")}).Code)
	assert.Equal(t, http.StatusOK, app.do(t, request{method: http.MethodPost, path: "/sessions", form: creds("a@b.com", "pw2")}).Code)
}

func TestNotFound(t *testing.T) {
	app := newTestApp(t, authn.StrategySession)

	rec := app.do(t, request{method: http.MethodGet, path: "/nope"})
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.JSONEq(t, `{"error":"Not found"}`, rec.Body.String())
}
