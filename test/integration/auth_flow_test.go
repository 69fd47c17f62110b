// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

//go:build integration

package integration

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"

	. "github.com/onsi/ginkgo/v2" //nolint:revive // ginkgo convention
	. "github.com/onsi/gomega"    //nolint:revive // gomega convention

	"github.com/holomush/holoauth/internal/authn"
)

// client is a browser-like HTTP client with a cookie jar that does not
// follow redirects.
type client struct {
	base string
	http *http.Client
}

func newClient(strategy authn.Strategy) *client {
	jar, err := cookiejar.New(nil)
	Expect(err).NotTo(HaveOccurred())
	return &client{
		base: env.servers[strategy].URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *client) do(method, path string, form url.Values, header map[string]string) (int, map[string]any) {
	var body io.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	}
	req, err := http.NewRequestWithContext(env.ctx, method, c.base+path, body)
	Expect(err).NotTo(HaveOccurred())
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	Expect(err).NotTo(HaveOccurred())
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	Expect(err).NotTo(HaveOccurred())

	var out map[string]any
	if len(raw) > 0 && strings.HasPrefix(resp.Header.Get("Content-Type"), "application/json") {
		Expect(json.Unmarshal(raw, &out)).To(Succeed())
	}
	return resp.StatusCode, out
}

func form(kv ...string) url.Values {
	v := url.Values{}
	for i := 0; i+1 < len(kv); i += 2 {
		v.Set(kv[i], kv[i+1])
	}
	return v
}

var _ = Describe("User authentication flow", func() {
	BeforeEach(resetUsers)

	It("registers, logs in, logs out and resets a password", func() {
		c := newClient(authn.StrategySession)

		status, body := c.do(http.MethodPost, "/users", form("email", "a@b.com", "password", "pw1"), nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "user created"))

		status, body = c.do(http.MethodPost, "/users", form("email", "a@b.com", "password", "pw1"), nil)
		Expect(status).To(Equal(http.StatusNotFound))
		Expect(body).To(HaveKeyWithValue("message", "email already registered"))

		status, _ = c.do(http.MethodPost, "/sessions", form("email", "a@b.com", "password", "nope"), nil)
		Expect(status).To(Equal(http.StatusUnauthorized))

		status, body = c.do(http.MethodPost, "/sessions", form("email", "a@b.com", "password", "pw1"), nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "logged in"))

		status, body = c.do(http.MethodGet, "/profile", nil, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("email", "a@b.com"))

		status, _ = c.do(http.MethodDelete, "/sessions", nil, nil)
		Expect(status).To(Equal(http.StatusFound))

		status, _ = c.do(http.MethodGet, "/profile", nil, nil)
		Expect(status).To(Equal(http.StatusForbidden))

		status, body = c.do(http.MethodPost, "/reset_password", form("email", "a@b.com"), nil)
		Expect(status).To(Equal(http.StatusOK))
		token, ok := body["reset_token"].(string)
		Expect(ok).To(BeTrue())
		Expect(token).NotTo(BeEmpty())

		update := form("email", "a@b.com", "reset_token", token, "new_password", "pw2")
		status, body = c.do(http.MethodPut, "/reset_password", update, nil)
		Expect(status).To(Equal(http.StatusOK))
		Expect(body).To(HaveKeyWithValue("message", "Password updated"))

		status, _ = c.do(http.MethodPut, "/reset_password", update, nil)
		Expect(status).To(Equal(http.StatusForbidden), "reset tokens are single use")

		status, _ = c.do(http.MethodPost, "/sessions", form("email", "a@b.com", "password", "pw2"), nil)
		Expect(status).To(Equal(http.StatusOK))
	})

	It("rejects a reset for an unknown email", func() {
		c := newClient(authn.StrategySession)
		status, _ := c.do(http.MethodPost, "/reset_password", form("email", "ghost@b.com"), nil)
		Expect(status).To(Equal(http.StatusForbidden))
	})
})

var _ = Describe("Protected API", func() {
	BeforeEach(func() {
		resetUsers()
		status, _ := newClient(authn.StrategySession).do(http.MethodPost, "/users", form("email", "a@b.com", "password", "pw1"), nil)
		Expect(status).To(Equal(http.StatusOK))
	})

	Context("with basic authentication", func() {
		basic := func(email, password string) map[string]string {
			return map[string]string{"Authorization": "Basic " + base64.StdEncoding.EncodeToString([]byte(email+":"+password))}
		}

		It("serves excluded paths without credentials", func() {
			status, body := newClient(authn.StrategyBasic).do(http.MethodGet, "/api/v1/status", nil, nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("status", "OK"))
		})

		It("distinguishes missing from wrong credentials", func() {
			c := newClient(authn.StrategyBasic)

			status, _ := c.do(http.MethodGet, "/api/v1/users/me", nil, nil)
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, _ = c.do(http.MethodGet, "/api/v1/users/me", nil, basic("a@b.com", "wrong"))
			Expect(status).To(Equal(http.StatusForbidden))

			status, body := c.do(http.MethodGet, "/api/v1/users/me", nil, basic("a@b.com", "pw1"))
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("email", "a@b.com"))
		})
	})

	Context("with session authentication", func() {
		It("logs in and out through the API", func() {
			c := newClient(authn.StrategySession)

			status, _ := c.do(http.MethodGet, "/api/v1/users/me", nil, nil)
			Expect(status).To(Equal(http.StatusUnauthorized))

			status, body := c.do(http.MethodPost, "/api/v1/auth_session/login", form("email", "a@b.com", "password", "pw1"), nil)
			Expect(status).To(Equal(http.StatusOK))
			Expect(body).To(HaveKeyWithValue("email", "a@b.com"))

			status, _ = c.do(http.MethodGet, "/api/v1/users/me", nil, nil)
			Expect(status).To(Equal(http.StatusOK))

			status, _ = c.do(http.MethodDelete, "/api/v1/auth_session/logout", nil, nil)
			Expect(status).To(Equal(http.StatusOK))

			status, _ = c.do(http.MethodGet, "/api/v1/users/me", nil, nil)
			Expect(status).To(Equal(http.StatusUnauthorized), "the jar dropped the expired cookie")
		})
	})
})
