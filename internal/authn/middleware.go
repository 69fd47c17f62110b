// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"log/slog"
	"net/http"

	"github.com/holomush/holoauth/internal/httputil"
	"github.com/holomush/holoauth/pkg/errutil"
)

// Middleware guards handlers with a. Requests to excluded paths pass through.
// A missing credential is answered 401 and an unresolvable one 403; otherwise
// the user is stored in the request context.
func Middleware(a Authenticator, excluded []string, logger *slog.Logger) func(http.Handler) http.Handler {
	excluded = append([]string(nil), excluded...)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !a.RequireAuth(r.URL.Path, excluded) {
				next.ServeHTTP(w, r)
				return
			}

			cred, ok := a.ExtractCredential(r)
			if !ok {
				httputil.WriteUnauthorized(w)
				return
			}

			user, ok, err := a.ResolveUser(r.Context(), cred)
			if err != nil {
				errutil.LogErrorContext(r.Context(), logger, "resolve credential failed", err)
				httputil.WriteInternalError(w)
				return
			}
			if !ok {
				httputil.WriteForbidden(w)
				return
			}

			next.ServeHTTP(w, r.WithContext(WithUser(r.Context(), user)))
		})
	}
}
