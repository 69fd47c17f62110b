// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

package authn

import (
	"regexp"
	"slices"
	"strings"
)

var canonicalAPIPath = regexp.MustCompile(`^/api/v1/[A-Za-z]*/$`)

// NormalizePath returns path with a trailing slash. Paths already matching
// /api/v1/<letters>/ or ending in "/" are returned unchanged.
func NormalizePath(path string) string {
	if canonicalAPIPath.MatchString(path) || strings.HasSuffix(path, "/") {
		return path
	}
	return path + "/"
}

// RequireAuth reports whether path needs authentication. It is false only
// when the normalized path equals one of excluded, compared verbatim.
// An empty path or an empty excluded list always requires authentication.
func RequireAuth(path string, excluded []string) bool {
	if path == "" || len(excluded) == 0 {
		return true
	}
	return !slices.Contains(excluded, NormalizePath(path))
}

// pathPolicy gives each authenticator the shared RequireAuth.
type pathPolicy struct{}

func (pathPolicy) RequireAuth(path string, excluded []string) bool {
	return RequireAuth(path, excluded)
}
