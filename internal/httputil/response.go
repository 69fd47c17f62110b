// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 HoloMUSH Contributors

// Package httputil provides JSON response helpers shared by the HTTP packages.
package httputil

import (
	"encoding/json"
	"net/http"
)

// Canonical error bodies.
const (
	MsgUnauthorized   = "Unauthorized"
	MsgForbidden      = "Forbidden"
	MsgNotFound       = "Not found"
	MsgInternalServer = "internal server error"
)

// WriteJSON writes data as a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	//nolint:wrapcheck // encoder errors mean the client went away
	return json.NewEncoder(w).Encode(data)
}

// WriteErrorMessage writes {"error": message} with the given status code.
func WriteErrorMessage(w http.ResponseWriter, status int, message string) {
	_ = WriteJSON(w, status, map[string]string{"error": message}) //nolint:errcheck // best effort
}

// WriteUnauthorized writes a 401 {"error":"Unauthorized"}.
func WriteUnauthorized(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusUnauthorized, MsgUnauthorized)
}

// WriteForbidden writes a 403 {"error":"Forbidden"}.
func WriteForbidden(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusForbidden, MsgForbidden)
}

// WriteNotFound writes a 404 {"error":"Not found"}.
func WriteNotFound(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusNotFound, MsgNotFound)
}

// WriteInternalError writes a 500 without exposing the cause.
func WriteInternalError(w http.ResponseWriter) {
	WriteErrorMessage(w, http.StatusInternalServerError, MsgInternalServer)
}
