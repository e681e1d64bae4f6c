// Copyright 2025 Pine Host Project
package server

import (
	"crypto/subtle"
	"net/http"
)

// requireAdminAuth wraps next with HTTP Basic auth against the single
// configured admin password (spec §6: "the admin interface uses Basic auth
// with a single configured password"). The username is ignored — only the
// password is checked — matching the single-password contract literally.
func requireAdminAuth(password string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, suppliedPassword, ok := r.BasicAuth()
		if !ok {
			w.Header().Set("WWW-Authenticate", `Basic realm="pine-host admin"`)
			writeJSONError(w, http.StatusUnauthorized, "missing basic auth credentials")
			return
		}
		if subtle.ConstantTimeCompare([]byte(suppliedPassword), []byte(password)) != 1 {
			writeJSONError(w, http.StatusForbidden, "invalid admin password")
			return
		}
		next(w, r)
	}
}
