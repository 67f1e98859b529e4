// Package guard protects the diagnostics endpoint with an optional static
// bearer token.
package guard

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"

	"playground-gateway/internal/apperr"
)

// Check reports whether a request presenting the given Authorization header
// may proceed. With no configured token every request is allowed.
func Check(configuredToken, authorization string) bool {
	if configuredToken == "" {
		return true
	}
	scheme, presented, ok := strings.Cut(authorization, " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(presented), []byte(configuredToken)) == 1
}

// Authorize is Check expressed as an error for callers that propagate
// apperr values.
func Authorize(configuredToken, authorization string) error {
	if Check(configuredToken, authorization) {
		return nil
	}
	return apperr.ErrUnauthorized
}

// Middleware rejects requests that authorize refuses with 401 and a JSON
// error body. authorize receives the raw Authorization header.
func Middleware(authorize func(authorization string) error) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := authorize(r.Header.Get("Authorization")); err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusUnauthorized)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
