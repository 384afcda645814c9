// Package authmw provides HTTP middleware for bearer token authentication.
package authmw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/linnemanlabs/go-core/log"
)

const bearerPrefix = "Bearer "

// BearerToken returns middleware that accepts a request only when its
// Authorization header carries one of tokens as a Bearer token. More than one
// token lets a probe fleet roll to a new secret without downtime. Empty
// tokens are ignored; with none left every request is rejected. Comparison
// is constant-time.
func BearerToken(tokens ...string) func(http.Handler) http.Handler {
	var expected [][]byte
	for _, t := range tokens {
		if t != "" {
			expected = append(expected, []byte(t))
		}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			auth := r.Header.Get("Authorization")

			if !strings.HasPrefix(auth, bearerPrefix) {
				reject(w, r, "missing or malformed authorization header")
				return
			}

			if !matchAny([]byte(auth[len(bearerPrefix):]), expected) {
				reject(w, r, "invalid token")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// matchAny checks every candidate so timing does not reveal which one matched.
func matchAny(got []byte, expected [][]byte) bool {
	ok := 0
	for _, want := range expected {
		ok |= subtle.ConstantTimeCompare(got, want)
	}
	return ok == 1
}

func reject(w http.ResponseWriter, r *http.Request, reason string) {
	log.FromContext(r.Context()).Warn(r.Context(), "request rejected", "reason", reason, "path", r.URL.Path)
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="devwatch"`)
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"` + reason + `"}`))
}
