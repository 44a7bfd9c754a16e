package middleware

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/newthinker/investeai/internal/api/response"
	"github.com/newthinker/investeai/internal/core"
)

// APIKeyHeader carries the API key. An "Authorization: Bearer <key>"
// header is accepted as well.
const APIKeyHeader = "X-API-Key"

// APIKeyAuth returns middleware that validates the API key.
// If apiKey is empty, authentication is disabled.
func APIKeyAuth(apiKey string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			// Skip auth if no key configured
			if apiKey == "" {
				next.ServeHTTP(w, r)
				return
			}

			providedKey := requestKey(r)

			// Constant-time comparison to prevent timing attacks
			if providedKey == "" || subtle.ConstantTimeCompare([]byte(providedKey), []byte(apiKey)) != 1 {
				w.Header().Set("WWW-Authenticate", `Bearer realm="investeai"`)
				response.Error(w, http.StatusUnauthorized, core.ErrUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func requestKey(r *http.Request) string {
	if key := r.Header.Get(APIKeyHeader); key != "" {
		return key
	}
	scheme, token, ok := strings.Cut(r.Header.Get("Authorization"), " ")
	if ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return ""
}
