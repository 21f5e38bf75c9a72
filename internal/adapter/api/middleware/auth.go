package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"
	"strings"
)

// TokenQueryParam carries the stream token for clients that cannot set headers, such as EventSource.
const TokenQueryParam = "token"

// StreamToken is a middleware factory that requires token either as a bearer token in the
// Authorization header or in the token query parameter. An empty token disables the check.
func StreamToken(token string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if token == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.URL.Query().Get(TokenQueryParam)
			if auth := r.Header.Get("Authorization"); strings.HasPrefix(auth, "Bearer ") {
				presented = strings.TrimPrefix(auth, "Bearer ")
			}

			if presented == "" {
				logger.Warn("stream token missing from request", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: stream token required", http.StatusUnauthorized)
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
				logger.Warn("invalid stream token provided", "remote_addr", r.RemoteAddr)
				http.Error(w, "Unauthorized: invalid stream token", http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
