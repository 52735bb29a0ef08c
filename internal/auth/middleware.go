package auth

import (
	"encoding/json"
	"net"
	"net/http"
	"strings"

	"github.com/HyphaGroup/gevulot/internal/logger"
)

// Middleware creates HTTP middleware for bearer token authentication.
// With an empty token set every request passes; serving beyond
// localhost without tokens is the operator's call.
func Middleware(tokens *TokenSet) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if tokens.Empty() {
				// Open mode: no token to record, but audit still wants
				// to know who called
				ctx := WithContext(r.Context(), &Identity{RemoteAddr: RemoteHost(r)})
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			header := r.Header.Get("Authorization")
			if !strings.HasPrefix(header, "Bearer ") {
				jsonError(w, "Authentication required (Bearer token)", http.StatusUnauthorized)
				return
			}

			token := strings.TrimPrefix(header, "Bearer ")
			if !tokens.Verify(token) {
				logger.Info("Rejected token from %s", RemoteHost(r))
				jsonError(w, "Invalid token", http.StatusUnauthorized)
				return
			}

			id := &Identity{
				Token:      maskToken(token),
				RemoteAddr: RemoteHost(r),
			}
			ctx := WithContext(r.Context(), id)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RemoteHost returns the caller's host with the port stripped
func RemoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"jsonrpc": "2.0",
		"error": map[string]interface{}{
			"code":    -32001,
			"message": message,
		},
		"id": nil,
	})
}

func maskToken(token string) string {
	if len(token) <= 12 {
		return "***"
	}
	return token[:8] + "..." + token[len(token)-4:]
}
