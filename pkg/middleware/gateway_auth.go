package middleware

import (
	"crypto/subtle"
	"net/http"
	"slotbook/pkg/logger"
)

const gatewaySecretHeader = "X-Gateway-Secret"

// GatewayAuth verifies the shared secret the conversational gateway sends
// with every request, the same way the bot platform authenticates webhook
// callbacks with a configured secret token.
func GatewayAuth(secret string, log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			presented := r.Header.Get(gatewaySecretHeader)

			if presented == "" {
				logAndReject(w, log, r, "Missing "+gatewaySecretHeader+" header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(presented), []byte(secret)) != 1 {
				logAndReject(w, log, r, "Invalid gateway secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func logAndReject(w http.ResponseWriter, log *logger.Logger, r *http.Request, reason string) {
	log.Warn("Rejected unauthenticated request",
		"method", r.Method,
		"path", r.URL.Path,
		"remote_addr", r.RemoteAddr,
		"reason", reason,
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"Unauthorized"}`))
}
