package middleware

import (
	"net/http"
	"runtime/debug"
	"slotbook/pkg/logger"
)

// Recovery converts handler panics into plain 500 responses. A reservation
// request runs a multi-step protocol; a panic in one request must never take
// the server down for everyone else mid-claim.
func Recovery(log *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				rec := recover()
				if rec == nil {
					return
				}

				log.Error("Panic recovered",
					"request_id", requestIDFrom(r),
					"panic", rec,
					"method", r.Method,
					"path", r.URL.Path,
					"stack", string(debug.Stack()),
				)

				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusInternalServerError)
				_, _ = w.Write([]byte(`{"error":"Internal server error"}`))
			}()

			next.ServeHTTP(w, r)
		})
	}
}

func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(RequestIDKey).(string); ok {
		return id
	}
	return ""
}
