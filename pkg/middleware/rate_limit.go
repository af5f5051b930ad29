package middleware

import (
	"net/http"
	"slotbook/pkg/logger"
	"sync"
	"time"
)

// UserExtractor pulls the acting user identity out of a request. The gateway
// forwards it in the X-User-ID header.
type UserExtractor func(r *http.Request) string

func DefaultUserExtractor(r *http.Request) string {
	return r.Header.Get("X-User-ID")
}

type UserRateLimiter struct {
	mu        sync.RWMutex
	requests  map[string][]time.Time
	limit     int
	window    time.Duration
	extractor UserExtractor
	log       *logger.Logger
	stopCh    chan struct{}
}

func NewUserRateLimiter(limit int, window time.Duration, extractor UserExtractor, log *logger.Logger) *UserRateLimiter {
	limiter := &UserRateLimiter{
		requests:  make(map[string][]time.Time),
		limit:     limit,
		window:    window,
		extractor: extractor,
		log:       log,
		stopCh:    make(chan struct{}),
	}

	go limiter.cleanup()

	return limiter
}

func (rl *UserRateLimiter) cleanup() {
	ticker := time.NewTicker(1 * time.Hour)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.mu.Lock()
			for user, timestamps := range rl.requests {
				if len(timestamps) == 0 || time.Since(timestamps[len(timestamps)-1]) > rl.window {
					delete(rl.requests, user)
				}
			}
			rl.mu.Unlock()
		case <-rl.stopCh:
			return
		}
	}
}

func (rl *UserRateLimiter) Stop() {
	close(rl.stopCh)
}

func (rl *UserRateLimiter) Allow(user string) bool {
	if user == "" {
		return true
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	valid := make([]time.Time, 0, len(rl.requests[user]))
	for _, ts := range rl.requests[user] {
		if now.Sub(ts) < rl.window {
			valid = append(valid, ts)
		}
	}

	if len(valid) >= rl.limit {
		rl.requests[user] = valid
		return false
	}

	rl.requests[user] = append(valid, now)
	return true
}

func UserRateLimit(limiter *UserRateLimiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user := ""
			if limiter.extractor != nil {
				user = limiter.extractor(r)
			}

			if user == "" {
				next.ServeHTTP(w, r)
				return
			}

			if !limiter.Allow(user) {
				limiter.log.Warn("Rate limit exceeded",
					"user", user,
					"method", r.Method,
					"path", r.URL.Path,
				)
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				_, _ = w.Write([]byte(`{"error":"Too many requests, slow down"}`))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
