package middleware

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/httprate"
)

const rateLimitMessage = "Trop de requêtes, veuillez réessayer plus tard."

// RateLimit returns a per-IP fixed-window limiter: at most max requests per
// window. Exceeding requests get 429 with a JSON error and the standard
// X-RateLimit-* headers.
func RateLimit(max int, window time.Duration) func(http.Handler) http.Handler {
	if max <= 0 {
		max = 60
	}
	if window <= 0 {
		window = time.Minute
	}
	return httprate.Limit(max, window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": rateLimitMessage})
		}),
	)
}
