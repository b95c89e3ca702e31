package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/httprate"

	"github.com/yae-assistant/yae/pkg/metrics"
)

// RateLimit allows requestLimit requests per client IP in each window.
// Rejected requests get a JSON 429 with Retry-After in whole seconds.
func RateLimit(requestLimit int, window time.Duration) func(http.Handler) http.Handler {
	seconds := int(window.Round(time.Second).Seconds())
	if seconds < 1 {
		seconds = 1
	}
	retryAfter := strconv.Itoa(seconds)
	body := []byte(`{"error":"rate limit exceeded","retry_after":` + retryAfter + `}`)

	return httprate.Limit(
		requestLimit,
		window,
		httprate.WithKeyFuncs(httprate.KeyByRealIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			metrics.RecordRateLimited(routePattern(r))

			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", retryAfter)
			w.WriteHeader(http.StatusTooManyRequests)
			w.Write(body)
		}),
	)
}
