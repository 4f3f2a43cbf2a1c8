package httpadapter

import (
	"math"
	"net/http"
	"strconv"
	"time"

	"golang.org/x/time/rate"
)

// rateLimitMiddleware applies one token bucket to the whole server. A
// non-positive rps disables it.
func rateLimitMiddleware(next http.Handler, rps float64, burst int, reject func(string)) http.Handler {
	if rps <= 0 {
		return next
	}
	if burst <= 0 {
		burst = max(1, int(math.Ceil(rps)))
	}
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reservation := limiter.Reserve()
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			if reject != nil {
				reject("rate_limited")
			}
			w.Header().Set("Retry-After", strconv.Itoa(max(1, int(math.Ceil(delay.Seconds())))))
			writeError(w, http.StatusTooManyRequests, "rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// backpressureMiddleware admits at most limit concurrent requests, waiting
// up to wait for a slot before answering 503.
func backpressureMiddleware(next http.Handler, limit int, wait time.Duration, reject func(string)) http.Handler {
	if limit <= 0 {
		return next
	}
	slots := make(chan struct{}, limit)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case slots <- struct{}{}:
		case <-timer.C:
			if reject != nil {
				reject("overloaded")
			}
			w.Header().Set("Retry-After", "1")
			writeError(w, http.StatusServiceUnavailable, "server is overloaded, retry later")
			return
		case <-r.Context().Done():
			return
		}
		defer func() { <-slots }()
		next.ServeHTTP(w, r)
	})
}
