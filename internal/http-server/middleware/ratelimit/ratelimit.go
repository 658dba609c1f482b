package ratelimit

import (
	"net/http"

	"procurement_system/internal/lib/errors"

	"github.com/go-chi/render"
	"golang.org/x/time/rate"
)

// New returns a middleware applying a shared token-bucket limit to every
// request. Requests over the limit get 429 instead of queueing.
func New(rps float64, burst int) func(next http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(rps), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				render.Status(r, http.StatusTooManyRequests)
				render.JSON(w, r, errors.NewHttpError("Too many requests"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
