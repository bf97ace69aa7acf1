package middleware

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// RequestObserver records per-route request metrics.
type RequestObserver interface {
	ObserveRequest(route, method string, status int, d time.Duration)
	RequestStarted()
	RequestFinished()
}

// Metrics labels requests by chi route pattern, never by raw path, so ids in
// URLs do not explode label cardinality.
func Metrics(obs RequestObserver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			obs.RequestStarted()
			defer obs.RequestFinished()

			wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
			next.ServeHTTP(wrapped, r)

			route := "unmatched"
			if rc := chi.RouteContext(r.Context()); rc != nil {
				if p := rc.RoutePattern(); p != "" {
					route = p
				}
			}
			obs.ObserveRequest(route, r.Method, wrapped.statusCode, time.Since(start))
		})
	}
}

// BodyLimit caps request bodies. Reads past the limit fail, which the JSON
// and multipart decoders report as a bad request.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
