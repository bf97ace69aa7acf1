package middleware

import (
	"crypto/subtle"
	"log/slog"
	"net/http"

	"verichain/pkg/requestcontext"
)

// RequireAdminToken guards platform operations (institution onboarding) with a
// static token compared in constant time.
func RequireAdminToken(expectedToken string, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := r.Header.Get("X-Admin-Token")
			if expectedToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(expectedToken)) != 1 {
				ctx := r.Context()
				logger.WarnContext(ctx, "admin token mismatch",
					"request_id", requestcontext.RequestID(ctx),
				)
				writeUnauthorized(w, "admin token required")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
