package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	id "verichain/pkg/domain"
	"verichain/pkg/requestcontext"
)

// JWTValidator validates bearer tokens.
type JWTValidator interface {
	ValidateToken(tokenString string) (*JWTClaims, error)
}

// JWTClaims is what the validator hands back. Role is checked against the
// closed role set by the validator; handlers still authorize per operation.
type JWTClaims struct {
	PrincipalID   string
	Role          string
	InstitutionID string
	JTI           string
}

// RequireAuth authenticates the bearer token and stores the principal, role and
// institution in the request context.
func RequireAuth(validator JWTValidator, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			requestID := requestcontext.RequestID(ctx)

			token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
			if !ok {
				logger.WarnContext(ctx, "unauthorized access - missing token",
					"request_id", requestID,
				)
				writeUnauthorized(w, "Missing or invalid Authorization header")
				return
			}

			claims, err := validator.ValidateToken(token)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - invalid token",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}

			principalID, err := id.ParsePrincipalID(claims.PrincipalID)
			if err != nil {
				logger.WarnContext(ctx, "unauthorized access - malformed principal claim",
					"error", err,
					"request_id", requestID,
				)
				writeUnauthorized(w, "Invalid or expired token")
				return
			}
			ctx = requestcontext.WithPrincipalID(ctx, principalID)
			ctx = requestcontext.WithRole(ctx, claims.Role)

			if claims.InstitutionID != "" {
				institutionID, err := id.ParseInstitutionID(claims.InstitutionID)
				if err != nil {
					logger.WarnContext(ctx, "unauthorized access - malformed institution claim",
						"error", err,
						"request_id", requestID,
					)
					writeUnauthorized(w, "Invalid or expired token")
					return
				}
				ctx = requestcontext.WithInstitutionID(ctx, institutionID)
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func writeUnauthorized(w http.ResponseWriter, description string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write([]byte(`{"error":"unauthorized","error_description":"` + description + `"}`))
}
