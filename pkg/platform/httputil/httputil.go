package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"verichain/internal/authz"
	id "verichain/pkg/domain"
	dErrors "verichain/pkg/domain-errors"
	"verichain/pkg/requestcontext"
)

func WriteJSON(w http.ResponseWriter, status int, response any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Headers are already sent, so an encoding error cannot change the status.
	_ = json.NewEncoder(w).Encode(response)
}

// WriteError translates transport-agnostic domain errors into HTTP status codes
// and a stable {"error","error_description"} body. Anything that is not a
// domain error is reported as an internal error without its message.
func WriteError(w http.ResponseWriter, err error) {
	var domainErr *dErrors.Error
	if errors.As(err, &domainErr) {
		response := map[string]string{
			"error": DomainCodeToHTTPCode(domainErr.Code),
		}
		if domainErr.Message != "" {
			response["error_description"] = domainErr.Message
		}
		WriteJSON(w, DomainCodeToHTTPStatus(domainErr.Code), response)
		return
	}

	WriteJSON(w, http.StatusInternalServerError, map[string]string{
		"error": DomainCodeToHTTPCode(dErrors.CodeInternal),
	})
}

// DomainCodeToHTTPStatus translates domain error codes to HTTP status codes.
func DomainCodeToHTTPStatus(code dErrors.Code) int {
	switch code {
	case dErrors.CodeNotFound:
		return http.StatusNotFound
	case dErrors.CodeBadRequest, dErrors.CodeValidation, dErrors.CodeInvalidInput, dErrors.CodeInvariantViolation:
		return http.StatusBadRequest
	case dErrors.CodeConflict, dErrors.CodeInconsistentState:
		return http.StatusConflict
	case dErrors.CodeUnauthorized:
		return http.StatusUnauthorized
	case dErrors.CodeForbidden, dErrors.CodeVerificationFailed:
		return http.StatusForbidden
	case dErrors.CodeExternalService:
		return http.StatusBadGateway
	case dErrors.CodeTimeout:
		return http.StatusGatewayTimeout
	case dErrors.CodeTooManyAttempts:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// DomainCodeToHTTPCode translates domain error codes to the "error" field of responses.
func DomainCodeToHTTPCode(code dErrors.Code) string {
	switch code {
	case dErrors.CodeNotFound:
		return "not_found"
	case dErrors.CodeBadRequest, dErrors.CodeInvalidInput:
		return "bad_request"
	case dErrors.CodeValidation, dErrors.CodeInvariantViolation:
		return "validation_error"
	case dErrors.CodeConflict:
		return "conflict"
	case dErrors.CodeUnauthorized:
		return "unauthorized"
	case dErrors.CodeForbidden:
		return "forbidden"
	case dErrors.CodeVerificationFailed:
		return "verification_failed"
	case dErrors.CodeExternalService:
		return "external_service_error"
	case dErrors.CodeInconsistentState:
		return "inconsistent_state"
	case dErrors.CodeTimeout:
		return "timeout"
	case dErrors.CodeTooManyAttempts:
		return "too_many_attempts"
	default:
		return "internal_error"
	}
}

// RequirePrincipal extracts the authenticated principal ID from context.
// A missing ID behind the auth middleware is a wiring bug, so it maps to an internal error.
func RequirePrincipal(ctx context.Context, logger *slog.Logger, requestID string) (id.PrincipalID, error) {
	pid := requestcontext.PrincipalID(ctx)
	if pid.IsNil() {
		if logger != nil {
			logger.ErrorContext(ctx, "principal ID missing from context despite auth middleware",
				"request_id", requestID)
		}
		return id.PrincipalID{}, dErrors.New(dErrors.CodeInternal, "authentication context error")
	}
	return pid, nil
}

// RequireOperation checks the caller's role against the authorization policy.
func RequireOperation(ctx context.Context, op authz.Operation) error {
	role, err := authz.ParseRole(requestcontext.Role(ctx))
	if err != nil || !authz.Allowed(role, op) {
		return dErrors.New(dErrors.CodeForbidden, "operation not permitted for this role")
	}
	return nil
}
