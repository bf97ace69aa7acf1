// Package requestcontext carries request-scoped values (request id, clock,
// authenticated principal) through context.Context.
package requestcontext

import (
	"context"
	"time"

	id "verichain/pkg/domain"
)

type (
	requestIDKey   struct{}
	timeKey        struct{}
	principalIDKey struct{}
	roleKey        struct{}
	institutionKey struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithTime pins "now" for the rest of the request so every timestamp written
// by one operation agrees.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, timeKey{}, t)
}

// Now falls back to time.Now() outside HTTP requests (workers, CLI, tests).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(timeKey{}).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithPrincipalID(ctx context.Context, pid id.PrincipalID) context.Context {
	return context.WithValue(ctx, principalIDKey{}, pid)
}

func PrincipalID(ctx context.Context) id.PrincipalID {
	if v, ok := ctx.Value(principalIDKey{}).(id.PrincipalID); ok {
		return v
	}
	return id.PrincipalID{}
}

// WithRole stores the role string as carried by the token. Parsing into the
// closed role enum happens in the authz package.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey{}, role)
}

func Role(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey{}).(string); ok {
		return v
	}
	return ""
}

func WithInstitutionID(ctx context.Context, iid id.InstitutionID) context.Context {
	return context.WithValue(ctx, institutionKey{}, iid)
}

func InstitutionID(ctx context.Context) id.InstitutionID {
	if v, ok := ctx.Value(institutionKey{}).(id.InstitutionID); ok {
		return v
	}
	return id.InstitutionID{}
}
