// Package requestcontext provides HTTP-independent context accessors for request-scoped values.
//
// This package defines context keys and getter/setter functions for values that are
// typically set by middleware but consumed by services. By keeping this package free
// of net/http dependencies, services can import only what they need without pulling
// in HTTP-related code.
//
// Usage in services (read values):
//
//	registrarID := requestcontext.RegistrarID(ctx)
//	now := requestcontext.Now(ctx)
//
// Usage in middleware (set values):
//
//	ctx = requestcontext.WithRegistrar(ctx, registrarID, superuser)
//	ctx = requestcontext.WithRequestID(ctx, requestID)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "regcore/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	registrarIDKey struct{}
	superuserKey   struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// WithRegistrar stores the authenticated registrar identity. The core never
// authenticates; it only consumes an identity established upstream.
func WithRegistrar(ctx context.Context, registrarID id.RegistrarID, superuser bool) context.Context {
	ctx = context.WithValue(ctx, registrarIDKey{}, registrarID)
	return context.WithValue(ctx, superuserKey{}, superuser)
}

// RegistrarID returns the authenticated registrar, or the zero value when
// the context carries none.
func RegistrarID(ctx context.Context) id.RegistrarID {
	registrarID, _ := ctx.Value(registrarIDKey{}).(id.RegistrarID)
	return registrarID
}

// Superuser reports whether the authenticated identity carries registry
// operator privileges.
func Superuser(ctx context.Context) bool {
	superuser, _ := ctx.Value(superuserKey{}).(bool)
	return superuser
}

// WithRequestID stores the correlation id for the current request.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, requestID)
}

// RequestID returns the correlation id, or "" when the context carries none.
func RequestID(ctx context.Context) string {
	requestID, _ := ctx.Value(requestIDKey{}).(string)
	return requestID
}

// WithTime pins the logical "now" for the current request or batch run.
// All timestamps written inside one transaction derive from this single
// instant, so a flow never observes two different clocks.
func WithTime(ctx context.Context, now time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey{}, now)
}

// Now returns the pinned request time, falling back to the wall clock when
// none was set.
func Now(ctx context.Context) time.Time {
	if now, ok := ctx.Value(requestTimeKey{}).(time.Time); ok {
		return now
	}
	return time.Now().UTC()
}
