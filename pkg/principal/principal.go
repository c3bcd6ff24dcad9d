// Package principal defines the authenticated identity shared between the
// authentication layer and the tenant middleware.
//
// Authentication middleware (see pkg/jwt) stores a Principal in the request
// context; the tenant middleware reads the tenant claim from it as its second
// identifier source.
package principal

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
)

// Principal is an authenticated caller.
type Principal interface {
	// Subject identifies the user or service.
	Subject() string
	// TenantID returns the tenant the principal is scoped to, if any.
	TenantID() (uuid.UUID, bool)
}

type contextKey struct{}

// WithPrincipal stores p in the context.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, contextKey{}, p)
}

// FromContext returns the principal stored in the context.
func FromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(contextKey{}).(Principal)
	return p, ok && p != nil
}

// SubjectFromContext returns the subject of the principal, "" when unauthenticated.
func SubjectFromContext(ctx context.Context) string {
	if p, ok := FromContext(ctx); ok {
		return p.Subject()
	}
	return ""
}

// LoggerExtractor adds user_id to log records of authenticated requests.
func LoggerExtractor() logger.ContextExtractor {
	return func(ctx context.Context) (slog.Attr, bool) {
		if sub := SubjectFromContext(ctx); sub != "" {
			return logger.UserID(sub), true
		}
		return slog.Attr{}, false
	}
}

// Static is a fixed Principal, handy for tests and service accounts.
type Static struct {
	ID     string
	Tenant uuid.UUID
}

func (s Static) Subject() string { return s.ID }

func (s Static) TenantID() (uuid.UUID, bool) {
	return s.Tenant, s.Tenant != uuid.Nil
}
