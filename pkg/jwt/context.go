package jwt

import (
	"context"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantguard/pkg/principal"
)

type contextKey struct{ name string }

func (c contextKey) String() string { return c.name }

var (
	tokenContextKey  = &contextKey{name: "jwt"}
	claimsContextKey = &contextKey{name: "jwt_claims"}
)

// SetToken sets the JWT token string in the context.
func SetToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenContextKey, token)
}

// GetToken returns the JWT token string from the context.
func GetToken(ctx context.Context) (string, bool) {
	token, ok := ctx.Value(tokenContextKey).(string)
	return token, ok
}

// SetClaims stores verified claims in the context and exposes them as the
// request principal.
func SetClaims(ctx context.Context, claims *Claims) context.Context {
	ctx = context.WithValue(ctx, claimsContextKey, claims)
	return principal.WithPrincipal(ctx, claimsPrincipal{claims})
}

// GetClaims returns the verified claims from the context.
func GetClaims(ctx context.Context) (*Claims, bool) {
	claims, ok := ctx.Value(claimsContextKey).(*Claims)
	return claims, ok && claims != nil
}

// claimsPrincipal adapts Claims to principal.Principal.
type claimsPrincipal struct{ c *Claims }

func (p claimsPrincipal) Subject() string { return p.c.RegisteredClaims.Subject }

func (p claimsPrincipal) TenantID() (uuid.UUID, bool) { return p.c.Tenant() }
