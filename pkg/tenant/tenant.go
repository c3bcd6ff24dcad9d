package tenant

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Tenant is the isolation boundary: every tenant-scoped row carries its ID.
type Tenant struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
	// Active tenants may be bound to requests.
	Active bool `json:"active"`
	// RLSEnabled records whether the tenant's data is expected to be protected
	// by row-level security. Tenants without it are still bound but logged.
	RLSEnabled bool      `json:"rls_enabled"`
	OwnerID    string    `json:"owner_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// Provider loads tenants. Implementations return ErrTenantNotFound for
// unknown identifiers.
type Provider interface {
	GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error)
}

// ProviderFunc adapts a function to the Provider interface.
type ProviderFunc func(ctx context.Context, id uuid.UUID) (*Tenant, error)

// GetByID calls f.
func (f ProviderFunc) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	return f(ctx, id)
}
