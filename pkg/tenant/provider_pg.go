package tenant

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

const (
	sqlTenantColumns = "id, name, active, rls_enabled, COALESCE(owner_id, ''), created_at"
	sqlGetTenant     = "SELECT " + sqlTenantColumns + " FROM tenants WHERE id = $1"
	sqlListTenants   = "SELECT " + sqlTenantColumns + " FROM tenants ORDER BY created_at, id"
	sqlCreateTenant  = `INSERT INTO tenants (id, name, active, rls_enabled, owner_id)
VALUES ($1, $2, $3, $4, NULLIF($5, ''))
RETURNING created_at`
	sqlSetTenantActive = "UPDATE tenants SET active = $2 WHERE id = $1"
)

// PGProvider reads tenants from the tenants table.
// The tenants table is not itself tenant-scoped, so the provider runs on the
// pool rather than on a request's bound connection.
type PGProvider struct {
	db rls.Conn
}

// NewPGProvider returns a provider querying db.
func NewPGProvider(db rls.Conn) *PGProvider {
	return &PGProvider{db: db}
}

// GetByID loads a tenant. Unknown ids return ErrTenantNotFound.
func (p *PGProvider) GetByID(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	rows, err := p.db.Query(ctx, sqlGetTenant, id)
	if err != nil {
		return nil, fmt.Errorf("tenant: get %s: %w", id, err)
	}
	t, err := pgx.CollectExactlyOneRow(rows, scanTenant)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrTenantNotFound
		}
		return nil, fmt.Errorf("tenant: get %s: %w", id, err)
	}
	return t, nil
}

// List returns every tenant ordered by creation time.
func (p *PGProvider) List(ctx context.Context) ([]*Tenant, error) {
	rows, err := p.db.Query(ctx, sqlListTenants)
	if err != nil {
		return nil, fmt.Errorf("tenant: list: %w", err)
	}
	tenants, err := pgx.CollectRows(rows, scanTenant)
	if err != nil {
		return nil, fmt.Errorf("tenant: list: %w", err)
	}
	return tenants, nil
}

// Create inserts t. A nil ID is replaced with a random UUID; CreatedAt is
// filled from the database.
func (p *PGProvider) Create(ctx context.Context, t *Tenant) error {
	if t == nil || strings.TrimSpace(t.Name) == "" {
		return errors.New("tenant: name is required")
	}
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	var created time.Time
	err := p.db.QueryRow(ctx, sqlCreateTenant, t.ID, t.Name, t.Active, t.RLSEnabled, t.OwnerID).Scan(&created)
	if err != nil {
		return fmt.Errorf("tenant: create %s: %w", t.ID, err)
	}
	t.CreatedAt = created
	return nil
}

// SetActive activates or deactivates a tenant.
func (p *PGProvider) SetActive(ctx context.Context, id uuid.UUID, active bool) error {
	tag, err := p.db.Exec(ctx, sqlSetTenantActive, id, active)
	if err != nil {
		return fmt.Errorf("tenant: set active %s: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrTenantNotFound
	}
	return nil
}

func scanTenant(row pgx.CollectableRow) (*Tenant, error) {
	var t Tenant
	err := row.Scan(&t.ID, &t.Name, &t.Active, &t.RLSEnabled, &t.OwnerID, &t.CreatedAt)
	return &t, err
}
