// Package records is a minimal tenant-scoped resource used to exercise
// isolation end to end. Every query runs on the connection the tenant
// middleware bound to the request; the row-level security policy on the
// table does the filtering.
package records

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// Migrations creates the records table.
//
//go:embed migrations/*.sql
var Migrations embed.FS

const (
	// MigrationsDir is the directory inside Migrations.
	MigrationsDir = "migrations"
	// MigrationsTable keeps the records schema version apart from the core migrations.
	MigrationsTable = "records_migrations"
)

var (
	ErrNotFound     = errors.New("records: not found")
	ErrInvalidTitle = errors.New("records: title is required")
)

// Record is one tenant-owned row.
type Record struct {
	ID        int64     `json:"id"`
	TenantID  uuid.UUID `json:"tenant_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
}

// Config selects the table the demo endpoints read and write.
type Config struct {
	Table string `env:"RECORDS_TABLE" envDefault:"records"`
	Limit int    `env:"RECORDS_LIST_LIMIT" envDefault:"100"`
}

// Store runs record queries against a request's bound connection.
type Store struct {
	table string
	limit int
}

// NewStore validates the table name and returns a Store for it.
func NewStore(cfg Config) (*Store, error) {
	schema, name, err := rls.SplitTableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	limit := cfg.Limit
	if limit <= 0 {
		limit = 100
	}
	return &Store{table: pgx.Identifier{schema, name}.Sanitize(), limit: limit}, nil
}

const recordColumns = "id, tenant_id, title, created_at"

// List returns the newest rows visible under the connection's tenant context.
func (s *Store) List(ctx context.Context, conn rls.Conn) ([]Record, error) {
	rows, err := conn.Query(ctx,
		"SELECT "+recordColumns+" FROM "+s.table+" ORDER BY id DESC LIMIT $1", s.limit)
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	list, err := pgx.CollectRows(rows, pgx.RowToStructByPos[Record])
	if err != nil {
		return nil, fmt.Errorf("records: list: %w", err)
	}
	return list, nil
}

// Get returns one row, ErrNotFound when it does not exist or belongs to
// another tenant.
func (s *Store) Get(ctx context.Context, conn rls.Conn, id int64) (Record, error) {
	rows, err := conn.Query(ctx, "SELECT "+recordColumns+" FROM "+s.table+" WHERE id = $1", id)
	if err != nil {
		return Record{}, fmt.Errorf("records: get: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Record])
	if errors.Is(err, pgx.ErrNoRows) {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, fmt.Errorf("records: get: %w", err)
	}
	return rec, nil
}

// Create inserts a row owned by the connection's tenant.
func (s *Store) Create(ctx context.Context, conn rls.Conn, title string) (Record, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return Record{}, ErrInvalidTitle
	}
	rows, err := conn.Query(ctx,
		"INSERT INTO "+s.table+" (tenant_id, title) VALUES (NULLIF(get_tenant_context(), '')::uuid, $1) RETURNING "+recordColumns,
		title)
	if err != nil {
		return Record{}, fmt.Errorf("records: create: %w", err)
	}
	rec, err := pgx.CollectExactlyOneRow(rows, pgx.RowToStructByPos[Record])
	if err != nil {
		return Record{}, fmt.Errorf("records: create: %w", err)
	}
	return rec, nil
}

// Delete removes a row. Rows of other tenants are invisible and report ErrNotFound.
func (s *Store) Delete(ctx context.Context, conn rls.Conn, id int64) error {
	tag, err := conn.Exec(ctx, "DELETE FROM "+s.table+" WHERE id = $1", id)
	if err != nil {
		return fmt.Errorf("records: delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
