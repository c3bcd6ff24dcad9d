package rls

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
)

// DB is what the policy engine needs from the database. *pgxpool.Pool and
// *pgx.Conn satisfy it.
type DB interface {
	Conn
	Beginner
}

// Engine applies tenant isolation policies. It mutates schema and is meant
// for setup tooling, not for the request path.
type Engine struct {
	db      DB
	mode    Mode
	roles   []string
	noForce bool
	logger  *slog.Logger
	metrics *metrics.Recorder
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithMode selects the policy mode. Defaults to ModeEmptyUnrestricted.
func WithMode(m Mode) EngineOption {
	return func(e *Engine) { e.mode = m }
}

// WithRoles restricts policies to the given roles. Defaults to PUBLIC.
func WithRoles(roles ...string) EngineOption {
	return func(e *Engine) { e.roles = roles }
}

// WithoutForce leaves table owners exempt from the policies.
func WithoutForce() EngineOption {
	return func(e *Engine) { e.noForce = true }
}

// WithEngineLogger sets the logger.
func WithEngineLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithEngineMetrics records outcomes on m.
func WithEngineMetrics(m *metrics.Recorder) EngineOption {
	return func(e *Engine) { e.metrics = m }
}

// NewEngine returns a policy engine operating on db.
func NewEngine(db DB, opts ...EngineOption) *Engine {
	e := &Engine{
		db:     db,
		mode:   ModeEmptyUnrestricted,
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the policy the engine would apply to table.
func (e *Engine) Policy(table string) (Policy, error) {
	p, err := NewPolicy(table, e.mode)
	if err != nil {
		return Policy{}, err
	}
	p.Roles = e.roles
	p.Force = !e.noForce
	return p, nil
}

// SetupTable applies the tenant isolation policy to table and reports whether
// a policy was (re)created. Tables that do not exist or have no tenant_id
// column are skipped with a warning. Without force an identical live policy
// is left alone.
func (e *Engine) SetupTable(ctx context.Context, table string, force bool) (bool, error) {
	outcome, err := e.setup(ctx, table, force)
	e.metrics.PolicyApplied(string(outcome))
	if outcome == OutcomeSkipped {
		return false, nil
	}
	return outcome == OutcomeApplied, err
}

func (e *Engine) setup(ctx context.Context, table string, force bool) (Outcome, error) {
	p, err := e.Policy(table)
	if err != nil {
		return OutcomeFailed, err
	}
	log := e.logger.With(logger.Table(p.QualifiedName()))

	if err := e.checkTenantScoped(ctx, p); err != nil {
		if errors.Is(err, ErrTableNotFound) || errors.Is(err, ErrNotTenantScoped) {
			log.WarnContext(ctx, "skipping table", logger.Error(err))
			return OutcomeSkipped, err
		}
		log.ErrorContext(ctx, "failed to inspect table", logger.Error(err))
		return OutcomeFailed, err
	}

	if !force {
		same, err := e.isCurrent(ctx, p)
		if err != nil {
			log.ErrorContext(ctx, "failed to read existing policy", logger.Error(err))
			return OutcomeFailed, err
		}
		if same {
			log.DebugContext(ctx, "policy already up to date")
			return OutcomeUnchanged, nil
		}
	}

	err = pgx.BeginFunc(ctx, e.db, func(tx pgx.Tx) error {
		for _, stmt := range p.Statements() {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
	if err != nil {
		log.ErrorContext(ctx, "failed to apply policy", logger.Error(err))
		return OutcomeFailed, errors.Join(ErrPolicyApply, err)
	}

	log.InfoContext(ctx, "tenant isolation policy applied",
		slog.String("policy", p.Name),
		slog.String("mode", e.mode.String()),
	)
	return OutcomeApplied, nil
}

// Apply runs SetupTable for every table and keeps going after failures.
func (e *Engine) Apply(ctx context.Context, tables []string, force bool) Report {
	var report Report
	for _, table := range tables {
		outcome, err := e.setup(ctx, table, force)
		e.metrics.PolicyApplied(string(outcome))
		report.add(table, outcome, err)
	}
	if n := report.FailureCount(); n > 0 {
		e.logger.ErrorContext(ctx, "policy application finished with failures",
			slog.Int("failed", n),
			slog.String("summary", report.String()),
		)
	} else {
		e.logger.InfoContext(ctx, "policy application finished", slog.String("summary", report.String()))
	}
	return report
}

// Remove drops the policy from table and disables row-level security.
func (e *Engine) Remove(ctx context.Context, table string) error {
	p, err := e.Policy(table)
	if err != nil {
		return err
	}
	return pgx.BeginFunc(ctx, e.db, func(tx pgx.Tx) error {
		for _, stmt := range p.DropStatements() {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		return nil
	})
}

const sqlTableInfo = `
SELECT
	EXISTS (
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2
	),
	EXISTS (
		SELECT 1 FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2 AND column_name = $3
	)`

func (e *Engine) checkTenantScoped(ctx context.Context, p Policy) error {
	var exists, scoped bool
	if err := e.db.QueryRow(ctx, sqlTableInfo, p.Schema, p.Table, TenantColumn).Scan(&exists, &scoped); err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", ErrTableNotFound, p.QualifiedName())
	}
	if !scoped {
		return fmt.Errorf("%w: %s", ErrNotTenantScoped, p.QualifiedName())
	}
	return nil
}

const sqlPolicyState = `
SELECT c.relrowsecurity, c.relforcerowsecurity, COALESCE(obj_description(p.oid, 'pg_policy'), '')
FROM pg_policy p
JOIN pg_class c ON c.oid = p.polrelid
JOIN pg_namespace n ON n.oid = c.relnamespace
WHERE n.nspname = $1 AND c.relname = $2 AND p.polname = $3`

func (e *Engine) isCurrent(ctx context.Context, p Policy) (bool, error) {
	var enabled, forced bool
	var comment string
	err := e.db.QueryRow(ctx, sqlPolicyState, p.Schema, p.Table, p.Name).Scan(&enabled, &forced, &comment)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return enabled && forced == p.Force && comment == p.Fingerprint(), nil
}

// PolicyInfo is a live policy as reported by pg_policies.
type PolicyInfo struct {
	Name       string
	Command    string
	Permissive string
	Roles      []string
	Using      string
	WithCheck  string
}

const sqlInspect = `
SELECT policyname, cmd, permissive, roles::text[], COALESCE(qual, ''), COALESCE(with_check, '')
FROM pg_policies
WHERE schemaname = $1 AND tablename = $2
ORDER BY policyname`

// Inspect returns the live policies on table.
func (e *Engine) Inspect(ctx context.Context, table string) ([]PolicyInfo, error) {
	schema, name, err := SplitTableName(table)
	if err != nil {
		return nil, err
	}
	rows, err := e.db.Query(ctx, sqlInspect, schema, name)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, func(row pgx.CollectableRow) (PolicyInfo, error) {
		var info PolicyInfo
		err := row.Scan(&info.Name, &info.Command, &info.Permissive, &info.Roles, &info.Using, &info.WithCheck)
		return info, err
	})
}

const sqlDiscover = `
SELECT c.table_schema::text || '.' || c.table_name::text
FROM information_schema.columns c
JOIN information_schema.tables t
	ON t.table_schema = c.table_schema AND t.table_name = c.table_name
WHERE c.column_name = $1
	AND t.table_type = 'BASE TABLE'
	AND c.table_schema::text = ANY($2::text[])
ORDER BY 1`

// Discover lists tables in the given schemas that carry a tenant_id column.
func (e *Engine) Discover(ctx context.Context, schemas ...string) ([]string, error) {
	if len(schemas) == 0 {
		schemas = []string{DefaultSchema}
	}
	rows, err := e.db.Query(ctx, sqlDiscover, TenantColumn, schemas)
	if err != nil {
		return nil, err
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}
