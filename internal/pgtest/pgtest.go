// Package pgtest provides PostgreSQL fixtures for integration tests.
//
// Tests using it are skipped unless TENANTGUARD_TEST_DATABASE_URL points at a
// database the test user may create schemas and roles in. Superusers bypass
// row-level security, so queries that must be filtered run under AppRole
// through RoleAcquirer.
package pgtest

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// EnvDatabaseURL names the variable holding the test database URL.
const EnvDatabaseURL = "TENANTGUARD_TEST_DATABASE_URL"

// AppRole is the unprivileged role queries run as.
const AppRole = "tenantguard_test_app"

// migrateLockKey serialises migrations across test binaries sharing a database.
const migrateLockKey = 727274

var migrateMu sync.Mutex

// Pool returns a migrated pool with at most maxConns connections and closes it
// when the test ends. It skips the test when no database is configured.
func Pool(t testing.TB, maxConns int32) *pgxpool.Pool {
	t.Helper()

	url := os.Getenv(EnvDatabaseURL)
	if url == "" {
		t.Skipf("%s not set", EnvDatabaseURL)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	cfg := pg.Config{
		ConnectionString:  url,
		MaxOpenConns:      maxConns,
		HealthCheckPeriod: time.Minute,
		MaxConnIdleTime:   time.Minute,
		MaxConnLifetime:   5 * time.Minute,
		RetryAttempts:     1,
		RetryInterval:     time.Second,
		ResetOnRelease:    true,
		MigrationsTable:   "tenantguard_migrations",
	}
	log := slog.New(slog.DiscardHandler)

	pool, err := pg.Connect(ctx, cfg, log)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	migrate(t, ctx, url, pool, cfg, log)
	ensureRole(t, ctx, pool)
	return pool
}

func migrate(t testing.TB, ctx context.Context, url string, pool *pgxpool.Pool, cfg pg.Config, log *slog.Logger) {
	t.Helper()

	migrateMu.Lock()
	defer migrateMu.Unlock()

	// The lock lives on its own connection so pools of size one can still migrate.
	lock, err := pgx.Connect(ctx, url)
	require.NoError(t, err)
	defer lock.Close(context.WithoutCancel(ctx))

	_, err = lock.Exec(ctx, "SELECT pg_advisory_lock($1)", migrateLockKey)
	require.NoError(t, err)
	defer func() {
		_, _ = lock.Exec(context.WithoutCancel(ctx), "SELECT pg_advisory_unlock($1)", migrateLockKey)
	}()

	_, err = pg.Migrate(ctx, pool, cfg, rls.Migrations, rls.MigrationsDir, log)
	require.NoError(t, err)
}

const sqlEnsureRole = `
DO $$
BEGIN
	CREATE ROLE tenantguard_test_app NOLOGIN NOBYPASSRLS;
EXCEPTION WHEN duplicate_object OR unique_violation THEN
	NULL;
END
$$`

func ensureRole(t testing.TB, ctx context.Context, pool *pgxpool.Pool) {
	t.Helper()
	_, err := pool.Exec(ctx, sqlEnsureRole)
	require.NoError(t, err)
}

// Schema creates an empty schema for one test and drops it afterwards.
// Statements in ddl run inside it with the schema first on the search path,
// after which AppRole is granted access to every table in it.
func Schema(t testing.TB, pool *pgxpool.Pool, ddl ...string) string {
	t.Helper()
	ctx := context.Background()

	name := "tg_" + randomSuffix(t)
	ident := pgx.Identifier{name}.Sanitize()

	_, err := pool.Exec(ctx, "CREATE SCHEMA "+ident)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), "DROP SCHEMA "+ident+" CASCADE")
	})

	err = pgx.BeginFunc(ctx, pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, "SET LOCAL search_path TO "+ident+", public"); err != nil {
			return err
		}
		for _, stmt := range ddl {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return fmt.Errorf("%s: %w", stmt, err)
			}
		}
		for _, grant := range []string{
			"GRANT USAGE ON SCHEMA " + ident + " TO " + AppRole,
			"GRANT SELECT, INSERT, UPDATE, DELETE ON ALL TABLES IN SCHEMA " + ident + " TO " + AppRole,
			"GRANT USAGE ON ALL SEQUENCES IN SCHEMA " + ident + " TO " + AppRole,
		} {
			if _, err := tx.Exec(ctx, grant); err != nil {
				return err
			}
		}
		return nil
	})
	require.NoError(t, err)
	return name
}

// roleLease switches a pooled connection to AppRole and back.
type roleLease struct {
	*pgxpool.Conn
}

func (l roleLease) Release() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if _, err := l.Exec(ctx, "RESET ROLE"); err != nil {
		if c := l.Hijack(); c != nil {
			_ = c.Close(ctx)
		}
		return
	}
	l.Conn.Release()
}

// RoleAcquirer hands out pooled connections running as AppRole.
func RoleAcquirer(pool *pgxpool.Pool) rls.Acquirer {
	return rls.AcquirerFunc(func(ctx context.Context) (rls.Lease, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		if _, err := conn.Exec(ctx, "SET ROLE "+AppRole); err != nil {
			conn.Release()
			return nil, err
		}
		return roleLease{Conn: conn}, nil
	})
}

// AsAppRole acquires a connection running as AppRole for transaction helpers.
// The returned release func restores the role before releasing it.
func AsAppRole(t testing.TB, pool *pgxpool.Pool) (*pgxpool.Conn, func()) {
	t.Helper()
	lease, err := RoleAcquirer(pool).Acquire(context.Background())
	require.NoError(t, err)
	rl := lease.(roleLease)
	return rl.Conn, rl.Release
}

func randomSuffix(t testing.TB) string {
	t.Helper()
	b := make([]byte, 6)
	_, err := rand.Read(b)
	require.NoError(t, err)
	return hex.EncodeToString(b)
}
