package rls_test

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/internal/pgtest"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// seedRecords creates schema.records with two rows for tenantA and one for
// tenantB, and protects it with the given engine options.
func seedRecords(t *testing.T, pool *pgxpool.Pool, opts ...rls.EngineOption) string {
	t.Helper()

	schema := pgtest.Schema(t, pool,
		`CREATE TABLE records (id serial PRIMARY KEY, tenant_id uuid NOT NULL, name text NOT NULL)`,
		`CREATE TABLE settings (id serial PRIMARY KEY, key text NOT NULL)`,
		`INSERT INTO records (tenant_id, name) VALUES
			('`+tenantA+`', 'a1'), ('`+tenantA+`', 'a2'), ('`+tenantB+`', 'b1')`,
	)
	table := schema + ".records"

	applied, err := rls.NewEngine(pool, opts...).SetupTable(context.Background(), table, false)
	require.NoError(t, err)
	require.True(t, applied)
	return schema
}

func countRows(t *testing.T, conn rls.Conn, schema string) int {
	t.Helper()
	var n int
	err := conn.QueryRow(context.Background(),
		"SELECT count(*) FROM "+pgx.Identifier{schema, "records"}.Sanitize()).Scan(&n)
	require.NoError(t, err)
	return n
}

func TestIntegrationIsolation(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 4)
	schema := seedRecords(t, pool)
	acq := pgtest.RoleAcquirer(pool)
	ctx := context.Background()

	for _, tc := range []struct {
		tenant string
		want   int
	}{
		{tenantA, 2},
		{tenantB, 1},
		{"", 3},
	} {
		sess, err := rls.Open(ctx, acq, tc.tenant)
		require.NoError(t, err)
		assert.Equal(t, tc.want, countRows(t, sess.Conn(), schema), "tenant %q", tc.tenant)
		require.NoError(t, sess.Close(ctx))
	}
}

func TestIntegrationContextFunctions(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 2)
	ctx := context.Background()

	sess, err := rls.OpenUnbound(ctx, pgtest.RoleAcquirer(pool))
	require.NoError(t, err)
	defer sess.Close(ctx)

	store := sess.Store()
	assert.Equal(t, "", store.Get(ctx), "fresh connection")

	require.NoError(t, store.Set(ctx, "7C9E6679-7425-40DE-944B-E07FC1F90AE7"))
	assert.Equal(t, tenantA, store.Get(ctx))

	require.NoError(t, store.Set(ctx, tenantB))
	assert.Equal(t, tenantB, store.Get(ctx), "last set wins")

	require.NoError(t, store.Clear(ctx))
	assert.Equal(t, "", store.Get(ctx))
	require.NoError(t, store.Clear(ctx), "clearing an empty context")

	require.NoError(t, store.Set(ctx, tenantA))
	require.NoError(t, store.Reset(ctx))
	assert.Equal(t, "", store.Get(ctx))
}

func TestIntegrationNoLeakAcrossLeases(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 1)
	schema := seedRecords(t, pool)
	acq := pgtest.RoleAcquirer(pool)
	ctx := context.Background()

	backendPID := func(conn rls.Conn) int {
		var pid int
		require.NoError(t, conn.QueryRow(ctx, "SELECT pg_backend_pid()").Scan(&pid))
		return pid
	}

	first, err := rls.Open(ctx, acq, tenantA)
	require.NoError(t, err)
	pid := backendPID(first.Conn())
	assert.Equal(t, 2, countRows(t, first.Conn(), schema))
	require.NoError(t, first.Close(ctx))

	second, err := rls.OpenUnbound(ctx, acq)
	require.NoError(t, err)
	defer second.Close(ctx)

	require.Equal(t, pid, backendPID(second.Conn()), "pool of one must reuse the connection")
	assert.Equal(t, "", second.Store().Get(ctx))
	assert.Equal(t, 3, countRows(t, second.Conn(), schema))
}

func TestIntegrationReleaseHookClears(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 1)
	ctx := context.Background()

	// Bind and release without Session.Close.
	conn, err := pool.Acquire(ctx)
	require.NoError(t, err)
	require.NoError(t, rls.NewStore(conn).Set(ctx, tenantA))
	conn.Release()

	conn, err = pool.Acquire(ctx)
	require.NoError(t, err)
	defer conn.Release()
	assert.Equal(t, "", rls.NewStore(conn).Get(ctx))
}

func TestIntegrationWithCheck(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 2)
	schema := seedRecords(t, pool)
	ctx := context.Background()

	sess, err := rls.Open(ctx, pgtest.RoleAcquirer(pool), tenantA)
	require.NoError(t, err)
	defer sess.Close(ctx)

	insert := "INSERT INTO " + pgx.Identifier{schema, "records"}.Sanitize() + " (tenant_id, name) VALUES ($1, $2)"
	_, err = sess.Conn().Exec(ctx, insert, tenantA, "a3")
	require.NoError(t, err)

	_, err = sess.Conn().Exec(ctx, insert, tenantB, "smuggled")
	require.Error(t, err)
	assert.True(t, pg.IsRLSViolationError(err), "got %v", err)
}

func TestIntegrationSetupTable(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 2)
	schema := seedRecords(t, pool)
	engine := rls.NewEngine(pool)
	ctx := context.Background()
	table := schema + ".records"

	applied, err := engine.SetupTable(ctx, table, false)
	require.NoError(t, err)
	assert.False(t, applied, "identical policy is left alone")

	applied, err = engine.SetupTable(ctx, table, true)
	require.NoError(t, err)
	assert.True(t, applied, "force recreates")

	policies, err := engine.Inspect(ctx, table)
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, rls.DefaultPolicyName, policies[0].Name)
	assert.Equal(t, "ALL", policies[0].Command)
	assert.Equal(t, "PERMISSIVE", policies[0].Permissive)
	assert.Contains(t, policies[0].Using, "get_tenant_context()")

	applied, err = rls.NewEngine(pool, rls.WithMode(rls.ModeStrict)).SetupTable(ctx, table, false)
	require.NoError(t, err)
	assert.True(t, applied, "mode change is a different policy")

	applied, err = engine.SetupTable(ctx, schema+".settings", false)
	require.NoError(t, err)
	assert.False(t, applied, "table without tenant_id is skipped")

	applied, err = engine.SetupTable(ctx, schema+".missing", false)
	require.NoError(t, err)
	assert.False(t, applied, "missing table is skipped")
}

func TestIntegrationApplyAndDiscover(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 2)
	schema := pgtest.Schema(t, pool,
		`CREATE TABLE orders (id serial PRIMARY KEY, tenant_id uuid NOT NULL)`,
		`CREATE TABLE invoices (id serial PRIMARY KEY, tenant_id uuid NOT NULL)`,
		`CREATE TABLE countries (code text PRIMARY KEY)`,
	)
	engine := rls.NewEngine(pool)
	ctx := context.Background()

	tables, err := engine.Discover(ctx, schema)
	require.NoError(t, err)
	assert.Equal(t, []string{schema + ".invoices", schema + ".orders"}, tables)

	report := engine.Apply(ctx, append(tables, schema+".countries", "bad name"), false)
	assert.Equal(t, 2, report.Applied())
	assert.Equal(t, 1, report.Skipped())
	assert.Equal(t, 1, report.FailureCount())
	assert.ErrorIs(t, report.Err(), rls.ErrInvalidTableName)

	report = engine.Apply(ctx, tables, false)
	assert.Equal(t, 2, report.Unchanged())
	assert.NoError(t, report.Err())

	require.NoError(t, engine.Remove(ctx, schema+".orders"))
	policies, err := engine.Inspect(ctx, schema+".orders")
	require.NoError(t, err)
	assert.Empty(t, policies)
}

func TestIntegrationStrictMode(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 2)
	schema := seedRecords(t, pool, rls.WithMode(rls.ModeStrict))
	ctx := context.Background()

	sess, err := rls.OpenUnbound(ctx, pgtest.RoleAcquirer(pool))
	require.NoError(t, err)
	assert.Equal(t, 0, countRows(t, sess.Conn(), schema), "empty context sees nothing")

	require.NoError(t, sess.Store().EnterAdmin(ctx))
	assert.Equal(t, 3, countRows(t, sess.Conn(), schema))
	require.NoError(t, sess.Close(ctx))

	conn, release := pgtest.AsAppRole(t, pool)
	defer release()

	err = rls.InAdminTx(ctx, conn, func(tx pgx.Tx) error {
		assert.Equal(t, 3, countRows(t, tx, schema))
		return nil
	})
	require.NoError(t, err)

	err = rls.InTenantTx(ctx, conn, tenantB, func(tx pgx.Tx) error {
		assert.Equal(t, 1, countRows(t, tx, schema))
		return nil
	})
	require.NoError(t, err)

	assert.Equal(t, "", rls.NewStore(conn).Get(ctx), "transaction-local context is discarded")
	assert.Equal(t, 0, countRows(t, conn, schema), "admin mode is discarded with the transaction")
}

func TestIntegrationInTenantTxRollback(t *testing.T) {
	t.Parallel()
	pool := pgtest.Pool(t, 2)
	schema := seedRecords(t, pool)
	ctx := context.Background()

	conn, release := pgtest.AsAppRole(t, pool)
	defer release()

	boom := errors.New("rollback")
	err := rls.InTenantTx(ctx, conn, tenantA, func(tx pgx.Tx) error {
		assert.Equal(t, 2, countRows(t, tx, schema))
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, "", rls.NewStore(conn).Get(ctx))

	assert.ErrorIs(t, rls.InTenantTx(ctx, conn, "  ", func(pgx.Tx) error { return nil }), rls.ErrEmptyTenant)
}
