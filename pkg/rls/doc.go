// Package rls implements tenant isolation on top of PostgreSQL Row-Level Security.
//
// The package has two halves. The first is the tenant context store: a
// connection-scoped configuration parameter (app.current_tenant) that the
// database functions set_tenant_context, get_tenant_context and
// clear_tenant_context read and write. Store wraps those functions for a single
// connection and Session couples a Store with an exclusively owned pooled
// connection for the lifetime of one request.
//
// The second half is the policy engine. Engine enables row-level security on a
// tenant-scoped table (one with a tenant_id column) and (re)creates a policy
// that compares the row's tenant_id with get_tenant_context(). Applying a
// policy is idempotent: the previous policy is dropped and recreated inside a
// single transaction.
//
// # Usage
//
//	pool, _ := pg.Connect(ctx, cfg, log)
//
//	sess, err := rls.Open(ctx, rls.PoolAcquirer(pool), tenantID, rls.WithStoreLogger(log))
//	if err != nil {
//		return err
//	}
//	defer sess.Close(context.WithoutCancel(ctx))
//
//	rows, err := sess.Conn().Query(ctx, "SELECT id FROM invoices")
//
// Background jobs that are not tied to a request should prefer InTenantTx,
// which binds the tenant with transaction scope so the value cannot outlive the
// transaction.
//
// # Empty context
//
// In ModeEmptyUnrestricted (the default) an empty context sees every tenant's
// rows. That escape hatch exists for administrative tooling only; request paths
// must always bind a tenant. ModeStrict removes the escape hatch: an empty
// context sees nothing and cross-tenant access requires an explicit
// EnterAdmin call or InAdminTx.
package rls
