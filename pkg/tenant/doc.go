// Package tenant binds HTTP requests to a tenant's row-level security context.
//
// Middleware classifies each request as public or tenant-scoped. For
// tenant-scoped requests it looks for a tenant identifier in an ordered list of
// sources (by default the X-Tenant-ID header, the authenticated principal, the
// session and a cookie), skipping malformed values with a warning. The first
// valid UUID is optionally checked against a Provider, then bound on a
// connection leased for the request:
//
//	pool, _ := pg.Connect(ctx, cfg.Postgres, log)
//	r.Use(tenant.Middleware(rls.PoolAcquirer(pool),
//		tenant.WithProvider(tenant.NewPGProvider(pool)),
//		tenant.WithCache(tenant.NewInMemoryCache()),
//		tenant.WithLogger(log),
//	))
//
// Handlers run their queries on rls.ConnFromContext(ctx). When the handler
// returns, panics, or the client goes away, the context is cleared twice and
// the connection goes back to the pool.
//
// Requests with no usable tenant are logged at CRITICAL level as a security
// event and answered with 403:
//
//	{"error":"tenant_required","message":"tenant required for this resource"}
package tenant
