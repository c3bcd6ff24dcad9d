// Package pg opens and maintains the PostgreSQL connection pool used by the
// tenant isolation layer.
//
// Connect builds a pgxpool.Pool from Config (populated from the environment
// through caarlos0/env) and retries until the database answers. When
// Config.ResetOnRelease is set, an AfterRelease hook resets the tenant
// parameters of every connection returned to the pool, so a connection that
// escaped rls.Session.Close still never carries a tenant into its next lease.
//
// Migrate runs goose migrations from any fs.FS, which lets the rls package ship
// its SQL functions as an embedded filesystem:
//
//	pool, err := pg.Connect(ctx, cfg.PG, log)
//	if err != nil {
//	    return err
//	}
//	if _, err := pg.Migrate(ctx, pool, cfg.PG, rls.Migrations, rls.MigrationsDir, log); err != nil {
//	    return err
//	}
//
// The Is*Error helpers classify *pgconn.PgError values. IsRLSViolationError in
// particular identifies writes rejected by a policy's WITH CHECK clause.
package pg
