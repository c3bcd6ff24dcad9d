package pg

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
)

// resetTenantSQL clears the tenant parameters. Kept in sync with the rls package.
var resetTenantSQL = []string{
	"RESET app.current_tenant",
	"RESET app.tenant_admin",
}

// Connect opens a connection pool, retrying with a linear backoff until the
// database answers a ping or the attempts run out.
//
// With cfg.ResetOnRelease the pool resets the tenant parameters of every
// connection handed back to it. This is the last of three clearing mechanisms
// and catches code paths that release a bound connection without going
// through rls.Session.Close. A connection that cannot be reset is destroyed.
func Connect(ctx context.Context, cfg Config, log *slog.Logger) (*pgxpool.Pool, error) {
	if cfg.ConnectionString == "" {
		return nil, ErrEmptyConnectionString
	}
	if log == nil {
		log = slog.Default()
	}

	connConfig, err := pgxpool.ParseConfig(cfg.ConnectionString)
	if err != nil {
		return nil, errors.Join(ErrFailedToParseDBConfig, err)
	}
	connConfig.MaxConns = cfg.MaxOpenConns
	connConfig.MinConns = cfg.MaxIdleConns
	connConfig.HealthCheckPeriod = cfg.HealthCheckPeriod
	connConfig.MaxConnIdleTime = cfg.MaxConnIdleTime
	connConfig.MaxConnLifetime = cfg.MaxConnLifetime
	if cfg.ResetOnRelease {
		connConfig.AfterRelease = resetOnRelease(log)
	}

	var lastErr error
	for i := range cfg.RetryAttempts {
		pool, err := pgxpool.NewWithConfig(ctx, connConfig)
		if err == nil {
			if err = pool.Ping(ctx); err == nil {
				return pool, nil
			}
			pool.Close()
		}
		lastErr = err
		log.WarnContext(ctx, "database not ready",
			slog.Int("attempt", i+1),
			logger.Error(err),
		)

		select {
		case <-ctx.Done():
			return nil, errors.Join(ErrFailedToOpenDBConnection, ctx.Err())
		case <-time.After(time.Duration(i+1) * cfg.RetryInterval):
		}
	}

	return nil, errors.Join(ErrFailedToOpenDBConnection, lastErr)
}

// resetOnRelease returns an AfterRelease hook. Returning false makes the pool
// destroy the connection.
func resetOnRelease(log *slog.Logger) func(*pgx.Conn) bool {
	return func(conn *pgx.Conn) bool {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		for _, stmt := range resetTenantSQL {
			if _, err := conn.Exec(ctx, stmt); err != nil {
				log.ErrorContext(ctx, "failed to reset tenant context on release, destroying connection",
					logger.Error(err),
				)
				return false
			}
		}
		return true
	}
}
