package rls

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Conn is the part of a pgx connection the context store needs.
// *pgx.Conn, *pgxpool.Conn, pgx.Tx and *pgxpool.Pool all satisfy it.
type Conn interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// Lease is a connection owned by exactly one caller until Release.
type Lease interface {
	Conn
	Release()
}

// Acquirer hands out leases.
type Acquirer interface {
	Acquire(ctx context.Context) (Lease, error)
}

// AcquirerFunc adapts a function to the Acquirer interface.
type AcquirerFunc func(ctx context.Context) (Lease, error)

// Acquire calls f.
func (f AcquirerFunc) Acquire(ctx context.Context) (Lease, error) {
	return f(ctx)
}

// PoolAcquirer returns an Acquirer backed by a pgx pool.
func PoolAcquirer(pool *pgxpool.Pool) Acquirer {
	return AcquirerFunc(func(ctx context.Context) (Lease, error) {
		conn, err := pool.Acquire(ctx)
		if err != nil {
			return nil, err
		}
		return conn, nil
	})
}

// hijacker is implemented by *pgxpool.Conn. A lease whose tenant context
// could not be cleared is hijacked and closed so it never goes back to the pool.
type hijacker interface {
	Hijack() *pgx.Conn
}

// Beginner starts transactions. *pgxpool.Pool and *pgx.Conn satisfy it.
type Beginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}
