package rls_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// fakeConn records executed statements and keeps the tenant parameter in
// memory the way a real session would.
type fakeConn struct {
	mu       sync.Mutex
	execs    []string
	args     [][]any
	failOn   map[string]error
	current  string
	released int
	// requireLiveCtx fails every call made with a cancelled context.
	requireLiveCtx bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{failOn: map[string]error{}}
}

func (c *fakeConn) fail(prefix string, err error) *fakeConn {
	c.failOn[prefix] = err
	return c
}

func (c *fakeConn) check(ctx context.Context, sql string) error {
	if c.requireLiveCtx && ctx.Err() != nil {
		return ctx.Err()
	}
	for prefix, err := range c.failOn {
		if strings.HasPrefix(sql, prefix) {
			return err
		}
	}
	return nil
}

func (c *fakeConn) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	c.args = append(c.args, args)
	if err := c.check(ctx, sql); err != nil {
		return pgconn.CommandTag{}, err
	}
	switch {
	case strings.HasPrefix(sql, "SELECT set_tenant_context"):
		c.current = fmt.Sprint(args[0])
	case strings.HasPrefix(sql, "SELECT clear_tenant_context"),
		strings.HasPrefix(sql, "SELECT set_config('app.current_tenant'"),
		sql == "RESET app.current_tenant":
		c.current = ""
	}
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (c *fakeConn) QueryRow(ctx context.Context, sql string, _ ...any) pgx.Row {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.execs = append(c.execs, sql)
	if err := c.check(ctx, sql); err != nil {
		return fakeRow{err: err}
	}
	return fakeRow{vals: []any{c.current}}
}

func (c *fakeConn) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (c *fakeConn) Release() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.released++
}

func (c *fakeConn) statements() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.execs...)
}

type fakeRow struct {
	vals []any
	err  error
}

func (r fakeRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *bool:
			*p = r.vals[i].(bool)
		default:
			return fmt.Errorf("unsupported scan target %T", d)
		}
	}
	return nil
}

// hijackableConn mimics *pgxpool.Conn, which can be detached from its pool.
type hijackableConn struct {
	*fakeConn
	hijacked bool
}

func (c *hijackableConn) Hijack() *pgx.Conn {
	c.hijacked = true
	return nil
}

func acquirerFor(lease rls.Lease) rls.Acquirer {
	return rls.AcquirerFunc(func(context.Context) (rls.Lease, error) {
		return lease, nil
	})
}
