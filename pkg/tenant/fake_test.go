package tenant_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

const (
	tenantA = "6f1c2a4e-8d3b-4f5a-9c7e-1b2d3e4f5a6b"
	tenantB = "0a9b8c7d-6e5f-4a3b-8c1d-0e9f8a7b6c5d"
)

// fakeLease keeps the tenant parameter in memory the way a session would.
type fakeLease struct {
	mu       sync.Mutex
	current  string
	stmts    []string
	released int
	failSet  error
	// requireLiveCtx fails every call made with a cancelled context.
	requireLiveCtx bool
}

func (l *fakeLease) Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stmts = append(l.stmts, sql)
	if l.requireLiveCtx && ctx.Err() != nil {
		return pgconn.CommandTag{}, ctx.Err()
	}
	switch {
	case strings.HasPrefix(sql, "SELECT set_tenant_context"):
		if l.failSet != nil {
			return pgconn.CommandTag{}, l.failSet
		}
		l.current = fmt.Sprint(args[0])
	case strings.HasPrefix(sql, "SELECT clear_tenant_context"),
		strings.HasPrefix(sql, "SELECT set_config('app.current_tenant'"),
		sql == "RESET app.current_tenant":
		l.current = ""
	}
	return pgconn.NewCommandTag("SELECT 1"), nil
}

func (l *fakeLease) QueryRow(context.Context, string, ...any) pgx.Row {
	l.mu.Lock()
	defer l.mu.Unlock()
	return fakeRow{val: l.current}
}

func (l *fakeLease) Query(context.Context, string, ...any) (pgx.Rows, error) {
	return nil, errors.New("not supported")
}

func (l *fakeLease) Release() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.released++
}

func (l *fakeLease) tenant() string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.current
}

func (l *fakeLease) releases() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.released
}

func (l *fakeLease) executed(sql string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	for _, s := range l.stmts {
		if s == sql {
			return true
		}
	}
	return false
}

type fakeRow struct{ val string }

func (r fakeRow) Scan(dest ...any) error {
	*(dest[0].(*string)) = r.val
	return nil
}

// countingAcquirer hands out the same lease and counts acquisitions.
type countingAcquirer struct {
	mu    sync.Mutex
	lease *fakeLease
	err   error
	calls int
}

func (a *countingAcquirer) Acquire(context.Context) (rls.Lease, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	if a.err != nil {
		return nil, a.err
	}
	return a.lease, nil
}

func (a *countingAcquirer) acquired() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.calls
}

// syncBuffer guards log output written from handlers.
type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func testLogger() (*slog.Logger, *syncBuffer) {
	buf := &syncBuffer{}
	return logger.New(
		logger.WithOutput(buf),
		logger.WithJSONFormatter(),
		logger.WithLevel(slog.LevelDebug),
	), buf
}
