package records_test

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/internal/records"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

var errUnexpectedQuery = errors.New("unexpected query")

// clearOnlyLease accepts context maintenance statements and records any
// data query reaching it.
type clearOnlyLease struct {
	mu      sync.Mutex
	queries []string
}

func (l *clearOnlyLease) Exec(_ context.Context, sql string, _ ...any) (pgconn.CommandTag, error) {
	if strings.Contains(sql, "clear_tenant_context") || strings.HasPrefix(sql, "RESET") {
		return pgconn.CommandTag{}, nil
	}
	l.record(sql)
	return pgconn.CommandTag{}, errUnexpectedQuery
}

func (l *clearOnlyLease) QueryRow(_ context.Context, sql string, _ ...any) pgx.Row {
	l.record(sql)
	return errRow{}
}

func (l *clearOnlyLease) Query(_ context.Context, sql string, _ ...any) (pgx.Rows, error) {
	l.record(sql)
	return nil, errUnexpectedQuery
}

func (l *clearOnlyLease) Release() {}

func (l *clearOnlyLease) record(sql string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries = append(l.queries, sql)
}

func (l *clearOnlyLease) recorded() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.queries...)
}

type errRow struct{}

func (errRow) Scan(...any) error { return errUnexpectedQuery }

func newHandler(t *testing.T) http.Handler {
	t.Helper()
	store, err := records.NewStore(records.Config{Table: "records"})
	require.NoError(t, err)
	return records.NewHandler(store, slog.New(slog.DiscardHandler)).Routes()
}

func TestHandlerWithoutBoundConnection(t *testing.T) {
	t.Parallel()

	h := newHandler(t)

	tests := []struct {
		name   string
		method string
		target string
		body   string
		status int
		code   string
	}{
		{name: "list", method: http.MethodGet, target: "/", status: http.StatusForbidden, code: "tenant_required"},
		{name: "get", method: http.MethodGet, target: "/1", status: http.StatusForbidden, code: "tenant_required"},
		{name: "create", method: http.MethodPost, target: "/", body: `{"title":"x"}`, status: http.StatusForbidden, code: "tenant_required"},
		{name: "invalid id", method: http.MethodGet, target: "/abc", status: http.StatusBadRequest, code: "invalid_id"},
		{name: "negative id", method: http.MethodDelete, target: "/-4", status: http.StatusBadRequest, code: "invalid_id"},
		{name: "malformed body", method: http.MethodPost, target: "/", body: `{`, status: http.StatusBadRequest, code: "invalid_body"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			assert.Contains(t, rec.Body.String(), `"error":"`+tt.code+`"`)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestHandlerRejectsUnboundSession(t *testing.T) {
	t.Parallel()

	lease := &clearOnlyLease{}
	acq := rls.AcquirerFunc(func(context.Context) (rls.Lease, error) { return lease, nil })
	// Classifying the records routes as public leaves an unbound connection
	// in the request context.
	h := tenant.Middleware(acq, tenant.WithPublicPaths("/"))(newHandler(t))

	for _, tt := range []struct {
		method, target, body string
	}{
		{http.MethodGet, "/", ""},
		{http.MethodGet, "/1", ""},
		{http.MethodPost, "/", `{"title":"x"}`},
		{http.MethodDelete, "/1", ""},
	} {
		req := httptest.NewRequest(tt.method, tt.target, strings.NewReader(tt.body))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusForbidden, rec.Code, tt.method+" "+tt.target)
		assert.Contains(t, rec.Body.String(), `"error":"tenant_required"`)
	}
	assert.Empty(t, lease.recorded(), "no records query may run on an unbound connection")
}

func TestNewStoreRejectsInvalidTable(t *testing.T) {
	t.Parallel()

	_, err := records.NewStore(records.Config{Table: "records; DROP TABLE tenants"})
	assert.Error(t, err)

	_, err = records.NewStore(records.Config{Table: "app.records"})
	assert.NoError(t, err)
}
