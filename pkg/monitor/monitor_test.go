package monitor_test

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
	"github.com/dmitrymomot/tenantguard/pkg/monitor"
)

func boundTo(id string) monitor.TenantFunc {
	return func(context.Context) string { return id }
}

func jsonHandler(body string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(body))
	})
}

func setup(t *testing.T, opts ...monitor.Option) (func(http.Handler) http.Handler, *bytes.Buffer, *metrics.Recorder) {
	t.Helper()
	var buf bytes.Buffer
	log := logger.New(logger.WithOutput(&buf), logger.WithJSONFormatter(), logger.WithLevel(slog.LevelDebug))
	rec := metrics.New(prometheus.NewRegistry())
	return monitor.Middleware(append([]monitor.Option{monitor.WithLogger(log), monitor.WithMetrics(rec)}, opts...)...), &buf, rec
}

func TestMiddleware(t *testing.T) {
	t.Parallel()

	t.Run("alerts without altering response", func(t *testing.T) {
		t.Parallel()

		body := `[{"id":1,"tenant_id":"` + tenantA + `"},{"id":2,"tenant_id":"` + tenantB + `"}]`
		mw, buf, rec := setup(t, monitor.WithTenantFunc(boundTo(tenantA)))

		w := httptest.NewRecorder()
		mw(jsonHandler(body)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, body, w.Body.String())

		out := buf.String()
		assert.Equal(t, 1, strings.Count(out, "response contains another tenant's data"))
		assert.Contains(t, out, `"level":"CRITICAL"`)
		assert.Contains(t, out, `"security_event":"cross_tenant_access"`)
		assert.Contains(t, out, `"found_tenant_id":"`+tenantB+`"`)
		assert.Contains(t, out, `"index":1`)
		assert.Equal(t, 1.0, testutil.ToFloat64(rec.CrossTenantViolations.WithLabelValues(http.MethodGet)))
	})

	t.Run("one alert per mismatching object", func(t *testing.T) {
		t.Parallel()

		body := `{"data":[{"tenant_id":"` + tenantB + `"},{"tenant_id":"` + tenantB + `"}]}`
		mw, buf, rec := setup(t, monitor.WithTenantFunc(boundTo(tenantA)))

		w := httptest.NewRecorder()
		mw(jsonHandler(body)).ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/api/records/search", nil))

		assert.Equal(t, 2, strings.Count(buf.String(), "response contains another tenant's data"))
		assert.Equal(t, 2.0, testutil.ToFloat64(rec.CrossTenantViolations.WithLabelValues(http.MethodPost)))
	})

	t.Run("unbound requests are not inspected", func(t *testing.T) {
		t.Parallel()

		mw, buf, _ := setup(t)
		w := httptest.NewRecorder()
		mw(jsonHandler(`{"tenant_id":"`+tenantB+`"}`)).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, buf.String())
	})

	t.Run("non json responses are ignored", func(t *testing.T) {
		t.Parallel()

		mw, buf, _ := setup(t, monitor.WithTenantFunc(boundTo(tenantA)))
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "text/plain")
			_, _ = w.Write([]byte(`{"tenant_id":"` + tenantB + `"}`))
		})
		w := httptest.NewRecorder()
		mw(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/export", nil))

		assert.Empty(t, buf.String())
	})

	t.Run("oversized responses pass through uninspected", func(t *testing.T) {
		t.Parallel()

		body := `{"tenant_id":"` + tenantB + `","blob":"` + strings.Repeat("x", 256) + `"}`
		mw, buf, _ := setup(t, monitor.WithTenantFunc(boundTo(tenantA)), monitor.WithMaxBodyBytes(64))
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			for i := 0; i < len(body); i += 32 {
				_, _ = w.Write([]byte(body[i:min(i+32, len(body))]))
			}
		})

		w := httptest.NewRecorder()
		mw(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))

		assert.Equal(t, body, w.Body.String())
		assert.NotContains(t, buf.String(), "another tenant")
		assert.Contains(t, buf.String(), "response too large for tenant inspection")
	})

	t.Run("flush reaches the client", func(t *testing.T) {
		t.Parallel()

		mw, _, _ := setup(t, monitor.WithTenantFunc(boundTo(tenantA)))
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`[]`))
			require.NoError(t, http.NewResponseController(w).Flush())
		})

		w := httptest.NewRecorder()
		mw(h).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/records", nil))
		assert.True(t, w.Flushed)
	})

	t.Run("problem json is inspected", func(t *testing.T) {
		t.Parallel()

		mw, buf, _ := setup(t, monitor.WithTenantFunc(boundTo(tenantA)))
		h := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/problem+json")
			w.WriteHeader(http.StatusConflict)
			_, _ = w.Write([]byte(`{"tenant_id":"` + tenantB + `"}`))
		})

		w := httptest.NewRecorder()
		mw(h).ServeHTTP(w, httptest.NewRequest(http.MethodPut, "/api/records/1", nil))
		assert.Equal(t, http.StatusConflict, w.Code)
		assert.Contains(t, buf.String(), "another tenant")
	})
}
