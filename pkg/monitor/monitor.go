package monitor

import (
	"context"
	"log/slog"
	"mime"
	"net/http"
	"strings"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
	"github.com/dmitrymomot/tenantguard/pkg/requestid"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// TenantFunc returns the tenant bound to a request, "" when none is.
type TenantFunc func(ctx context.Context) string

type config struct {
	maxBody int64
	logger  *slog.Logger
	metrics *metrics.Recorder
	tenant  TenantFunc
}

// Option configures the monitor.
type Option func(*config)

// WithMaxBodyBytes caps how much of each response is inspected. Larger
// responses are delivered but not checked.
func WithMaxBodyBytes(n int64) Option {
	return func(c *config) {
		if n > 0 {
			c.maxBody = n
		}
	}
}

// WithLogger sets the logger for violations.
func WithLogger(l *slog.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics counts violations on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *config) { c.metrics = m }
}

// WithTenantFunc overrides how the bound tenant is found.
func WithTenantFunc(fn TenantFunc) Option {
	return func(c *config) {
		if fn != nil {
			c.tenant = fn
		}
	}
}

// WithConfig applies environment settings.
func WithConfig(cfg Config) Option {
	return WithMaxBodyBytes(cfg.MaxBodyBytes)
}

// boundTenant reads the tenant of the request's database session.
func boundTenant(ctx context.Context) string {
	if s, ok := rls.SessionFromContext(ctx); ok {
		return s.TenantID()
	}
	return ""
}

// Middleware inspects JSON responses of tenant-bound requests.
func Middleware(opts ...Option) func(http.Handler) http.Handler {
	cfg := &config{
		maxBody: DefaultMaxBodyBytes,
		logger:  slog.Default(),
		tenant:  boundTenant,
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			bound := cfg.tenant(r.Context())
			if bound == "" {
				next.ServeHTTP(w, r)
				return
			}

			tw := &teeWriter{ResponseWriter: w, limit: cfg.maxBody}
			next.ServeHTTP(tw, r)

			if !isJSON(tw.Header().Get("Content-Type")) {
				return
			}
			if tw.truncated {
				cfg.logger.DebugContext(r.Context(), "response too large for tenant inspection",
					logger.Path(r.URL.Path),
					slog.Int64("limit", cfg.maxBody),
				)
				return
			}
			cfg.report(r, bound, Inspect(bound, tw.buf.Bytes()))
		})
	}
}

func (c *config) report(r *http.Request, bound string, violations []Violation) {
	ctx := r.Context()
	for _, v := range violations {
		c.metrics.CrossTenantViolation(r.Method)
		attrs := []slog.Attr{
			logger.SecurityEvent("cross_tenant_access"),
			logger.TenantID(bound),
			slog.String("found_tenant_id", v.Found),
			slog.Int("index", v.Index),
			logger.Path(r.URL.Path),
			logger.Method(r.Method),
			logger.RequestID(requestid.FromContext(ctx)),
		}
		if v.Envelope != "" {
			attrs = append(attrs, slog.String("envelope", v.Envelope))
		}
		logger.Critical(ctx, c.logger, "response contains another tenant's data", attrs...)
	}
}

func isJSON(contentType string) bool {
	if contentType == "" {
		return false
	}
	mt, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mt == "application/json" || strings.HasSuffix(mt, "+json")
}
