package tenant

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dmitrymomot/tenantguard/pkg/clientip"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/principal"
	"github.com/dmitrymomot/tenantguard/pkg/requestid"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
	"github.com/dmitrymomot/tenantguard/pkg/session"
)

// Bind outcomes recorded on the tenant_binds_total counter.
const (
	ResultBound    = "bound"
	ResultPublic   = "public"
	ResultRejected = "rejected"
	ResultError    = "error"
	ResultNotFound = "not_found"
	ResultInactive = "inactive"
)

// Middleware binds every tenant-scoped request to a tenant context on a
// connection leased from acq, and clears that context on every exit path,
// including panics and cancelled requests. Handlers reach the connection
// with rls.ConnFromContext.
//
// Requests on public paths get a leased connection with an explicitly cleared
// context, reachable only through rls.UnboundConnFromContext. Tenant-scoped requests without a usable tenant are rejected with
// 403 before the handler runs.
func Middleware(acq rls.Acquirer, opts ...Option) func(http.Handler) http.Handler {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	if cfg.sources == nil {
		cfg.sources = cfg.defaultSources()
	}
	if cfg.cache == nil {
		cfg.cache = NewNoOpCache()
	}
	storeOpts := append([]rls.StoreOption{
		rls.WithStoreLogger(cfg.logger),
		rls.WithStoreMetrics(cfg.metrics),
	}, cfg.storeOpts...)

	m := &middleware{cfg: cfg, acq: acq, storeOpts: storeOpts}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if cfg.isPublic(r) {
				m.servePublic(w, r, next)
				return
			}
			m.serveTenant(w, r, next)
		})
	}
}

type middleware struct {
	cfg       *config
	acq       rls.Acquirer
	storeOpts []rls.StoreOption
}

func (m *middleware) servePublic(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()
	m.cfg.metrics.Bind(ResultPublic)

	sess, err := rls.OpenUnbound(ctx, m.acq, m.storeOpts...)
	if err != nil {
		m.cfg.logger.WarnContext(ctx, "public request proceeds without database session",
			logger.Path(r.URL.Path),
			logger.Error(err),
		)
		next.ServeHTTP(w, r)
		return
	}
	defer m.close(ctx, sess)

	next.ServeHTTP(w, r.WithContext(rls.WithSession(ctx, sess)))
}

func (m *middleware) serveTenant(w http.ResponseWriter, r *http.Request, next http.Handler) {
	ctx := r.Context()

	id, source, ok := m.extract(r)
	if !ok {
		m.reject(w, r, ErrTenantRequired, "missing_tenant")
		return
	}

	t, err := m.lookup(ctx, id)
	if err != nil {
		m.fail(w, r, id, err)
		return
	}

	sess, err := rls.Open(ctx, m.acq, id.String(), m.storeOpts...)
	if err != nil {
		m.cfg.logger.ErrorContext(ctx, "failed to bind tenant context",
			logger.TenantID(id.String()),
			logger.Error(err),
		)
		m.reject(w, r, ErrTenantRequired, "tenant_bind_failed")
		return
	}
	// Runs on return and while a panic unwinds; the panic continues afterwards.
	defer m.close(ctx, sess)

	m.cfg.metrics.Bind(ResultBound)
	if m.cfg.contextHeader != "" {
		w.Header().Set(m.cfg.contextHeader, id.String())
	}
	m.cfg.logger.DebugContext(ctx, "tenant context bound",
		logger.TenantID(id.String()),
		logger.Source(source),
		logger.Path(r.URL.Path),
	)

	ctx = WithTenant(ctx, t)
	ctx = rls.WithSession(ctx, sess)
	next.ServeHTTP(w, r.WithContext(ctx))
}

// extract walks the sources in order and returns the first valid tenant id.
func (m *middleware) extract(r *http.Request) (uuid.UUID, string, bool) {
	ctx := r.Context()
	for _, src := range m.cfg.sources {
		raw, err := src.Extract(r)
		if err != nil {
			m.cfg.logger.WarnContext(ctx, "tenant source unreadable",
				logger.Source(src.Name()),
				logger.Error(err),
			)
			continue
		}
		if raw == "" {
			continue
		}
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			m.cfg.logger.WarnContext(ctx, "invalid tenant identifier",
				logger.Source(src.Name()),
				slog.String("value", truncate(raw, 64)),
			)
			continue
		}
		return id, src.Name(), true
	}
	return uuid.Nil, "", false
}

func (m *middleware) lookup(ctx context.Context, id uuid.UUID) (*Tenant, error) {
	if m.cfg.provider == nil {
		return &Tenant{ID: id, Active: true, RLSEnabled: true}, nil
	}

	key := id.String()
	t, ok := m.cfg.cache.Get(ctx, key)
	if !ok {
		var err error
		if t, err = m.cfg.provider.GetByID(ctx, id); err != nil {
			return nil, err
		}
		m.cfg.cache.Set(ctx, key, t, m.cfg.cacheTTL)
	}

	if !t.Active {
		return nil, ErrInactiveTenant
	}
	if !t.RLSEnabled {
		m.cfg.logger.WarnContext(ctx, "tenant is not marked for row-level security", logger.TenantID(key))
	}
	return t, nil
}

func (m *middleware) fail(w http.ResponseWriter, r *http.Request, id uuid.UUID, err error) {
	ctx := r.Context()
	switch {
	case errors.Is(err, ErrTenantNotFound):
		m.cfg.metrics.Bind(ResultNotFound)
		m.cfg.logger.WarnContext(ctx, "unknown tenant", logger.TenantID(id.String()), logger.Path(r.URL.Path))
	case errors.Is(err, ErrInactiveTenant):
		m.cfg.metrics.Bind(ResultInactive)
		m.cfg.logger.WarnContext(ctx, "inactive tenant", logger.TenantID(id.String()), logger.Path(r.URL.Path))
	default:
		m.cfg.metrics.Bind(ResultError)
		m.cfg.logger.ErrorContext(ctx, "tenant lookup failed", logger.TenantID(id.String()), logger.Error(err))
	}
	m.cfg.errorHandler(w, r, err)
}

// reject logs a security event and answers with the error handler.
func (m *middleware) reject(w http.ResponseWriter, r *http.Request, err error, event string) {
	ctx := r.Context()
	m.cfg.metrics.Bind(ResultRejected)
	logger.Critical(ctx, m.cfg.logger, "tenant context required but not established",
		logger.SecurityEvent(event),
		logger.UserID(userID(ctx)),
		logger.ClientIP(clientip.FromRequest(r)),
		logger.Path(r.URL.Path),
		logger.Method(r.Method),
		logger.RequestID(requestid.FromContext(ctx)),
	)
	m.cfg.errorHandler(w, r, err)
}

func (m *middleware) close(ctx context.Context, sess *rls.Session) {
	if err := sess.Close(ctx); err != nil {
		m.cfg.logger.ErrorContext(ctx, "tenant context cleanup failed",
			logger.TenantID(sess.TenantID()),
			logger.Error(err),
		)
	}
}

func userID(ctx context.Context) string {
	if sub := principal.SubjectFromContext(ctx); sub != "" {
		return sub
	}
	if s, ok := session.FromContext(ctx); ok {
		return s.UserID
	}
	return ""
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// RequireTenant creates middleware that ensures a tenant is present in the context.
// It protects tenant-only routes nested under a public prefix.
func RequireTenant(errorHandler ErrorHandler) func(http.Handler) http.Handler {
	if errorHandler == nil {
		errorHandler = defaultErrorHandler
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := FromContext(r.Context()); !ok {
				errorHandler(w, r, ErrNoTenantInContext)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
