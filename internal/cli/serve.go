package cli

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/internal/records"
	"github.com/dmitrymomot/tenantguard/pkg/clientip"
	"github.com/dmitrymomot/tenantguard/pkg/cookie"
	"github.com/dmitrymomot/tenantguard/pkg/httpserver"
	"github.com/dmitrymomot/tenantguard/pkg/jwt"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
	"github.com/dmitrymomot/tenantguard/pkg/monitor"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/redis"
	"github.com/dmitrymomot/tenantguard/pkg/requestid"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
	"github.com/dmitrymomot/tenantguard/pkg/session"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

func newServeCommand() *cobra.Command {
	var migrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		Long: `Run the HTTP server.

Every request outside the public paths is bound to a tenant taken from the
X-Tenant-ID header, the access token, the session or the tenant cookie, in
that order. Requests without one are rejected with 403.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if migrate {
				if err := runMigrations(ctx, a, true, cmd); err != nil {
					return err
				}
			}
			return serve(ctx, a)
		},
	}
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply migrations before serving")
	return cmd
}

func serve(ctx context.Context, a *app) error {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	deps := deps{
		cfg:      a.cfg,
		log:      a.log,
		acq:      rls.PoolAcquirer(a.pool),
		provider: tenant.NewPGProvider(a.pool),
		metrics:  metrics.New(reg),
		registry: reg,
		checks:   []httpserver.Check{{Name: "postgres", Fn: pg.Healthcheck(a.pool)}},
	}

	if a.cfg.Redis.Enabled() {
		client, err := redis.Connect(ctx, a.cfg.Redis, a.log)
		if err != nil {
			return err
		}
		defer func() {
			if err := client.Close(); err != nil {
				a.log.Error("failed to close redis client", logger.Error(err))
			}
		}()
		deps.sessions = session.NewRedisStore(client, a.cfg.Session.RedisPrefix)
		deps.cache = tenant.NewRedisCache(client, tenant.DefaultRedisCachePrefix, a.log)
		deps.checks = append(deps.checks, httpserver.Check{Name: "redis", Fn: redis.Healthcheck(client)})
	} else {
		mem := session.NewMemoryStore(a.cfg.Session.CleanupInterval)
		defer mem.Close()
		deps.sessions = mem
		deps.cache = tenant.NewInMemoryCacheWithSize(a.cfg.Tenant.CacheSize)
	}
	defer deps.cache.Close()

	if len(a.cfg.Cookie.Secrets) > 0 {
		m, err := cookie.NewFromConfig(a.cfg.Cookie)
		if err != nil {
			return err
		}
		deps.cookies = m
	}
	if a.cfg.JWT.Secret != "" {
		svc, err := jwt.NewFromConfig(a.cfg.JWT)
		if err != nil {
			return err
		}
		deps.tokens = svc
	}

	handler, err := deps.routes()
	if err != nil {
		return err
	}

	srv := httpserver.NewFromConfig(a.cfg.HTTP, httpserver.WithLogger(a.log))
	return srv.Run(ctx, handler)
}

// deps are the collaborators of the HTTP handler. Optional ones are nil
// when not configured.
type deps struct {
	cfg      Config
	log      *slog.Logger
	acq      rls.Acquirer
	provider tenant.Provider
	cache    tenant.Cache
	sessions session.Store
	cookies  *cookie.Manager
	tokens   *jwt.Service
	metrics  *metrics.Recorder
	registry *prometheus.Registry
	checks   []httpserver.Check
}

func (d deps) routes() (http.Handler, error) {
	store, err := records.NewStore(d.cfg.Records)
	if err != nil {
		return nil, err
	}

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(requestid.Middleware)
	r.Use(clientip.New(clientip.DefaultHeaders...).Middleware)
	if d.sessions != nil {
		r.Use(session.Middleware(d.sessions, session.WithConfig(d.cfg.Session), session.WithLogger(d.log)))
	}
	if d.tokens != nil {
		r.Use(jwt.MiddlewareWithConfig(jwt.MiddlewareConfig{Service: d.tokens, Logger: d.log}))
	}
	r.Use(tenant.Middleware(d.acq, d.tenantOptions()...))
	if d.cfg.Monitor.Enabled {
		r.Use(monitor.Middleware(
			monitor.WithConfig(d.cfg.Monitor),
			monitor.WithLogger(d.log),
			monitor.WithMetrics(d.metrics),
		))
	}

	r.Get("/health/live", httpserver.LivenessHandler())
	r.Get("/health/ready", httpserver.ReadinessHandler(d.log, d.cfg.HTTP.HealthTimeout, d.checks...))
	if d.registry != nil {
		r.Handle("/metrics", promhttp.HandlerFor(d.registry, promhttp.HandlerOpts{}))
	}

	r.With(tenant.RequireTenant(nil)).Get("/tenant", currentTenant)
	r.Mount("/records", records.NewHandler(store, d.log).Routes())
	return r, nil
}

func (d deps) tenantOptions() []tenant.Option {
	opts := []tenant.Option{
		tenant.WithConfig(d.cfg.Tenant),
		tenant.WithLogger(d.log),
		tenant.WithMetrics(d.metrics),
	}
	if d.provider != nil {
		opts = append(opts, tenant.WithProvider(d.provider))
	}
	if d.cache != nil {
		opts = append(opts, tenant.WithCache(d.cache))
	}

	switch {
	case !d.cfg.Tenant.SignedCookie:
	case d.cookies != nil:
		opts = append(opts, tenant.WithSignedCookies(d.cookies))
	default:
		d.log.Warn("tenant cookie source disabled: signed cookies required but COOKIE_SECRETS is empty")
		opts = append(opts, tenant.WithSources(
			tenant.HeaderSource(d.cfg.Tenant.Header),
			tenant.PrincipalSource(),
			tenant.SessionSource(d.cfg.Tenant.SessionKey),
		))
	}
	return opts
}

// currentTenant reports the tenant bound to the request.
func currentTenant(w http.ResponseWriter, r *http.Request) {
	t := tenant.MustFromContext(r.Context())
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(t)
}
