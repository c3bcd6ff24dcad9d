package tenant

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/dmitrymomot/tenantguard/pkg/cookie"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

// ErrorHandler writes the response for a rejected request.
type ErrorHandler func(w http.ResponseWriter, r *http.Request, err error)

// config holds middleware configuration.
type config struct {
	sources       []Source
	header        string
	sessionKey    string
	cookieName    string
	cookies       *cookie.Manager
	publicPaths   []string
	publicMatch   func(*http.Request) bool
	provider      Provider
	cache         Cache
	cacheTTL      time.Duration
	contextHeader string
	errorHandler  ErrorHandler
	logger        *slog.Logger
	metrics       *metrics.Recorder
	storeOpts     []rls.StoreOption
}

// Option configures the middleware.
type Option func(*config)

func defaultConfig() *config {
	return &config{
		header:        DefaultHeader,
		sessionKey:    DefaultSessionKey,
		cookieName:    DefaultCookieName,
		publicPaths:   append([]string(nil), DefaultPublicPaths...),
		cacheTTL:      DefaultCacheTTL,
		contextHeader: DefaultContextHeader,
		errorHandler:  defaultErrorHandler,
		logger:        slog.Default(),
	}
}

// WithSources replaces the extraction order.
func WithSources(sources ...Source) Option {
	return func(c *config) {
		c.sources = nil
		for _, s := range sources {
			if s != nil {
				c.sources = append(c.sources, s)
			}
		}
	}
}

// WithSignedCookies makes the cookie source verify signatures with m.
func WithSignedCookies(m *cookie.Manager) Option {
	return func(c *config) { c.cookies = m }
}

// WithPublicPaths replaces the public path prefixes. A prefix matches whole
// path segments: "/health" covers "/health" and "/health/live" but not
// "/healthplans".
func WithPublicPaths(prefixes ...string) Option {
	return func(c *config) {
		c.publicPaths = c.publicPaths[:0]
		for _, p := range prefixes {
			if p = strings.TrimSpace(p); p != "" {
				c.publicPaths = append(c.publicPaths, p)
			}
		}
	}
}

// WithPublicMatcher marks additional requests as public.
func WithPublicMatcher(fn func(*http.Request) bool) Option {
	return func(c *config) { c.publicMatch = fn }
}

// WithProvider validates extracted tenants against p.
// Without a provider any well-formed tenant id is bound.
func WithProvider(p Provider) Option {
	return func(c *config) { c.provider = p }
}

// WithCache sets a custom cache implementation for provider lookups.
func WithCache(cache Cache) Option {
	return func(c *config) { c.cache = cache }
}

// WithCacheTTL sets how long provider lookups are cached.
func WithCacheTTL(ttl time.Duration) Option {
	return func(c *config) {
		if ttl > 0 {
			c.cacheTTL = ttl
		}
	}
}

// WithContextHeader sets the response header carrying the bound tenant.
// An empty name disables the header.
func WithContextHeader(name string) Option {
	return func(c *config) { c.contextHeader = name }
}

// WithErrorHandler sets a custom error handler.
func WithErrorHandler(handler ErrorHandler) Option {
	return func(c *config) {
		if handler != nil {
			c.errorHandler = handler
		}
	}
}

// WithLogger sets a custom logger for the middleware.
func WithLogger(logger *slog.Logger) Option {
	return func(c *config) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// WithMetrics records middleware outcomes on m.
func WithMetrics(m *metrics.Recorder) Option {
	return func(c *config) { c.metrics = m }
}

// WithStoreOptions passes options to the context store of every session.
func WithStoreOptions(opts ...rls.StoreOption) Option {
	return func(c *config) { c.storeOpts = append(c.storeOpts, opts...) }
}

// WithConfig applies environment settings.
func WithConfig(cfg Config) Option {
	return func(c *config) {
		if cfg.Header != "" {
			c.header = cfg.Header
		}
		if cfg.SessionKey != "" {
			c.sessionKey = cfg.SessionKey
		}
		if cfg.CookieName != "" {
			c.cookieName = cfg.CookieName
		}
		switch {
		case cfg.DisableContextHeader:
			c.contextHeader = ""
		case cfg.ContextHeader != "":
			c.contextHeader = cfg.ContextHeader
		}
		if len(cfg.PublicPaths) > 0 {
			WithPublicPaths(cfg.PublicPaths...)(c)
		}
		WithCacheTTL(cfg.CacheTTL)(c)
	}
}

func (c *config) defaultSources() []Source {
	cookieSrc := CookieSource(c.cookieName)
	if c.cookies != nil {
		cookieSrc = SignedCookieSource(c.cookies, c.cookieName)
	}
	return []Source{
		HeaderSource(c.header),
		PrincipalSource(),
		SessionSource(c.sessionKey),
		cookieSrc,
	}
}

func (c *config) isPublic(r *http.Request) bool {
	for _, p := range c.publicPaths {
		if matchPrefix(r.URL.Path, p) {
			return true
		}
	}
	return c.publicMatch != nil && c.publicMatch(r)
}

// matchPrefix reports whether path is prefix or lies below it.
func matchPrefix(path, prefix string) bool {
	dir := strings.TrimSuffix(prefix, "/")
	return path == dir || strings.HasPrefix(path, dir+"/")
}

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

func defaultErrorHandler(w http.ResponseWriter, _ *http.Request, err error) {
	status, body := http.StatusInternalServerError, errorResponse{"internal_error", "internal server error"}
	switch {
	case errors.Is(err, ErrTenantNotFound):
		status, body = http.StatusNotFound, errorResponse{"tenant_not_found", "tenant not found"}
	case errors.Is(err, ErrInactiveTenant):
		status, body = http.StatusForbidden, errorResponse{"tenant_inactive", "tenant is inactive"}
	case errors.Is(err, ErrTenantRequired), errors.Is(err, ErrNoTenantInContext):
		status, body = http.StatusForbidden, errorResponse{"tenant_required", "tenant required for this resource"}
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
