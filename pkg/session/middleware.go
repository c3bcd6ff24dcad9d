package session

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
)

type middlewareConfig struct {
	cookieName string
	headerName string
	logger     *slog.Logger
}

// Option configures the middleware.
type Option func(*middlewareConfig)

// WithCookieName sets the token cookie name.
func WithCookieName(name string) Option {
	return func(c *middlewareConfig) { c.cookieName = name }
}

// WithHeaderName sets the token header name. An empty name disables the header.
func WithHeaderName(name string) Option {
	return func(c *middlewareConfig) { c.headerName = name }
}

// WithLogger sets the logger for store failures.
func WithLogger(l *slog.Logger) Option {
	return func(c *middlewareConfig) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithConfig applies cookie and header names from cfg.
func WithConfig(cfg Config) Option {
	return func(c *middlewareConfig) {
		c.cookieName = cfg.CookieName
		c.headerName = cfg.HeaderName
	}
}

// Middleware loads the session named by the request token and stores it in
// the context. Requests without a usable session continue without one.
func Middleware(store Store, opts ...Option) func(http.Handler) http.Handler {
	cfg := &middlewareConfig{
		cookieName: "sid",
		headerName: "X-Session-Token",
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := cfg.token(r)
			if token == "" {
				next.ServeHTTP(w, r)
				return
			}

			sess, err := store.Get(r.Context(), token)
			switch {
			case err == nil:
				r = r.WithContext(WithSession(r.Context(), sess))
			case errors.Is(err, ErrSessionNotFound), errors.Is(err, ErrSessionExpired):
			default:
				cfg.logger.WarnContext(r.Context(), "failed to load session", logger.Error(err))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (c *middlewareConfig) token(r *http.Request) string {
	if c.headerName != "" {
		if t := r.Header.Get(c.headerName); t != "" {
			return t
		}
	}
	if c.cookieName != "" {
		if ck, err := r.Cookie(c.cookieName); err == nil {
			return ck.Value
		}
	}
	return ""
}
