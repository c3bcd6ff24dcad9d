package tenant

import "time"

// Defaults for tenant extraction.
const (
	DefaultHeader        = "X-Tenant-ID"
	DefaultSessionKey    = "tenant_id"
	DefaultCookieName    = "tenant_id"
	DefaultContextHeader = "X-Tenant-Context"
	DefaultCacheTTL      = 5 * time.Minute
)

// DefaultPublicPaths are served without a tenant.
var DefaultPublicPaths = []string{
	"/health",
	"/healthz",
	"/ready",
	"/metrics",
	"/auth/",
	"/login",
	"/static/",
	"/favicon.ico",
}

// Config holds the environment-driven middleware settings.
type Config struct {
	Header        string        `env:"TENANT_HEADER" envDefault:"X-Tenant-ID"`
	SessionKey    string        `env:"TENANT_SESSION_KEY" envDefault:"tenant_id"`
	CookieName    string        `env:"TENANT_COOKIE" envDefault:"tenant_id"`
	ContextHeader string        `env:"TENANT_CONTEXT_HEADER" envDefault:"X-Tenant-Context"`
	PublicPaths   []string      `env:"TENANT_PUBLIC_PATHS" envSeparator:"," envDefault:"/health,/healthz,/ready,/metrics,/auth/,/login,/static/,/favicon.ico"`
	CacheTTL      time.Duration `env:"TENANT_CACHE_TTL" envDefault:"5m"`
	CacheSize     int           `env:"TENANT_CACHE_SIZE" envDefault:"1000"`
	// DisableContextHeader omits the response header carrying the bound tenant.
	DisableContextHeader bool `env:"TENANT_CONTEXT_HEADER_DISABLED" envDefault:"false"`
	// SignedCookie makes the cookie source verify signatures.
	SignedCookie bool `env:"TENANT_SIGNED_COOKIE" envDefault:"true"`
}
