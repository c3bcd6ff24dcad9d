package session

import "time"

// Config holds session settings.
type Config struct {
	// CookieName is the cookie carrying the session token.
	CookieName string `env:"SESSION_COOKIE_NAME" envDefault:"sid"`
	// HeaderName carries the token for non-browser clients.
	HeaderName string `env:"SESSION_HEADER_NAME" envDefault:"X-Session-Token"`
	// TTL is the lifetime of new sessions.
	TTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	// CleanupInterval purges expired in-memory sessions (0 to disable).
	CleanupInterval time.Duration `env:"SESSION_CLEANUP_INTERVAL" envDefault:"5m"`
	// RedisPrefix namespaces Redis keys.
	RedisPrefix string `env:"SESSION_REDIS_PREFIX" envDefault:"tenantguard:session:"`
}
