package jwt

import "time"

// Config holds token settings.
type Config struct {
	Secret string        `env:"JWT_SECRET"`
	Issuer string        `env:"JWT_ISSUER" envDefault:"tenantguard"`
	TTL    time.Duration `env:"JWT_TTL" envDefault:"1h"`
}
