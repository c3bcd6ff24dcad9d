package cli

import (
	"log/slog"
	"os"

	"github.com/dmitrymomot/tenantguard/internal/records"
	"github.com/dmitrymomot/tenantguard/pkg/config"
	"github.com/dmitrymomot/tenantguard/pkg/cookie"
	"github.com/dmitrymomot/tenantguard/pkg/httpserver"
	"github.com/dmitrymomot/tenantguard/pkg/jwt"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/monitor"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/principal"
	"github.com/dmitrymomot/tenantguard/pkg/redis"
	"github.com/dmitrymomot/tenantguard/pkg/requestid"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
	"github.com/dmitrymomot/tenantguard/pkg/session"
	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

// Config aggregates the settings of every component the binary wires.
type Config struct {
	Env     string `env:"APP_ENV" envDefault:"development"`
	Service string `env:"APP_NAME" envDefault:"tenantguard"`

	PG      pg.Config
	Redis   redis.Config
	HTTP    httpserver.Config
	Tenant  tenant.Config
	RLS     rls.Config
	Session session.Config
	JWT     jwt.Config
	Cookie  cookie.Config
	Monitor monitor.Config
	Records records.Config
}

func loadConfig() (Config, error) {
	return config.Parse[Config]()
}

func newLogger(cfg Config) *slog.Logger {
	return logger.New(
		logger.WithEnvironment(cfg.Env, cfg.Service),
		logger.WithOutput(os.Stderr),
		logger.WithContextExtractors(
			requestid.LoggerExtractor(),
			tenant.LoggerExtractor(),
			principal.LoggerExtractor(),
		),
	)
}
