// Package cli implements the tenantguard command line: the HTTP server, the
// migrations and the administrative commands for policies and tenants.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/config"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
)

// Execute runs the root command and prints the error, if any.
func Execute(version string) error {
	cmd := NewRootCommand(version)
	if err := cmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return err
	}
	return nil
}

// NewRootCommand builds the command tree.
func NewRootCommand(version string) *cobra.Command {
	var envFiles []string

	root := &cobra.Command{
		Use:           "tenantguard",
		Short:         "Tenant isolation for PostgreSQL through row-level security",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadEnvFiles(envFiles...)
		},
	}
	root.PersistentFlags().StringSliceVar(&envFiles, "env-file", nil, "additional .env files to load")

	root.AddCommand(
		newServeCommand(),
		newMigrateCommand(),
		newRLSCommand(),
		newTenantsCommand(),
		newTokenCommand(),
	)
	return root
}

// app holds what every database command needs.
type app struct {
	cfg  Config
	log  *slog.Logger
	pool *pgxpool.Pool
}

// setup loads the configuration and connects to PostgreSQL.
// The caller closes the pool.
func setup(ctx context.Context) (*app, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	log := newLogger(cfg)

	pool, err := pg.Connect(ctx, cfg.PG, log)
	if err != nil {
		log.ErrorContext(ctx, "database connection failed", logger.Error(err))
		return nil, err
	}
	return &app{cfg: cfg, log: log, pool: pool}, nil
}

func (a *app) close() {
	a.pool.Close()
}
