package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/internal/records"
	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/pg"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

func newMigrateCommand() *cobra.Command {
	var withRecords bool

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Install the tenant context functions and the tenants table",
		Long: `Apply the embedded migrations.

The core set installs the tenants table and the set_tenant_context,
get_tenant_context, clear_tenant_context and is_tenant_admin functions.
--records also creates the demo records table, tracked in its own
version table.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()
			return runMigrations(ctx, a, withRecords, cmd)
		},
	}
	cmd.Flags().BoolVar(&withRecords, "records", true, "also migrate the demo records table")
	return cmd
}

func runMigrations(ctx context.Context, a *app, withRecords bool, cmd *cobra.Command) error {
	version, err := pg.Migrate(ctx, a.pool, a.cfg.PG, rls.Migrations, rls.MigrationsDir, a.log)
	if err != nil {
		return err
	}
	a.log.InfoContext(ctx, "core migrations applied", logger.Component("migrate"))
	fmt.Fprintf(cmd.OutOrStdout(), "core schema version %d\n", version)

	if !withRecords {
		return nil
	}
	recCfg := a.cfg.PG
	recCfg.MigrationsTable = records.MigrationsTable
	version, err = pg.Migrate(ctx, a.pool, recCfg, records.Migrations, records.MigrationsDir, a.log)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "records schema version %d\n", version)
	return nil
}
