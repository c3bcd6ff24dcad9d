package cli

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/logger"
	"github.com/dmitrymomot/tenantguard/pkg/metrics"
	"github.com/dmitrymomot/tenantguard/pkg/rls"
)

func newRLSCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rls",
		Short: "Manage row-level security policies",
	}
	cmd.AddCommand(newRLSApplyCommand(), newRLSInspectCommand(), newRLSDiscoverCommand(), newRLSRemoveCommand())
	return cmd
}

type applyFlags struct {
	all      bool
	force    bool
	strict   bool
	manifest string
	schemas  []string
}

func newRLSApplyCommand() *cobra.Command {
	var f applyFlags

	cmd := &cobra.Command{
		Use:   "apply [table...]",
		Short: "Enable row-level security and install the tenant isolation policy",
		Long: `Apply the tenant isolation policy to the named tables.

Tables are given as name or schema.name. --all applies to every table with a
tenant_id column in the configured schemas. A manifest file lists tables and
settings; its mode, roles and force_row_security override the environment.

Tables already carrying the identical policy are left untouched. A table
without a tenant_id column is skipped and reported.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && !f.all && f.manifest == "" {
				return errors.New("name at least one table, or pass --all or --manifest")
			}

			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			opts, tables, schemas, err := f.resolve(a.cfg.RLS, args)
			if err != nil {
				return err
			}
			opts = append(opts,
				rls.WithEngineLogger(a.log),
				rls.WithEngineMetrics(metrics.New(prometheus.NewRegistry())),
			)
			engine := rls.NewEngine(a.pool, opts...)

			if len(schemas) > 0 {
				found, err := engine.Discover(ctx, schemas...)
				if err != nil {
					return fmt.Errorf("discover tenant tables: %w", err)
				}
				tables = mergeTables(tables, found)
			}
			if len(tables) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "no tenant-scoped tables found")
				return nil
			}

			report := engine.Apply(ctx, tables, f.force)
			printReport(cmd, report)
			a.log.InfoContext(ctx, "policy application finished",
				logger.Component("rls"),
				slog.String("summary", report.String()),
			)
			return report.Err()
		},
	}

	cmd.Flags().BoolVar(&f.all, "all", false, "apply to every table with a tenant_id column")
	cmd.Flags().BoolVar(&f.force, "force", false, "recreate policies even when unchanged")
	cmd.Flags().BoolVar(&f.strict, "strict", false, "deny all rows when no tenant is bound")
	cmd.Flags().StringVar(&f.manifest, "manifest", "", "YAML manifest listing tables and settings")
	cmd.Flags().StringSliceVar(&f.schemas, "schema", nil, "schemas searched by --all (default RLS_SCHEMAS)")
	return cmd
}

// resolve merges the environment, the manifest and the flags into engine
// options, the explicit table list and the schemas to discover.
func (f applyFlags) resolve(cfg rls.Config, args []string) ([]rls.EngineOption, []string, []string, error) {
	if f.strict {
		cfg.Mode = rls.ModeStrict.String()
	}
	opts, err := cfg.EngineOptions()
	if err != nil {
		return nil, nil, nil, err
	}
	tables := slices.Clone(args)

	var schemas []string
	if f.all {
		schemas = f.schemas
		if len(schemas) == 0 {
			schemas = cfg.Schemas
		}
	}

	path := f.manifest
	if path == "" {
		path = cfg.Manifest
	}
	if path != "" && (f.manifest != "" || len(args) == 0) {
		m, err := rls.LoadManifest(path)
		if err != nil {
			return nil, nil, nil, err
		}
		opts = append(opts, m.EngineOptions()...)
		if f.strict {
			opts = append(opts, rls.WithMode(rls.ModeStrict))
		}
		tables = append(tables, m.Tables...)
		schemas = append(schemas, m.Discover...)
	}
	return opts, tables, schemas, nil
}

func mergeTables(a, b []string) []string {
	seen := make(map[string]struct{}, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, t := range append(slices.Clone(a), b...) {
		key := t
		if !strings.Contains(key, ".") {
			key = rls.DefaultSchema + "." + key
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, t)
	}
	return out
}

func printReport(cmd *cobra.Command, report rls.Report) {
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "TABLE\tOUTCOME\tERROR")
	for _, res := range report.Results {
		msg := ""
		if res.Err != nil {
			msg = res.Err.Error()
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", res.Table, res.Outcome, msg)
	}
	_ = w.Flush()
	fmt.Fprintln(cmd.OutOrStdout(), report.String())
}

func newRLSInspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <table>",
		Short: "Show the live policies on a table",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			policies, err := rls.NewEngine(a.pool).Inspect(ctx, args[0])
			if err != nil {
				return err
			}
			if len(policies) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "%s has no policies\n", args[0])
				return nil
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "NAME\tCOMMAND\tPERMISSIVE\tROLES\tUSING\tWITH CHECK")
			for _, p := range policies {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					p.Name, p.Command, p.Permissive, strings.Join(p.Roles, ","), p.Using, p.WithCheck)
			}
			return w.Flush()
		},
	}
}

func newRLSDiscoverCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "discover [schema...]",
		Short: "List tables carrying a tenant_id column",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			schemas := args
			if len(schemas) == 0 {
				schemas = a.cfg.RLS.Schemas
			}
			tables, err := rls.NewEngine(a.pool).Discover(ctx, schemas...)
			if err != nil {
				return err
			}
			for _, t := range tables {
				fmt.Fprintln(cmd.OutOrStdout(), t)
			}
			return nil
		},
	}
}

func newRLSRemoveCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "remove <table>",
		Short: "Drop the tenant isolation policy and disable row-level security",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			if err := rls.NewEngine(a.pool, rls.WithEngineLogger(a.log)).Remove(ctx, args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "removed policy from %s\n", args[0])
			return nil
		},
	}
}
