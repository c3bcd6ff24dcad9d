package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/tenant"
)

func newTenantsCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tenants",
		Short: "Manage the tenants table",
	}
	cmd.AddCommand(
		newTenantsCreateCommand(),
		newTenantsListCommand(),
		newTenantsSetActiveCommand("activate", true),
		newTenantsSetActiveCommand("deactivate", false),
	)
	return cmd
}

func newTenantsCreateCommand() *cobra.Command {
	var (
		owner    string
		inactive bool
		noRLS    bool
	)

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Register a tenant and print its id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			t := &tenant.Tenant{
				Name:       args[0],
				OwnerID:    owner,
				Active:     !inactive,
				RLSEnabled: !noRLS,
			}
			if err := tenant.NewPGProvider(a.pool).Create(ctx, t); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), t.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner user id")
	cmd.Flags().BoolVar(&inactive, "inactive", false, "create the tenant deactivated")
	cmd.Flags().BoolVar(&noRLS, "no-rls", false, "mark the tenant as not relying on row-level security")
	return cmd
}

func newTenantsListCommand() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List tenants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			list, err := tenant.NewPGProvider(a.pool).List(ctx)
			if err != nil {
				return err
			}
			return printTenants(cmd, list, asJSON)
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func printTenants(cmd *cobra.Command, list []*tenant.Tenant, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		if list == nil {
			list = []*tenant.Tenant{}
		}
		return enc.Encode(list)
	}
	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tACTIVE\tRLS\tOWNER\tCREATED")
	for _, t := range list {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			t.ID, t.Name, strconv.FormatBool(t.Active), strconv.FormatBool(t.RLSEnabled),
			t.OwnerID, t.CreatedAt.UTC().Format(time.RFC3339))
	}
	return w.Flush()
}

func newTenantsSetActiveCommand(use string, active bool) *cobra.Command {
	short := "Mark a tenant active"
	if !active {
		short = "Mark a tenant inactive; its requests are rejected"
	}
	return &cobra.Command{
		Use:   use + " <id>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := uuid.Parse(args[0])
			if err != nil {
				return fmt.Errorf("%w: %s", tenant.ErrInvalidIdentifier, args[0])
			}

			ctx := cmd.Context()
			a, err := setup(ctx)
			if err != nil {
				return err
			}
			defer a.close()

			return tenant.NewPGProvider(a.pool).SetActive(ctx, id, active)
		},
	}
}
