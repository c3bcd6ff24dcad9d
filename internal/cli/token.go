package cli

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/dmitrymomot/tenantguard/pkg/config"
	"github.com/dmitrymomot/tenantguard/pkg/jwt"
)

func newTokenCommand() *cobra.Command {
	var tenantID string

	cmd := &cobra.Command{
		Use:   "token <subject>",
		Short: "Issue a signed access token for local testing",
		Long: `Issue an HS256 token signed with JWT_SECRET.

The token carries the subject and, with --tenant, the tenant_id claim the
server uses when no X-Tenant-ID header is sent.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Parse[jwt.Config]()
			if err != nil {
				return err
			}
			if cfg.Secret == "" {
				return errors.New("JWT_SECRET is not set")
			}
			svc, err := jwt.NewFromConfig(cfg)
			if err != nil {
				return err
			}

			var id uuid.UUID
			if tenantID != "" {
				if id, err = uuid.Parse(tenantID); err != nil {
					return fmt.Errorf("invalid tenant id %q: %w", tenantID, err)
				}
			}
			token, err := svc.Issue(args[0], id)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), token)
			return nil
		},
	}
	cmd.Flags().StringVar(&tenantID, "tenant", "", "tenant id placed in the tenant_id claim")
	return cmd
}
