package admincli

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/vaultkeeper/internal/common"
	"github.com/dmitrijs2005/vaultkeeper/internal/passgen"
	"github.com/dmitrijs2005/vaultkeeper/internal/server"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/auth"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/services"
	"github.com/spf13/cobra"
)

func newMigrateCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply database schema migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			rm, err := server.OpenRepositories(ctx, e.cfg, e.logger)
			if err != nil {
				return err
			}
			defer rm.Close()

			if err := rm.RunMigrations(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			fmt.Fprintln(e.out, "Migrations applied.")
			return nil
		},
	}
}

func newTokenCmd(e *env) *cobra.Command {
	var (
		user string
		role string
		ttl  time.Duration
	)

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Issue a bearer token signed with the server secret",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if role != common.RoleUser && role != common.RoleAdmin {
				return fmt.Errorf("role must be %q or %q", common.RoleUser, common.RoleAdmin)
			}
			tok, err := auth.GenerateToken(user, role, []byte(e.cfg.SecretKey), ttl)
			if err != nil {
				return err
			}
			if e.jsonOutput {
				return e.writeJSON(map[string]string{"token": tok})
			}
			fmt.Fprintln(e.out, tok)
			return nil
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id the token identifies")
	cmd.Flags().StringVar(&role, "role", common.RoleUser, "role: user or admin")
	cmd.Flags().DurationVar(&ttl, "ttl", time.Hour, "token lifetime")
	_ = cmd.MarkFlagRequired("user")
	return cmd
}

func newPasswordCmd(e *env) *cobra.Command {
	var length int

	cmd := &cobra.Command{
		Use:   "password",
		Short: "Generate a random password",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := passgen.Generate(length)
			if err != nil {
				return err
			}
			if e.jsonOutput {
				return e.writeJSON(map[string]string{"password": p})
			}
			fmt.Fprintln(e.out, p)
			return nil
		},
	}
	cmd.Flags().IntVar(&length, "length", passgen.DefaultLength, "password length (clamped to 4..128)")
	return cmd
}

func newRefreshLogosCmd(e *env) *cobra.Command {
	return &cobra.Command{
		Use:   "refresh-logos",
		Short: "Re-resolve the logo of every account",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withMaintenance(cmd, func(m *services.MaintenanceService) error {
				rep, err := m.RefreshLogos(cmd.Context())
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return e.writeJSON(rep)
				}
				fmt.Fprintf(e.out, "Accounts: %d, updated: %d, failed: %d\n", rep.Total, rep.Updated, rep.Failed)
				return nil
			})
		},
	}
}

func newSweepOrphansCmd(e *env) *cobra.Command {
	var apply bool

	cmd := &cobra.Command{
		Use:   "sweep-orphans",
		Short: "Find (and with --apply delete) blobs no account references",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return e.withMaintenance(cmd, func(m *services.MaintenanceService) error {
				rep, err := m.SweepOrphans(cmd.Context(), apply)
				if err != nil {
					return err
				}
				if e.jsonOutput {
					return e.writeJSON(rep)
				}
				fmt.Fprintf(e.out, "Scanned: %d, referenced: %d, orphans: %d, deleted: %d\n",
					rep.Scanned, rep.Referenced, len(rep.Orphans), rep.Deleted)
				for _, id := range rep.Orphans {
					fmt.Fprintf(e.out, "  %s\n", id)
				}
				if !apply && len(rep.Orphans) > 0 {
					fmt.Fprintln(e.out, "Dry run; pass --apply to delete.")
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&apply, "apply", false, "delete the orphans")
	return cmd
}

// withMaintenance opens the configured stores for the duration of fn.
func (e *env) withMaintenance(cmd *cobra.Command, fn func(*services.MaintenanceService) error) error {
	ctx := cmd.Context()

	rm, err := server.OpenRepositories(ctx, e.cfg, e.logger)
	if err != nil {
		return err
	}
	defer rm.Close()

	blobs, err := server.OpenBlobStore(ctx, e.cfg)
	if err != nil {
		return err
	}

	resolver, cache := server.NewLogoResolver(ctx, e.cfg, e.logger)
	defer cache.Close()

	pub := server.OpenPublisher(ctx, e.cfg, e.logger)
	defer pub.Close()

	return fn(services.NewMaintenanceService(rm, blobs, resolver, pub, e.logger))
}
