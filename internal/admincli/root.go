// Package admincli implements the vaultadmin command line.
package admincli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/dmitrijs2005/vaultkeeper/internal/logging"
	"github.com/dmitrijs2005/vaultkeeper/internal/server/config"
	"github.com/spf13/cobra"
)

// env is shared by all subcommands. cfg is filled in before any RunE.
type env struct {
	cfg        *config.Config
	configPath string
	jsonOutput bool
	out        io.Writer
	logger     logging.Logger
}

// NewRootCmd builds the vaultadmin command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	e := &env{out: out}

	cmd := &cobra.Command{
		Use:           "vaultadmin",
		Short:         "Administrative tasks for the vaultkeeper server",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(e.configPath)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.logger = logging.NewJSONLogger(os.Stderr, cfg.LogLevel)
			return nil
		},
	}
	cmd.SetOut(out)
	cmd.PersistentFlags().StringVarP(&e.configPath, "config", "c", "", "config file (JSON, YAML or TOML)")
	cmd.PersistentFlags().BoolVar(&e.jsonOutput, "json", false, "output JSON")

	cmd.AddCommand(
		newMigrateCmd(e),
		newTokenCmd(e),
		newPasswordCmd(e),
		newRefreshLogosCmd(e),
		newSweepOrphansCmd(e),
	)
	return cmd
}

// Execute runs vaultadmin with os.Args and returns the exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCmd(os.Stdout).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return 1
	}
	return 0
}

func (e *env) writeJSON(v any) error {
	enc := json.NewEncoder(e.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
