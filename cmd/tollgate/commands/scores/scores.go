// Package scores implements trust score management commands for tollgate.
package scores

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/pkg/config"
	"github.com/marmos91/tollgate/pkg/store"
)

// Cmd is the parent command for trust score management.
var Cmd = &cobra.Command{
	Use:   "scores",
	Short: "Trust score management",
	Long: `Manage trust scores in the gateway's record store.

The direct and cached score providers read these records to decide
whether a verified principal is admitted. Principals without a record
score zero and are denied.

Examples:
  # List all trust scores
  tollgate scores list

  # Set a principal's trust score
  tollgate scores set user-42 85

  # Look up one principal
  tollgate scores get user-42

  # Remove a principal's record
  tollgate scores rm user-42`,
}

func init() {
	Cmd.AddCommand(listCmd)
	Cmd.AddCommand(setCmd)
	Cmd.AddCommand(getCmd)
	Cmd.AddCommand(rmCmd)
}

// openStore loads configuration and connects to the record store.
// Callers own the returned store and must Close it.
func openStore(cmd *cobra.Command) (*store.GORMStore, error) {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.MustLoad(configPath)
	if err != nil {
		return nil, err
	}

	st, err := store.New(context.Background(), cfg.StoreConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	return st, nil
}
