package commands

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/marmos91/tollgate/internal/logger"
	"github.com/marmos91/tollgate/pkg/config"
	"github.com/marmos91/tollgate/pkg/store"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Run database migrations",
	Long: `Run database migrations for the trust score record store.

This command applies pending schema migrations to the configured
database (SQLite or PostgreSQL). It is required after upgrading
Tollgate when schema changes have been made.

Examples:
  # Run migrations with default config
  tollgate migrate

  # Run migrations with custom config
  tollgate migrate --config /etc/tollgate/config.yaml`,
	RunE: runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.MustLoad(GetConfigFile())
	if err != nil {
		return err
	}

	// Initialize the structured logger
	if err := InitLogger(cfg); err != nil {
		return err
	}

	logger.Info("Running database migrations", "type", cfg.Database.Type)

	// Create record store (this triggers auto-migration)
	ctx := context.Background()
	st, err := store.New(ctx, cfg.StoreConfig())
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}
	defer func() { _ = st.Close() }()

	// Verify the migration worked by checking if we can query scores
	if _, err := st.ListScores(ctx); err != nil {
		return fmt.Errorf("migration verification failed: %w", err)
	}

	fmt.Printf("Migrations completed successfully (database type: %s)\n", cfg.Database.Type)
	return nil
}
