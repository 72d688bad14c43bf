package app

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/greenhouse-labs/catalog-bff/database"
)

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending database migrations",
	Long: `Apply all pending database migrations to bring the catalog schema up to date.
The connection parameters are read from storage.database in the config file.`,
	RunE: runMigrateUp,
}

func runMigrateUp(cmd *cobra.Command, _ []string) error {
	db, connString, err := migrationTarget()
	if err != nil {
		return err
	}

	ok, err := confirmed(cmd, fmt.Sprintf("Apply migrations to %s@%s/%s?", db.User, db.Host, db.Database))
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Info("Applying database migrations", "host", db.Host, "database", db.Database)
	if err := database.MigrateUp(connString); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
