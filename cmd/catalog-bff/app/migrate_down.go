package app

import (
	"fmt"
	"log/slog"
	"math"

	"github.com/spf13/cobra"

	"github.com/greenhouse-labs/catalog-bff/database"
)

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Migrate the database down",
	Long: `Migrate the catalog schema down by reverting migrations.
WARNING: This operation drops the mirrored catalog.

Examples:
  # Revert the latest migration
  catalog-bff migrate down --config config.yaml --num-steps 1 --yes

  # Revert everything
  catalog-bff migrate down --config config.yaml --yes`,
	RunE: runMigrateDown,
}

func runMigrateDown(cmd *cobra.Command, _ []string) error {
	numSteps, err := cmd.Flags().GetUint("num-steps")
	if err != nil {
		return fmt.Errorf("failed to get num-steps flag: %w", err)
	}
	if numSteps > math.MaxInt32 {
		return fmt.Errorf("number of steps exceeds maximum allowed value")
	}

	db, connString, err := migrationTarget()
	if err != nil {
		return err
	}

	prompt := fmt.Sprintf("WARNING: this reverts ALL migrations on %s/%s. Continue?", db.Host, db.Database)
	if numSteps > 0 {
		prompt = fmt.Sprintf("WARNING: this reverts %d migration(s) on %s/%s. Continue?", numSteps, db.Host, db.Database)
	}
	ok, err := confirmed(cmd, prompt)
	if err != nil {
		return err
	}
	if !ok {
		slog.Info("Migration cancelled by user")
		return nil
	}

	slog.Warn("Reverting database migrations", "steps", numSteps)
	if err := database.MigrateDown(connString, int(numSteps)); err != nil { // #nosec G115 -- bounded above
		return fmt.Errorf("failed to revert migrations: %w", err)
	}
	slog.Info("Migration completed successfully")
	return nil
}
