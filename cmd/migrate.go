package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ksred/remind-me/internal/database"
	"github.com/ksred/remind-me/internal/database/migrations"
)

func migrateCmd(configPath *string) *cobra.Command {
	var (
		dryRun bool
		status bool
	)

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Bring the task store up to the latest schema",
		Long: `Apply every pending schema migration to the task store, in version order,
each in its own transaction. Running it on an up-to-date store does nothing.

Examples:
  remind-me migrate
  remind-me migrate --dry-run
  remind-me migrate --status`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMigrate(cmd.Context(), cmd.OutOrStdout(), *configPath, dryRun, status)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list pending migrations without applying them")
	cmd.Flags().BoolVar(&status, "status", false, "show the applied migrations")

	return cmd
}

func runMigrate(ctx context.Context, out io.Writer, configPath string, dryRun, status bool) error {
	cfg, err := loadConfiguration(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}
	logger := setupLogging(cfg, false)

	db := database.NewDatabase(cfg.DatabaseOptions())
	if err := db.Connect(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer db.Close()

	catalog := migrations.Catalog()

	if status {
		history, err := db.SchemaHistory(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "Store %s\n", cfg.Database.Path)
		if len(history) == 0 {
			fmt.Fprintln(out, "No migrations applied")
		}
		for _, m := range history {
			fmt.Fprintf(out, "  %3d  %-32s  %s\n", m.Version, m.Name, m.AppliedAt)
		}
		fmt.Fprintf(out, "Latest known version: %d\n", catalog.MaxVersion())
		return nil
	}

	if dryRun {
		pending, err := database.NewMigrationRunner(db.DB(), catalog, logger).Pending(ctx)
		if err != nil {
			return err
		}
		if len(pending) == 0 {
			fmt.Fprintln(out, "Schema is up to date")
			return nil
		}
		fmt.Fprintf(out, "%d pending migration(s):\n", len(pending))
		for _, m := range pending {
			fmt.Fprintf(out, "  %3d  %s\n", m.Version, m.Name)
		}
		fmt.Fprintln(out, "Dry run - no changes made")
		return nil
	}

	report, err := db.Migrate(ctx, catalog, logger)
	if err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	if len(report.Applied) == 0 {
		fmt.Fprintf(out, "Schema is up to date at version %d\n", report.FinalVersion)
		return nil
	}
	fmt.Fprintf(out, "Migrated from version %d to %d (applied %v)\n",
		report.StartVersion, report.FinalVersion, report.Applied)
	return nil
}
