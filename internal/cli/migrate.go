package cli

import (
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-correlator/internal/repository"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Manage the database schema",
}

var migrateUpCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		applied, err := repository.MigrateUp(cfg.Migrations.SourceURL(), cfg.Database.Postgres.ConnString())
		if err != nil {
			return err
		}
		if !applied {
			printWarn(cmd.OutOrStdout(), "Schema already up to date")
			return nil
		}
		printSuccess(cmd.OutOrStdout(), "Migrations applied")
		return nil
	},
}

var migrateDownCmd = &cobra.Command{
	Use:   "down",
	Short: "Roll back migrations",
	RunE: func(cmd *cobra.Command, _ []string) error {
		steps, _ := cmd.Flags().GetInt("steps")
		if err := repository.MigrateDown(cfg.Migrations.SourceURL(), cfg.Database.Postgres.ConnString(), steps); err != nil {
			return err
		}
		printSuccess(cmd.OutOrStdout(), "Rolled back %d migration(s)", steps)
		return nil
	},
}

var migrateVersionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show the applied schema version",
	RunE: func(cmd *cobra.Command, _ []string) error {
		version, dirty, err := repository.MigrationVersion(cfg.Migrations.SourceURL(), cfg.Database.Postgres.ConnString())
		if err != nil {
			return err
		}
		if dirty {
			printWarn(cmd.OutOrStdout(), "Schema version %d (dirty)", version)
			return nil
		}
		printSuccess(cmd.OutOrStdout(), "Schema version %d", version)
		return nil
	},
}

func init() {
	migrateDownCmd.Flags().Int("steps", 1, "number of migrations to roll back")

	migrateCmd.AddCommand(migrateUpCmd, migrateDownCmd, migrateVersionCmd)
	rootCmd.AddCommand(migrateCmd)
}
