package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-correlator/internal/notify"
	"github.com/telhawk-systems/telhawk-correlator/internal/seeder"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a synthetic dataset",
	Long: `Generate a dataset of brute-force, web-scan and IDS events over benign
noise and store it for correlation.

Examples:
  # Built-in mixed attack scenario
  correlator seed --migrate

  # Custom scenario, correlated straight away
  correlator seed --scenario ./scenarios/ssh.yaml --correlate`,
	RunE: runSeed,
}

func init() {
	seedCmd.Flags().String("scenario", "", "scenario YAML file (default: built-in mixed attack)")
	seedCmd.Flags().Bool("correlate", false, "correlate the dataset after seeding")
	seedCmd.Flags().Bool("migrate", false, "apply database migrations first")
	seedCmd.Flags().String("uploaded-by", "seeder", "uploader recorded on the dataset")

	rootCmd.AddCommand(seedCmd)
}

func runSeed(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	scenarioPath, _ := cmd.Flags().GetString("scenario")
	correlate, _ := cmd.Flags().GetBool("correlate")
	migrate, _ := cmd.Flags().GetBool("migrate")
	uploadedBy, _ := cmd.Flags().GetString("uploaded-by")

	scenario := seeder.DefaultScenario()
	if scenarioPath != "" {
		var err error
		if scenario, err = seeder.LoadScenario(scenarioPath); err != nil {
			return err
		}
	}

	repo, err := openRepository(ctx, migrate)
	if err != nil {
		return err
	}
	defer repo.Close()

	ds, err := seeder.Seed(ctx, repo, scenario, uploadedBy, time.Now())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printSuccess(out, "Seeded dataset %s (%s) with %d events", ds.ID, ds.Name, ds.EventCount)

	if !correlate {
		return nil
	}

	publisher, err := notify.New(cfg, logger)
	if err != nil {
		return err
	}
	defer publisher.Close()

	svc, cleanup, err := newPipeline(repo, publisher)
	if err != nil {
		return err
	}
	defer cleanup()

	result, err := svc.Correlate(ctx, ds.ID)
	if err != nil {
		return fmt.Errorf("correlation failed: %w", err)
	}
	if err := renderIncidents(out, result.Incidents, "table"); err != nil {
		return err
	}
	printSuccess(out, "%d incidents created", len(result.Incidents))
	return nil
}
