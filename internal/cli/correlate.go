package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-correlator/internal/notify"
)

var correlateCmd = &cobra.Command{
	Use:   "correlate",
	Short: "Correlate one dataset",
	Long: `Run every correlation rule against a dataset and print the incidents
created by this run. Re-running is safe: existing incidents are not duplicated.

Examples:
  correlator correlate --dataset 3f0c6a1e-5b7d-4c1e-9a55-0d6f0f2f8b11
  correlator correlate --dataset $ID --migrate --output json`,
	RunE: runCorrelate,
}

func init() {
	correlateCmd.Flags().String("dataset", "", "dataset ID (required)")
	correlateCmd.Flags().Bool("migrate", false, "apply database migrations first")
	correlateCmd.Flags().String("output", "table", "output format: table, json")
	_ = correlateCmd.MarkFlagRequired("dataset")

	rootCmd.AddCommand(correlateCmd)
}

func runCorrelate(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	datasetID, _ := cmd.Flags().GetString("dataset")
	migrate, _ := cmd.Flags().GetBool("migrate")
	format, _ := cmd.Flags().GetString("output")

	repo, err := openRepository(ctx, migrate)
	if err != nil {
		return err
	}
	defer repo.Close()

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

	result, err := svc.Correlate(ctx, datasetID)
	if err != nil {
		return fmt.Errorf("correlation failed: %w", err)
	}

	out := cmd.OutOrStdout()
	if err := renderIncidents(out, result.Incidents, format); err != nil {
		return err
	}
	if format != "json" {
		printSuccess(out, "%d new incidents, %d total for dataset %s (%s)",
			len(result.Incidents), result.IncidentCount, datasetID, result.Duration.Round(time.Millisecond))
	}
	return nil
}
