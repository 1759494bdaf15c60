// Package cli implements the correlator command line.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/correlation"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/notify"
	"github.com/telhawk-systems/telhawk-correlator/internal/pipeline"
	"github.com/telhawk-systems/telhawk-correlator/internal/repository"
)

var (
	cfgFile   string
	logLevel  string
	logFormat string

	cfg    *config.Config
	logger *logging.Logger
)

var rootCmd = &cobra.Command{
	Use:   "correlator",
	Short: "TelHawk security log correlator",
	Long: `correlator turns normalized security events into incidents.

It runs brute-force, web-scanning and IDS-confirmed rules over a dataset,
stores each incident once and announces new ones on the message bus.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cfg == nil {
			return fmt.Errorf("configuration not loaded")
		}
		return nil
	},
}

// Execute runs the root command
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: built-in defaults plus CORRELATOR_* env)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "", "log format: json or text")
}

func initConfig() {
	var err error
	cfg, err = config.Load(cfgFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: could not load config: %v\n", err)
		cfg = nil
		return
	}

	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if logFormat != "" {
		cfg.Log.Format = logFormat
	}

	logger = logging.NewWithWriter(os.Stderr, logging.ParseLevel(cfg.Log.Level), cfg.Log.Format)
	logging.SetDefault(logger)
}

// openRepository connects to PostgreSQL, applying migrations first when asked
func openRepository(ctx context.Context, migrate bool) (*repository.PostgresRepository, error) {
	connString := cfg.Database.Postgres.ConnString()

	if migrate {
		applied, err := repository.MigrateUp(cfg.Migrations.SourceURL(), connString)
		if err != nil {
			return nil, err
		}
		if applied {
			logger.Info("database migrations applied")
		}
	}

	repo, err := repository.NewPostgresRepository(ctx, connString)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to PostgreSQL: %w", err)
	}
	return repo, nil
}

// engineOptions wires tuning and, when Redis is enabled, the shared run lock.
// The returned cleanup closes the Redis client.
func engineOptions() ([]correlation.Option, func(), error) {
	opts := []correlation.Option{
		correlation.WithTuning(correlation.FileTuning(cfg.Correlation.ConfigPath)),
	}
	if !cfg.Redis.Enabled {
		return opts, func() {}, nil
	}

	redisOpts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(redisOpts)
	opts = append(opts, correlation.WithLocker(correlation.NewRedisLocker(client, cfg.Redis.LockTTL)))

	return opts, func() { _ = client.Close() }, nil
}

// newPipeline builds a pipeline service over repo. The cleanup releases the
// publisher and lock clients.
func newPipeline(repo pipeline.Store, publisher notify.Publisher) (*pipeline.Service, func(), error) {
	opts, cleanup, err := engineOptions()
	if err != nil {
		return nil, nil, err
	}
	return pipeline.NewService(repo, publisher, logger, opts...), cleanup, nil
}
