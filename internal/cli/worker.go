package cli

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	natsclient "github.com/telhawk-systems/telhawk-correlator/internal/messaging/nats"
	"github.com/telhawk-systems/telhawk-correlator/internal/notify"
	"github.com/telhawk-systems/telhawk-correlator/internal/worker"
)

const shutdownTimeout = 30 * time.Second

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Consume correlation jobs from NATS",
	Long: `Subscribe to the correlation job subject and correlate each dataset
announced on it. Serves /metrics and /healthz when metrics are enabled.`,
	RunE: runWorker,
}

func init() {
	workerCmd.Flags().Bool("migrate", false, "apply database migrations first")
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, _ []string) error {
	if !cfg.NATS.Enabled {
		return errors.New("worker requires nats.enabled=true")
	}
	migrate, _ := cmd.Flags().GetBool("migrate")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	repo, err := openRepository(ctx, migrate)
	if err != nil {
		return err
	}
	defer repo.Close()

	client, err := natsclient.NewClient(cfg.NATS, logger)
	if err != nil {
		return err
	}
	defer client.Close()

	// notifications share the job connection unless another sink is configured
	var publisher notify.Publisher
	if cfg.Notify.Driver == notify.DriverNATS {
		publisher = notify.NewNATSPublisher(client, false)
	} else if publisher, err = notify.New(cfg, logger); err != nil {
		return err
	}
	defer publisher.Close()

	svc, cleanup, err := newPipeline(repo, publisher)
	if err != nil {
		return err
	}
	defer cleanup()

	w := worker.New(client, svc, cfg.Worker, logger)
	if err := w.Start(); err != nil {
		return err
	}

	var srv *worker.Server
	if cfg.Metrics.Enabled {
		srv = worker.NewServer(cfg.Metrics.Addr, map[string]worker.HealthCheck{
			"postgres": repo.Ping,
			"nats": func(context.Context) error {
				if !client.IsConnected() {
					return errors.New("not connected")
				}
				return nil
			},
		}, logger)
		srv.Start()
	}

	<-ctx.Done()
	logger.Info("shutting down worker")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := w.Stop(shutdownCtx); err != nil {
		logger.Warn("worker did not stop cleanly", logging.Error(err))
	}
	if srv != nil {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("metrics server forced to shut down", logging.Error(err))
		}
	}
	if err := client.Drain(); err != nil {
		logger.Warn("failed to drain NATS connection", logging.Error(err))
	}
	return nil
}
