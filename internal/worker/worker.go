// Package worker consumes correlation jobs from the message bus.
package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/correlation"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/messaging"
	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/pipeline"
)

// JobRequest is the body of a correlation job message
type JobRequest struct {
	DatasetID string `json:"dataset_id"`
}

// Correlator runs one dataset through the pipeline
type Correlator interface {
	Correlate(ctx context.Context, datasetID string) (*pipeline.Result, error)
}

// Worker subscribes to the job subject and runs each job it receives
type Worker struct {
	subscriber messaging.Subscriber
	correlator Correlator
	subject    string
	queue      string
	logger     *logging.Logger

	mu       sync.Mutex
	sub      messaging.Subscription
	stopped  bool
	inflight sync.WaitGroup
}

// ErrWorkerStopped is returned for jobs delivered after Stop began
var ErrWorkerStopped = errors.New("worker stopped")

// New creates a worker
func New(subscriber messaging.Subscriber, correlator Correlator, cfg config.WorkerConfig, logger *logging.Logger) *Worker {
	if logger == nil {
		logger = logging.Default()
	}
	subject := cfg.Subject
	if subject == "" {
		subject = messaging.SubjectCorrelateJobsDataset
	}
	queue := cfg.Queue
	if queue == "" {
		queue = messaging.QueueCorrelateWorkers
	}
	return &Worker{
		subscriber: subscriber,
		correlator: correlator,
		subject:    subject,
		queue:      queue,
		logger:     logger.With(logging.Service("correlator-worker")),
	}
}

// Start begins consuming jobs
func (w *Worker) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.sub != nil {
		return errors.New("worker already started")
	}

	sub, err := w.subscriber.QueueSubscribe(w.subject, w.queue, w.handleJob)
	if err != nil {
		return fmt.Errorf("failed to subscribe to correlation jobs: %w", err)
	}
	w.sub = sub
	w.stopped = false

	w.logger.Info("worker started", logging.Subject(w.subject), "queue", w.queue)
	return nil
}

// Stop unsubscribes and waits for in-flight jobs or ctx, whichever is first
func (w *Worker) Stop(ctx context.Context) error {
	w.mu.Lock()
	sub := w.sub
	w.sub = nil
	w.stopped = true
	w.mu.Unlock()

	if sub != nil {
		if err := sub.Unsubscribe(); err != nil {
			w.logger.Warn("failed to unsubscribe", logging.Subject(sub.Subject()), logging.Error(err))
		}
	}

	done := make(chan struct{})
	go func() {
		w.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		w.logger.Info("worker stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("worker stop: %w", ctx.Err())
	}
}

// handleJob processes one job message. Malformed jobs are dropped.
func (w *Worker) handleJob(ctx context.Context, msg *messaging.Message) error {
	// counted under mu so no job starts once Stop is waiting
	w.mu.Lock()
	if w.stopped {
		w.mu.Unlock()
		metrics.JobsTotal.WithLabelValues("skipped").Inc()
		return ErrWorkerStopped
	}
	w.inflight.Add(1)
	w.mu.Unlock()
	defer w.inflight.Done()

	var req JobRequest
	if err := json.Unmarshal(msg.Data, &req); err != nil {
		metrics.JobsTotal.WithLabelValues("rejected").Inc()
		w.logger.Warn("dropping malformed correlation job", logging.Error(err))
		return nil
	}
	if req.DatasetID == "" {
		metrics.JobsTotal.WithLabelValues("rejected").Inc()
		w.logger.Warn("dropping correlation job without dataset_id")
		return nil
	}

	result, err := w.correlator.Correlate(ctx, req.DatasetID)
	if err != nil {
		if errors.Is(err, correlation.ErrRunInProgress) {
			metrics.JobsTotal.WithLabelValues("skipped").Inc()
			w.logger.Info("dataset already correlating, job skipped", logging.DatasetID(req.DatasetID))
			return nil
		}
		metrics.JobsTotal.WithLabelValues("failed").Inc()
		return fmt.Errorf("correlation of dataset %s failed: %w", req.DatasetID, err)
	}

	metrics.JobsTotal.WithLabelValues("completed").Inc()
	w.logger.Info("correlation job completed",
		logging.DatasetID(req.DatasetID),
		logging.Count(len(result.Incidents)),
		logging.Duration(result.Duration),
	)
	return nil
}
