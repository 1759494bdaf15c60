// Package correlation turns a dataset's normalized events into incidents.
//
// Three rules run in a fixed order (brute force, web scanning, IDS
// confirmed). Each incident is identified by its dataset, rule and group
// key; the store enforces that key, so re-running a dataset only adds
// incidents that were not found before.
package correlation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
	"github.com/telhawk-systems/telhawk-correlator/internal/repository"
)

// TuningSource supplies rule tuning at the start of each run. The config it
// returns is always used; a non-nil error only explains a fallback.
type TuningSource func() (config.CorrelationConfig, error)

// StaticTuning always returns cfg
func StaticTuning(cfg config.CorrelationConfig) TuningSource {
	return func() (config.CorrelationConfig, error) { return cfg, nil }
}

// FileTuning re-reads the tuning file on every run
func FileTuning(path string) TuningSource {
	return func() (config.CorrelationConfig, error) {
		return config.LoadCorrelationConfig(path)
	}
}

// Engine runs the correlation rules against datasets
type Engine struct {
	store     Store
	tuning    TuningSource
	locker    Locker
	detectors []Detector
	logger    *logging.Logger
	now       func() time.Time
	onStart   func(ctx context.Context, datasetID string) error
}

// Option configures an Engine
type Option func(*Engine)

// WithTuning sets where rule tuning comes from
func WithTuning(t TuningSource) Option {
	return func(e *Engine) { e.tuning = t }
}

// WithLocker replaces the default in-process locker
func WithLocker(l Locker) Option {
	return func(e *Engine) { e.locker = l }
}

// WithClock overrides time.Now for incident timestamps
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithStartHook runs fn once the dataset lock is held, before any rule.
// An error from fn aborts the run.
func WithStartHook(fn func(ctx context.Context, datasetID string) error) Option {
	return func(e *Engine) { e.onStart = fn }
}

// NewEngine creates an engine with the standard rule set
func NewEngine(store Store, logger *logging.Logger, opts ...Option) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	e := &Engine{
		store:  store,
		tuning: StaticTuning(config.DefaultCorrelationConfig()),
		locker: NewLocalLocker(),
		detectors: []Detector{
			NewBruteForceDetector(),
			NewWebScanningDetector(),
			NewIDSConfirmedDetector(),
		},
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// CorrelateDataset runs every rule against the dataset, refreshes its
// incident count and returns the incidents created by this run. A store
// failure aborts the run; incidents written before it stay persisted.
func (e *Engine) CorrelateDataset(ctx context.Context, datasetID string) ([]*models.Incident, error) {
	if datasetID == "" {
		return nil, fmt.Errorf("dataset id is required")
	}

	release, err := e.locker.Acquire(ctx, datasetID)
	if err != nil {
		if errors.Is(err, ErrRunInProgress) {
			metrics.RunsTotal.WithLabelValues("locked").Inc()
		}
		return nil, err
	}
	defer release()

	runID := uuid.NewString()
	ctx = logging.ContextWithRun(ctx, runID, datasetID)
	start := time.Now()

	if e.onStart != nil {
		if err := e.onStart(ctx, datasetID); err != nil {
			metrics.RunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to start correlation: %w", err)
		}
	}

	cfg, err := e.tuning()
	if err != nil {
		e.logger.WarnContext(ctx, "correlation tuning partly or wholly defaulted", logging.Error(err))
	}
	cfg = cfg.WithDefaults()

	ids, err := newIDSLookup(e.store, datasetID)
	if err != nil {
		return nil, err
	}

	run := &Run{
		ID:        runID,
		DatasetID: datasetID,
		Config:    cfg,
		store:     e.store,
		ids:       ids,
		logger:    e.logger,
		now:       e.now,
	}

	e.logger.InfoContext(ctx, "correlation started")

	incidents := make([]*models.Incident, 0)
	for _, d := range e.detectors {
		found, err := d.Detect(ctx, run)
		if err != nil {
			metrics.RunsTotal.WithLabelValues("error").Inc()
			e.logger.ErrorContext(ctx, "correlation rule failed",
				logging.RuleID(string(d.Rule())), logging.Error(err))
			return nil, fmt.Errorf("rule %s failed: %w", d.Rule(), err)
		}
		e.logger.DebugContext(ctx, "correlation rule finished",
			logging.RuleID(string(d.Rule())), logging.Count(len(found)))
		incidents = append(incidents, found...)
	}

	total, err := e.store.CountIncidents(ctx, datasetID)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}
	if err := e.store.UpdateIncidentCount(ctx, datasetID, total); err != nil {
		if !errors.Is(err, repository.ErrDatasetNotFound) {
			metrics.RunsTotal.WithLabelValues("error").Inc()
			return nil, fmt.Errorf("failed to update incident count: %w", err)
		}
		e.logger.WarnContext(ctx, "dataset row missing, incident count not stored")
	}

	elapsed := time.Since(start)
	metrics.RunsTotal.WithLabelValues("success").Inc()
	metrics.RunDuration.Observe(elapsed.Seconds())
	e.logger.InfoContext(ctx, "correlation finished",
		logging.Count(len(incidents)),
		"incident_total", total,
		logging.Duration(elapsed),
	)

	return incidents, nil
}
