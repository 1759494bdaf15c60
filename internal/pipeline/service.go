// Package pipeline drives a dataset through correlation: it owns the
// dataset status transitions around an engine run and announces the result.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/telhawk-systems/telhawk-correlator/internal/correlation"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/messaging"
	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
	"github.com/telhawk-systems/telhawk-correlator/internal/notify"
	"github.com/telhawk-systems/telhawk-correlator/internal/repository"
)

// Store is what a pipeline run reads and writes
type Store interface {
	correlation.Store
	UpdateDatasetStatus(ctx context.Context, id string, status models.DatasetStatus, parseErrors []models.ParseError) error
}

// Result describes a finished run
type Result struct {
	DatasetID     string
	Incidents     []*models.Incident
	IncidentCount int
	Duration      time.Duration
}

// Service runs correlation for datasets
type Service struct {
	store     Store
	engine    *correlation.Engine
	publisher notify.Publisher
	logger    *logging.Logger
}

// NewService creates a pipeline service. opts configure the underlying
// engine (tuning, locker, clock).
func NewService(store Store, publisher notify.Publisher, logger *logging.Logger, opts ...correlation.Option) *Service {
	if logger == nil {
		logger = logging.Default()
	}
	if publisher == nil {
		publisher = notify.NopPublisher{}
	}

	s := &Service{
		store:     store,
		publisher: publisher,
		logger:    logger,
	}
	opts = append(opts, correlation.WithStartHook(s.markCorrelating))
	s.engine = correlation.NewEngine(store, logger, opts...)
	return s
}

func (s *Service) markCorrelating(ctx context.Context, datasetID string) error {
	return s.store.UpdateDatasetStatus(ctx, datasetID, models.DatasetStatusCorrelating, nil)
}

// Correlate runs the engine for datasetID. On success the dataset becomes
// READY; on failure it becomes ERROR with the failure recorded. A run
// rejected because another holds the dataset leaves the status alone.
func (s *Service) Correlate(ctx context.Context, datasetID string) (*Result, error) {
	start := time.Now()

	incidents, err := s.engine.CorrelateDataset(ctx, datasetID)
	if err != nil {
		if errors.Is(err, correlation.ErrRunInProgress) {
			s.logger.WarnContext(ctx, "correlation already running", logging.DatasetID(datasetID))
			return nil, err
		}
		s.markFailed(ctx, datasetID, err)
		return nil, err
	}

	if err := s.store.UpdateDatasetStatus(ctx, datasetID, models.DatasetStatusReady, nil); err != nil {
		if !errors.Is(err, repository.ErrDatasetNotFound) {
			err = fmt.Errorf("failed to mark dataset ready: %w", err)
			s.markFailed(ctx, datasetID, err)
			return nil, err
		}
	}

	total, err := s.store.CountIncidents(ctx, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to count incidents: %w", err)
	}

	result := &Result{
		DatasetID:     datasetID,
		Incidents:     incidents,
		IncidentCount: total,
		Duration:      time.Since(start),
	}
	s.announce(ctx, result)

	return result, nil
}

func (s *Service) markFailed(ctx context.Context, datasetID string, cause error) {
	parseErrors := []models.ParseError{{Error: cause.Error()}}
	err := s.store.UpdateDatasetStatus(ctx, datasetID, models.DatasetStatusError, parseErrors)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark dataset as errored",
			logging.DatasetID(datasetID), logging.Error(err))
	}
}

// announce publishes one message per new incident and a run summary.
// Failures are logged only.
func (s *Service) announce(ctx context.Context, r *Result) {
	for _, inc := range r.Incidents {
		s.publish(ctx, messaging.SubjectIncidentsCreated, notify.NewIncidentCreatedEvent(inc))
	}
	s.publish(ctx, messaging.SubjectDatasetsCorrelated, &notify.DatasetCorrelatedEvent{
		DatasetID:     r.DatasetID,
		NewIncidents:  len(r.Incidents),
		IncidentCount: r.IncidentCount,
		DurationMs:    r.Duration.Milliseconds(),
	})
}

func (s *Service) publish(ctx context.Context, subject string, payload any) {
	if err := s.publisher.Publish(ctx, subject, payload); err != nil {
		metrics.NotificationsTotal.WithLabelValues(subject, "error").Inc()
		s.logger.WarnContext(ctx, "failed to publish notification",
			logging.Subject(subject), logging.Error(err))
		return
	}
	metrics.NotificationsTotal.WithLabelValues(subject, "ok").Inc()
}
