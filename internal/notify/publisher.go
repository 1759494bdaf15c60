// Package notify announces correlation results to downstream consumers.
package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/messaging"
	natsclient "github.com/telhawk-systems/telhawk-correlator/internal/messaging/nats"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// Notification drivers
const (
	DriverNATS  = "nats"
	DriverKafka = "kafka"
	DriverNone  = "none"
)

// Publisher delivers JSON-encodable payloads to a subject
type Publisher interface {
	Publish(ctx context.Context, subject string, payload any) error
	Close() error
}

// IncidentCreatedEvent is published once per incident a run creates
type IncidentCreatedEvent struct {
	IncidentID string              `json:"incident_id"`
	DatasetID  string              `json:"dataset_id"`
	RuleID     models.RuleID       `json:"rule_id"`
	Type       models.IncidentType `json:"type"`
	Severity   models.Severity     `json:"severity"`
	Confidence int                 `json:"confidence"`
	Title      string              `json:"title"`
	CreatedAt  time.Time           `json:"created_at"`
}

// NewIncidentCreatedEvent builds the notification for inc
func NewIncidentCreatedEvent(inc *models.Incident) *IncidentCreatedEvent {
	return &IncidentCreatedEvent{
		IncidentID: inc.ID,
		DatasetID:  inc.DatasetID,
		RuleID:     inc.RuleID,
		Type:       inc.Type,
		Severity:   inc.Severity,
		Confidence: inc.Confidence,
		Title:      inc.Title,
		CreatedAt:  inc.CreatedAt,
	}
}

// DatasetCorrelatedEvent summarizes a finished run
type DatasetCorrelatedEvent struct {
	DatasetID     string `json:"dataset_id"`
	NewIncidents  int    `json:"new_incidents"`
	IncidentCount int    `json:"incident_count"`
	DurationMs    int64  `json:"duration_ms"`
}

// NopPublisher discards everything
type NopPublisher struct{}

// Publish implements Publisher
func (NopPublisher) Publish(context.Context, string, any) error { return nil }

// Close implements Publisher
func (NopPublisher) Close() error { return nil }

// New builds the publisher selected by cfg.Notify.Driver. A disabled driver
// yields a NopPublisher.
func New(cfg *config.Config, logger *logging.Logger) (Publisher, error) {
	switch cfg.Notify.Driver {
	case DriverNATS:
		if !cfg.NATS.Enabled {
			return NopPublisher{}, nil
		}
		client, err := natsclient.NewClient(cfg.NATS, logger)
		if err != nil {
			return nil, err
		}
		return NewNATSPublisher(client, true), nil
	case DriverKafka:
		if !cfg.Kafka.Enabled {
			return NopPublisher{}, nil
		}
		return NewKafkaPublisher(cfg.Kafka, logger)
	case DriverNone, "":
		return NopPublisher{}, nil
	default:
		return nil, fmt.Errorf("unknown notify driver %q", cfg.Notify.Driver)
	}
}

// closer is satisfied by messaging clients that own a connection
type closer interface {
	Close() error
}

var _ messaging.Publisher = (*natsclient.Client)(nil)
