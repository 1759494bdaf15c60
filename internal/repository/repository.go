package repository

import (
	"context"
	"errors"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrIncidentExists  = errors.New("incident already exists for dataset, rule and group key")
)

// EventStore is the read side of ingestion. InsertEvents exists for seeding.
type EventStore interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	InsertEvents(ctx context.Context, events []*models.Event) error
}

// IncidentStore persists correlation output
type IncidentStore interface {
	IncidentExists(ctx context.Context, datasetID string, ruleID models.RuleID, groupKey string) (bool, error)
	// CreateIncident writes the incident and its links atomically. It returns
	// ErrIncidentExists when the natural key is already taken.
	CreateIncident(ctx context.Context, incident *models.Incident, links []*models.IncidentEvent) error
	CountIncidents(ctx context.Context, datasetID string) (int, error)
	ListIncidents(ctx context.Context, datasetID string) ([]*models.Incident, error)
	ListIncidentEvents(ctx context.Context, incidentID string) ([]*models.IncidentEvent, error)
}

// DatasetStore tracks dataset lifecycle and counters
type DatasetStore interface {
	CreateDataset(ctx context.Context, d *models.Dataset) error
	GetDataset(ctx context.Context, id string) (*models.Dataset, error)
	// UpdateDatasetStatus sets the status; parseErrors replaces the stored
	// list unless nil.
	UpdateDatasetStatus(ctx context.Context, id string, status models.DatasetStatus, parseErrors []models.ParseError) error
	UpdateEventCount(ctx context.Context, id string, count int) error
	UpdateIncidentCount(ctx context.Context, id string, count int) error
}

// Repository is everything the correlator reads and writes
type Repository interface {
	EventStore
	IncidentStore
	DatasetStore

	Close() error
}
