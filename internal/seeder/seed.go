package seeder

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// Store is the repository surface seeding needs
type Store interface {
	CreateDataset(ctx context.Context, d *models.Dataset) error
	InsertEvents(ctx context.Context, events []*models.Event) error
	UpdateEventCount(ctx context.Context, id string, count int) error
}

// Seed creates a dataset, fills it with the scenario's events and leaves it
// in PARSING state ready for correlation.
func Seed(ctx context.Context, store Store, s Scenario, uploadedBy string, now time.Time) (*models.Dataset, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	ds := &models.Dataset{
		ID:          uuid.NewString(),
		Name:        s.Name,
		Description: s.Description,
		Status:      models.DatasetStatusParsing,
		UploadedBy:  uploadedBy,
		UploadedAt:  now.UTC(),
	}
	if err := store.CreateDataset(ctx, ds); err != nil {
		return nil, err
	}

	events := Generate(s, ds.ID, now)
	if err := store.InsertEvents(ctx, events); err != nil {
		return nil, fmt.Errorf("failed to seed events: %w", err)
	}
	if err := store.UpdateEventCount(ctx, ds.ID, len(events)); err != nil {
		return nil, err
	}
	ds.EventCount = len(events)

	return ds, nil
}
