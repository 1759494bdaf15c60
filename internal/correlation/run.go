package correlation

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
	"github.com/telhawk-systems/telhawk-correlator/internal/repository"
)

// Store is the slice of the repository the engine needs
type Store interface {
	ListEvents(ctx context.Context, filter models.EventFilter) ([]*models.Event, error)
	IncidentExists(ctx context.Context, datasetID string, ruleID models.RuleID, groupKey string) (bool, error)
	CreateIncident(ctx context.Context, incident *models.Incident, links []*models.IncidentEvent) error
	CountIncidents(ctx context.Context, datasetID string) (int, error)
	UpdateIncidentCount(ctx context.Context, datasetID string, count int) error
}

// Detector is one correlation rule
type Detector interface {
	Rule() models.RuleID
	Detect(ctx context.Context, run *Run) ([]*models.Incident, error)
}

// Run carries the state shared by the detectors during one dataset correlation
type Run struct {
	ID        string
	DatasetID string
	Config    config.CorrelationConfig

	store  Store
	ids    *idsLookup
	logger *logging.Logger
	now    func() time.Time
}

// candidate is an incident a detector wants to create
type candidate struct {
	rule          models.RuleID
	groupKey      string
	title         string
	explanation   string
	confidence    int
	severity      models.Severity
	primary       []*models.Event
	corroborating []*models.Event
}

// exists checks the natural key before a detector does any scoring work
func (r *Run) exists(ctx context.Context, rule models.RuleID, groupKey string) (bool, error) {
	found, err := r.store.IncidentExists(ctx, r.DatasetID, rule, groupKey)
	if err != nil {
		return false, err
	}
	if found {
		metrics.DuplicatesSkipped.WithLabelValues(string(rule)).Inc()
		r.logger.DebugContext(ctx, "incident already exists, skipping",
			logging.RuleID(string(rule)), logging.GroupKey(groupKey))
	}
	return found, nil
}

// persist writes a candidate and its links. It returns nil, nil when a
// concurrent writer took the natural key first.
func (r *Run) persist(ctx context.Context, c candidate) (*models.Incident, error) {
	now := r.now().UTC()
	id, err := uuid.NewV7()
	if err != nil {
		return nil, fmt.Errorf("failed to generate incident id: %w", err)
	}

	inc := &models.Incident{
		ID:              id.String(),
		DatasetID:       r.DatasetID,
		Title:           c.title,
		Status:          models.IncidentStatusNew,
		Severity:        c.severity,
		Type:            c.rule.IncidentType(),
		Confidence:      c.confidence,
		RuleID:          c.rule,
		RuleExplanation: c.explanation,
		GroupKey:        c.groupKey,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	links := make([]*models.IncidentEvent, 0, len(c.primary)+len(c.corroborating))
	seen := make(map[string]struct{}, cap(links))
	add := func(events []*models.Event, relevance models.Relevance) {
		for _, e := range events {
			if _, dup := seen[e.ID]; dup {
				continue
			}
			seen[e.ID] = struct{}{}
			links = append(links, &models.IncidentEvent{
				ID:         uuid.NewString(),
				IncidentID: inc.ID,
				EventID:    e.ID,
				Relevance:  relevance,
			})
		}
	}
	add(c.primary, models.RelevancePrimary)
	add(c.corroborating, models.RelevanceCorroborating)

	if err := r.store.CreateIncident(ctx, inc, links); err != nil {
		if errors.Is(err, repository.ErrIncidentExists) {
			metrics.DuplicatesSkipped.WithLabelValues(string(c.rule)).Inc()
			r.logger.InfoContext(ctx, "incident created concurrently, skipping",
				logging.RuleID(string(c.rule)), logging.GroupKey(c.groupKey))
			return nil, nil
		}
		return nil, err
	}

	metrics.IncidentsCreated.WithLabelValues(string(c.rule), string(c.severity)).Inc()
	r.logger.InfoContext(ctx, "incident created",
		logging.IncidentID(inc.ID),
		logging.RuleID(string(c.rule)),
		logging.Severity(string(c.severity)),
		logging.Confidence(c.confidence),
		logging.Count(len(links)),
	)

	return inc, nil
}

// idsLookup answers "which IDS alerts came from this IP" for the dataset,
// caching per-IP answers for the life of the run.
type idsLookup struct {
	store     Store
	datasetID string
	cache     *lru.Cache[string, []*models.Event]
}

const idsLookupCacheSize = 4096

func newIDSLookup(store Store, datasetID string) (*idsLookup, error) {
	cache, err := lru.New[string, []*models.Event](idsLookupCacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create ids lookup cache: %w", err)
	}
	return &idsLookup{store: store, datasetID: datasetID, cache: cache}, nil
}

// forIP returns every IDS event in the dataset with the given source IP,
// regardless of time.
func (l *idsLookup) forIP(ctx context.Context, ip string) ([]*models.Event, error) {
	if cached, ok := l.cache.Get(ip); ok {
		return cached, nil
	}

	events, err := l.store.ListEvents(ctx, models.EventFilter{
		DatasetID:   l.datasetID,
		SourceTypes: models.IDSSourceTypes,
		SrcIP:       ip,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ids corroboration for %s: %w", ip, err)
	}

	l.cache.Add(ip, events)
	return events, nil
}

// hashGroupKey turns an arbitrary identity into a fixed-length group key
func hashGroupKey(parts ...string) string {
	h := sha256.New()
	for _, p := range parts {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}
