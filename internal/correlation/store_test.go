package correlation

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
	"github.com/telhawk-systems/telhawk-correlator/internal/repository"
)

// memoryStore is an in-memory Store enforcing the schema's unique keys
type memoryStore struct {
	mu             sync.Mutex
	events         []*models.Event
	incidents      []*models.Incident
	links          map[string][]*models.IncidentEvent
	incidentCounts map[string]int
	knownDatasets  map[string]bool

	listCalls int

	// failure injection
	listEventsErr     error
	createIncidentErr error
	failCreateAfter   int // fail CreateIncident once this many incidents exist (0 = never)
	hideExisting      bool
}

func newMemoryStore(datasetIDs ...string) *memoryStore {
	s := &memoryStore{
		links:          make(map[string][]*models.IncidentEvent),
		incidentCounts: make(map[string]int),
		knownDatasets:  make(map[string]bool),
	}
	for _, id := range datasetIDs {
		s.knownDatasets[id] = true
	}
	return s
}

func (s *memoryStore) add(events ...*models.Event) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, events...)
}

func (s *memoryStore) ListEvents(_ context.Context, f models.EventFilter) ([]*models.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listCalls++

	if s.listEventsErr != nil {
		return nil, s.listEventsErr
	}

	var out []*models.Event
	for _, e := range s.events {
		if e.DatasetID != f.DatasetID {
			continue
		}
		if len(f.SourceTypes) > 0 && !containsSource(f.SourceTypes, e.SourceType) {
			continue
		}
		if f.EventType != "" && e.EventType != f.EventType {
			continue
		}
		if f.SrcIP != "" && e.SrcIP != f.SrcIP {
			continue
		}
		if f.RequireSrcIP && e.SrcIP == "" {
			continue
		}
		if f.From != nil && (!e.HasTime() || e.EventTime.Before(*f.From)) {
			continue
		}
		if f.To != nil && (!e.HasTime() || e.EventTime.After(*f.To)) {
			continue
		}
		if f.ExcludeID != "" && e.ID == f.ExcludeID {
			continue
		}
		out = append(out, e)
	}

	sort.SliceStable(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.SrcIP != b.SrcIP {
			return a.SrcIP < b.SrcIP
		}
		if a.HasTime() != b.HasTime() {
			return a.HasTime()
		}
		if a.HasTime() && !a.EventTime.Equal(*b.EventTime) {
			return a.EventTime.Before(*b.EventTime)
		}
		return a.ID < b.ID
	})
	return out, nil
}

func (s *memoryStore) IncidentExists(_ context.Context, datasetID string, ruleID models.RuleID, groupKey string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.hideExisting {
		return false, nil
	}
	return s.findLocked(datasetID, ruleID, groupKey) != nil, nil
}

func (s *memoryStore) findLocked(datasetID string, ruleID models.RuleID, groupKey string) *models.Incident {
	for _, inc := range s.incidents {
		if inc.DatasetID == datasetID && inc.RuleID == ruleID && inc.GroupKey == groupKey {
			return inc
		}
	}
	return nil
}

func (s *memoryStore) CreateIncident(_ context.Context, inc *models.Incident, links []*models.IncidentEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.createIncidentErr != nil {
		return s.createIncidentErr
	}
	if s.failCreateAfter > 0 && len(s.incidents) >= s.failCreateAfter {
		return errors.New("connection reset by peer")
	}
	if s.findLocked(inc.DatasetID, inc.RuleID, inc.GroupKey) != nil {
		return repository.ErrIncidentExists
	}

	seen := make(map[string]bool)
	for _, l := range links {
		if l.IncidentID != inc.ID {
			return fmt.Errorf("link %s points at incident %s", l.ID, l.IncidentID)
		}
		if seen[l.EventID] {
			continue
		}
		seen[l.EventID] = true
		s.links[inc.ID] = append(s.links[inc.ID], l)
	}
	s.incidents = append(s.incidents, inc)
	return nil
}

func (s *memoryStore) CountIncidents(_ context.Context, datasetID string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, inc := range s.incidents {
		if inc.DatasetID == datasetID {
			n++
		}
	}
	return n, nil
}

func (s *memoryStore) UpdateIncidentCount(_ context.Context, datasetID string, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.knownDatasets[datasetID] {
		return repository.ErrDatasetNotFound
	}
	s.incidentCounts[datasetID] = count
	return nil
}

func (s *memoryStore) linksOf(incidentID string) map[string]models.Relevance {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]models.Relevance)
	for _, l := range s.links[incidentID] {
		out[l.EventID] = l.Relevance
	}
	return out
}

func containsSource(types []models.SourceType, st models.SourceType) bool {
	for _, t := range types {
		if t == st {
			return true
		}
	}
	return false
}

// eventBuilder keeps fixtures short
type eventBuilder struct {
	datasetID string
	base      time.Time
	seq       int
}

func newEventBuilder(datasetID string) *eventBuilder {
	return &eventBuilder{
		datasetID: datasetID,
		base:      time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (b *eventBuilder) next(source models.SourceType, ip string, offset time.Duration) *models.Event {
	b.seq++
	ts := b.base.Add(offset)
	return &models.Event{
		ID:         fmt.Sprintf("%s-ev-%03d", b.datasetID, b.seq),
		DatasetID:  b.datasetID,
		EventTime:  &ts,
		SourceType: source,
		SrcIP:      ip,
	}
}

func (b *eventBuilder) loginFailure(ip string, offset time.Duration) *models.Event {
	e := b.next(models.SourceSIEMJSON, ip, offset)
	e.EventType = models.EventTypeLoginFailure
	e.Username = "admin"
	return e
}

func (b *eventBuilder) web(ip string, offset time.Duration, path string, status int) *models.Event {
	e := b.next(models.SourceWebLog, ip, offset)
	e.URLPath = path
	e.HTTPStatus = &status
	e.HTTPMethod = "GET"
	return e
}

func (b *eventBuilder) ids(ip string, offset time.Duration, signature string, priority *int) *models.Event {
	e := b.next(models.SourceSuricata, ip, offset)
	e.EventType = models.EventTypeIDSAlert
	e.Signature = signature
	e.IDSPriority = priority
	e.DstIP = "10.0.0.10"
	e.Category = "Attempted Information Leak"
	return e
}

func (b *eventBuilder) failures(ip string, n int, spacing time.Duration) []*models.Event {
	out := make([]*models.Event, n)
	for i := range out {
		out[i] = b.loginFailure(ip, time.Duration(i)*spacing)
	}
	return out
}

func intPtr(v int) *int { return &v }

// newTestRun builds a Run against store with the given tuning
func newTestRun(t *testing.T, store *memoryStore, datasetID string, cfg config.CorrelationConfig) *Run {
	t.Helper()
	ids, err := newIDSLookup(store, datasetID)
	require.NoError(t, err)
	return &Run{
		ID:        "test-run",
		DatasetID: datasetID,
		Config:    cfg,
		store:     store,
		ids:       ids,
		logger:    logging.Discard(),
		now:       func() time.Time { return time.Date(2025, 3, 2, 0, 0, 0, 0, time.UTC) },
	}
}
