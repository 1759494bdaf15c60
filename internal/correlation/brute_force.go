package correlation

import (
	"context"
	"fmt"
	"strings"

	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// BruteForceDetector finds bursts of login failures from one source IP
type BruteForceDetector struct{}

// NewBruteForceDetector creates the brute-force rule
func NewBruteForceDetector() *BruteForceDetector {
	return &BruteForceDetector{}
}

// Rule returns the rule identifier
func (d *BruteForceDetector) Rule() models.RuleID {
	return models.RuleBruteForce
}

// Detect creates at most one incident per source IP whose login failures
// reach the threshold inside any window.
func (d *BruteForceDetector) Detect(ctx context.Context, run *Run) ([]*models.Incident, error) {
	window := run.Config.BruteForceWindow()
	threshold := run.Config.BruteForceThreshold

	failures, err := run.store.ListEvents(ctx, models.EventFilter{
		DatasetID:    run.DatasetID,
		EventType:    models.EventTypeLoginFailure,
		RequireSrcIP: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load login failures: %w", err)
	}
	metrics.EventsScanned.WithLabelValues(string(d.Rule())).Add(float64(len(failures)))

	// every failure per IP is linked, including untimestamped ones
	allByIP := make(map[string][]*models.Event)
	for _, e := range failures {
		allByIP[e.SrcIP] = append(allByIP[e.SrcIP], e)
	}

	var incidents []*models.Incident
	for _, group := range groupBySourceIP(failures) {
		for i := range group.events {
			inWindow := windowFrom(group.events, i, window)
			if len(inWindow) < threshold {
				continue
			}

			inc, err := d.raise(ctx, run, group.ip, len(inWindow), allByIP[group.ip])
			if err != nil {
				return incidents, err
			}
			if inc != nil {
				incidents = append(incidents, inc)
			}
			break
		}
	}

	return incidents, nil
}

func (d *BruteForceDetector) raise(ctx context.Context, run *Run, ip string, windowCount int, allFailures []*models.Event) (*models.Incident, error) {
	exists, err := run.exists(ctx, d.Rule(), ip)
	if err != nil || exists {
		return nil, err
	}

	idsEvents, err := run.ids.forIP(ctx, ip)
	if err != nil {
		return nil, err
	}

	sources := []CorroborationSource{SourceAuth}
	if len(idsEvents) > 0 {
		sources = append(sources, SourceIDS)
	}

	threshold := run.Config.BruteForceThreshold
	confidence := ComputeConfidence(windowCount, threshold, sources)
	severity := ComputeSeverity(confidence, len(idsEvents) > 0)

	run.logger.DebugContext(ctx, "brute force threshold reached",
		logging.IP(ip), logging.Count(windowCount), logging.Confidence(confidence))

	return run.persist(ctx, candidate{
		rule:     d.Rule(),
		groupKey: ip,
		title:    fmt.Sprintf("Brute Force Attack from %s", ip),
		explanation: fmt.Sprintf(
			"Detected %d login failures from %s within %d minutes (threshold: %d). Corroboration sources: %s. Confidence: %d%%.",
			windowCount, ip, run.Config.BruteForceWindowMinutes, threshold, joinSources(sources), confidence,
		),
		confidence:    confidence,
		severity:      severity,
		primary:       allFailures,
		corroborating: idsEvents,
	})
}

func joinSources(sources []CorroborationSource) string {
	names := make([]string, len(sources))
	for i, s := range sources {
		names[i] = string(s)
	}
	return strings.Join(names, ", ")
}
