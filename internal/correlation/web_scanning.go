package correlation

import (
	"context"
	"fmt"

	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// HTTP statuses counted as scanning errors
var scanErrorStatuses = map[int]struct{}{401: {}, 403: {}, 404: {}}

// WebScanningDetector finds URL enumeration, error spikes and scanner user
// agents from one source IP
type WebScanningDetector struct{}

// NewWebScanningDetector creates the web-scanning rule
func NewWebScanningDetector() *WebScanningDetector {
	return &WebScanningDetector{}
}

// Rule returns the rule identifier
func (d *WebScanningDetector) Rule() models.RuleID {
	return models.RuleWebScanning
}

// windowStats summarizes one web window
type windowStats struct {
	uniqueURLs   int
	errors       int
	suspiciousUA bool
}

func summarizeWindow(events []*models.Event) windowStats {
	urls := make(map[string]struct{})
	var s windowStats
	for _, e := range events {
		if e.URLPath != "" {
			urls[e.URLPath] = struct{}{}
		}
		if _, ok := scanErrorStatuses[e.Status()]; ok {
			s.errors++
		}
		if e.EventType == models.EventTypeSuspiciousUA {
			s.suspiciousUA = true
		}
	}
	s.uniqueURLs = len(urls)
	return s
}

// Detect creates at most one incident per source IP, on the first window
// that meets any scanning criterion.
func (d *WebScanningDetector) Detect(ctx context.Context, run *Run) ([]*models.Incident, error) {
	window := run.Config.WebScanWindow()

	webEvents, err := run.store.ListEvents(ctx, models.EventFilter{
		DatasetID:    run.DatasetID,
		SourceTypes:  []models.SourceType{models.SourceWebLog},
		RequireSrcIP: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load web events: %w", err)
	}
	metrics.EventsScanned.WithLabelValues(string(d.Rule())).Add(float64(len(webEvents)))

	var incidents []*models.Incident
	for _, group := range groupBySourceIP(webEvents) {
		for i := range group.events {
			inWindow := windowFrom(group.events, i, window)
			stats := summarizeWindow(inWindow)
			if !d.triggered(run, stats) {
				continue
			}

			inc, err := d.raise(ctx, run, group.ip, inWindow, stats)
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

func (d *WebScanningDetector) triggered(run *Run, s windowStats) bool {
	return s.uniqueURLs >= run.Config.WebScanURLThreshold ||
		s.errors >= run.Config.WebScanErrorThreshold ||
		s.suspiciousUA
}

func (d *WebScanningDetector) raise(ctx context.Context, run *Run, ip string, inWindow []*models.Event, stats windowStats) (*models.Incident, error) {
	exists, err := run.exists(ctx, d.Rule(), ip)
	if err != nil || exists {
		return nil, err
	}

	idsEvents, err := run.ids.forIP(ctx, ip)
	if err != nil {
		return nil, err
	}

	sources := []CorroborationSource{SourceWeb}
	if len(idsEvents) > 0 {
		sources = append(sources, SourceIDS)
	}

	confidence := ComputeConfidence(len(inWindow), run.Config.WebScanURLThreshold, sources)
	severity := ComputeSeverity(confidence, len(idsEvents) > 0)

	run.logger.DebugContext(ctx, "web scanning detected",
		logging.IP(ip), logging.Count(len(inWindow)), logging.Confidence(confidence))

	return run.persist(ctx, candidate{
		rule:     d.Rule(),
		groupKey: ip,
		title:    fmt.Sprintf("Web Scanning / Reconnaissance from %s", ip),
		explanation: fmt.Sprintf(
			"Web scanning detected from %s: %d unique URLs, %d 4xx errors in %d min window. Suspicious UA: %t. Confidence: %d%%.",
			ip, stats.uniqueURLs, stats.errors, run.Config.WebScanWindowMinutes, stats.suspiciousUA, confidence,
		),
		confidence:    confidence,
		severity:      severity,
		primary:       inWindow,
		corroborating: idsEvents,
	})
}
