package correlation

import (
	"context"
	"fmt"
	"strconv"

	"github.com/telhawk-systems/telhawk-correlator/internal/metrics"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// IDSConfirmedDetector opens one incident per distinct IDS alert
type IDSConfirmedDetector struct{}

// NewIDSConfirmedDetector creates the IDS-confirmed rule
func NewIDSConfirmedDetector() *IDSConfirmedDetector {
	return &IDSConfirmedDetector{}
}

// Rule returns the rule identifier
func (d *IDSConfirmedDetector) Rule() models.RuleID {
	return models.RuleIDSConfirmed
}

// Detect seeds a candidate from every IDS event. Alerts sharing a label and
// source IP collapse into the first one.
func (d *IDSConfirmedDetector) Detect(ctx context.Context, run *Run) ([]*models.Incident, error) {
	alerts, err := run.store.ListEvents(ctx, models.EventFilter{
		DatasetID:   run.DatasetID,
		SourceTypes: models.IDSSourceTypes,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ids alerts: %w", err)
	}
	metrics.EventsScanned.WithLabelValues(string(d.Rule())).Add(float64(len(alerts)))

	var incidents []*models.Incident
	for _, alert := range alerts {
		inc, err := d.raise(ctx, run, alert)
		if err != nil {
			return incidents, err
		}
		if inc != nil {
			incidents = append(incidents, inc)
		}
	}

	return incidents, nil
}

func (d *IDSConfirmedDetector) raise(ctx context.Context, run *Run, alert *models.Event) (*models.Incident, error) {
	label := alertLabel(alert)
	srcIP := orDefault(alert.SrcIP, "unknown")
	groupKey := hashGroupKey(label, srcIP)

	exists, err := run.exists(ctx, d.Rule(), groupKey)
	if err != nil || exists {
		return nil, err
	}

	corroborating, err := d.corroborate(ctx, run, alert)
	if err != nil {
		return nil, err
	}

	confidence := IDSConfidence(alert.IDSPriority)
	priority := "-"
	if alert.IDSPriority != nil {
		priority = strconv.Itoa(*alert.IDSPriority)
	}

	return run.persist(ctx, candidate{
		rule:     d.Rule(),
		groupKey: groupKey,
		title:    fmt.Sprintf("IDS Alert: %s from %s", label, srcIP),
		explanation: fmt.Sprintf(
			"IDS alert: %s. Category: %s. Priority: %s. Source: %s -> %s. Confidence: %d%%.",
			orDefault(firstNonEmpty(alert.Signature, alert.Message), "-"),
			orDefault(alert.Category, "-"),
			priority,
			orDefault(alert.SrcIP, "-"),
			orDefault(alert.DstIP, "-"),
			confidence,
		),
		confidence:    confidence,
		severity:      ComputeSeverity(confidence, true),
		primary:       []*models.Event{alert},
		corroborating: corroborating,
	})
}

// corroborate returns the other events from the alert's source IP within
// the IDS window on either side of it, bounds included.
func (d *IDSConfirmedDetector) corroborate(ctx context.Context, run *Run, alert *models.Event) ([]*models.Event, error) {
	if !alert.HasTime() || alert.SrcIP == "" {
		return nil, nil
	}

	window := run.Config.IDSCorrelationWindow()
	from := alert.EventTime.Add(-window)
	to := alert.EventTime.Add(window)

	events, err := run.store.ListEvents(ctx, models.EventFilter{
		DatasetID: run.DatasetID,
		SrcIP:     alert.SrcIP,
		From:      &from,
		To:        &to,
		ExcludeID: alert.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load ids corroboration: %w", err)
	}
	return events, nil
}

// alertLabel names an alert by signature, then message
func alertLabel(e *models.Event) string {
	return orDefault(firstNonEmpty(e.Signature, e.Message), "Unknown")
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func orDefault(v, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}
