package logging

import (
	"log/slog"
	"time"
)

// Field names shared by every correlator log line.
const (
	FieldService    = "service"
	FieldRunID      = "run_id"
	FieldDatasetID  = "dataset_id"
	FieldRuleID     = "rule_id"
	FieldIncidentID = "incident_id"
	FieldIP         = "src_ip"
	FieldGroupKey   = "group_key"
	FieldCount      = "count"
	FieldSeverity   = "severity"
	FieldConfidence = "confidence"
	FieldDuration   = "duration_ms"
	FieldError      = "error"
	FieldSubject    = "subject"
)

// Service returns a slog attribute for the service name.
func Service(name string) slog.Attr {
	return slog.String(FieldService, name)
}

// RunID returns a slog attribute for the correlation run ID.
func RunID(id string) slog.Attr {
	return slog.String(FieldRunID, id)
}

// DatasetID returns a slog attribute for the dataset ID.
func DatasetID(id string) slog.Attr {
	return slog.String(FieldDatasetID, id)
}

// RuleID returns a slog attribute for the correlation rule ID.
func RuleID(id string) slog.Attr {
	return slog.String(FieldRuleID, id)
}

// IncidentID returns a slog attribute for the incident ID.
func IncidentID(id string) slog.Attr {
	return slog.String(FieldIncidentID, id)
}

// IP returns a slog attribute for the source IP address.
func IP(ip string) slog.Attr {
	return slog.String(FieldIP, ip)
}

// GroupKey returns a slog attribute for an incident group key.
func GroupKey(k string) slog.Attr {
	return slog.String(FieldGroupKey, k)
}

// Count returns a slog attribute for an event or incident count.
func Count(n int) slog.Attr {
	return slog.Int(FieldCount, n)
}

// Severity returns a slog attribute for the incident severity.
func Severity(s string) slog.Attr {
	return slog.String(FieldSeverity, s)
}

// Confidence returns a slog attribute for the confidence score.
func Confidence(c int) slog.Attr {
	return slog.Int(FieldConfidence, c)
}

// Duration records d in milliseconds.
func Duration(d time.Duration) slog.Attr {
	return slog.Int64(FieldDuration, d.Milliseconds())
}

// Error returns an attribute for err; nil renders as an empty string.
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(FieldError, "")
	}
	return slog.String(FieldError, err.Error())
}

// Subject returns a slog attribute for the message subject.
func Subject(s string) slog.Attr {
	return slog.String(FieldSubject, s)
}
