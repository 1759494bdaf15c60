package models

import "time"

// SourceType identifies the log family an event was normalized from
type SourceType string

const (
	SourceSIEMJSON SourceType = "SIEM_JSON"
	SourceWebLog   SourceType = "WEB_LOG"
	SourceSuricata SourceType = "SURICATA"
	SourceSnort    SourceType = "SNORT"
)

// IDSSourceTypes lists the intrusion-detection source types
var IDSSourceTypes = []SourceType{SourceSuricata, SourceSnort}

// IsValid returns true if the source type is known
func (s SourceType) IsValid() bool {
	switch s {
	case SourceSIEMJSON, SourceWebLog, SourceSuricata, SourceSnort:
		return true
	}
	return false
}

// IsIDS returns true for intrusion-detection sources
func (s SourceType) IsIDS() bool {
	return s == SourceSuricata || s == SourceSnort
}

// Event classification tags assigned by ingestion. Ingestion may emit
// other tags; these are the ones the correlation rules look at.
const (
	EventTypeLoginFailure = "login_failure"
	EventTypeLoginSuccess = "login_success"
	EventTypeSuspiciousUA = "suspicious_ua"
	EventTypeWeb401       = "web_401"
	EventTypeWeb403       = "web_403"
	EventTypeWeb404       = "web_404"
	EventTypeIDSAlert     = "ids_alert"
)

// Event is a normalized security event persisted by ingestion
type Event struct {
	ID           string         `json:"id"`
	DatasetID    string         `json:"dataset_id"`
	RawFileID    *string        `json:"raw_file_id,omitempty"`
	EventTime    *time.Time     `json:"event_time,omitempty"` // nil when the source line had no parseable timestamp
	SourceType   SourceType     `json:"source_type"`
	Host         string         `json:"host,omitempty"`
	Username     string         `json:"username,omitempty"`
	SrcIP        string         `json:"src_ip,omitempty"`
	DstIP        string         `json:"dst_ip,omitempty"`
	SrcPort      *int           `json:"src_port,omitempty"`
	DstPort      *int           `json:"dst_port,omitempty"`
	EventType    string         `json:"event_type,omitempty"`
	SeverityHint string         `json:"severity_hint,omitempty"`
	HTTPMethod   string         `json:"http_method,omitempty"`
	URLPath      string         `json:"url_path,omitempty"`
	HTTPStatus   *int           `json:"http_status,omitempty"`
	UserAgent    string         `json:"user_agent,omitempty"`
	ResponseSize *int64         `json:"response_size,omitempty"`
	SignatureID  string         `json:"signature_id,omitempty"`
	Signature    string         `json:"signature,omitempty"`
	Category     string         `json:"category,omitempty"`
	IDSPriority  *int           `json:"ids_priority,omitempty"`
	Protocol     string         `json:"protocol,omitempty"`
	Message      string         `json:"message,omitempty"`
	RawJSON      map[string]any `json:"raw_json,omitempty"`
	Extras       map[string]any `json:"extras,omitempty"`
}

// HasTime reports whether the event can take part in windowing
func (e *Event) HasTime() bool {
	return e.EventTime != nil && !e.EventTime.IsZero()
}

// Status returns the HTTP status or 0 when absent
func (e *Event) Status() int {
	if e.HTTPStatus == nil {
		return 0
	}
	return *e.HTTPStatus
}

// EventFilter selects events of a dataset. Zero-valued fields are ignored.
type EventFilter struct {
	DatasetID    string
	SourceTypes  []SourceType
	EventType    string
	SrcIP        string
	RequireSrcIP bool
	From         *time.Time // inclusive
	To           *time.Time // inclusive
	ExcludeID    string
}
