package models

import "time"

// IncidentStatus is the triage lifecycle state of an incident
type IncidentStatus string

const (
	IncidentStatusNew           IncidentStatus = "NEW"
	IncidentStatusAck           IncidentStatus = "ACK"
	IncidentStatusInvestigating IncidentStatus = "INVESTIGATING"
	IncidentStatusClosed        IncidentStatus = "CLOSED"
)

// IsValid returns true if the status is known
func (s IncidentStatus) IsValid() bool {
	switch s {
	case IncidentStatusNew, IncidentStatusAck, IncidentStatusInvestigating, IncidentStatusClosed:
		return true
	}
	return false
}

// Severity of an incident. CRITICAL is reserved for manual escalation;
// the scoring functions never produce it.
type Severity string

const (
	SeverityLow      Severity = "LOW"
	SeverityMedium   Severity = "MEDIUM"
	SeverityHigh     Severity = "HIGH"
	SeverityCritical Severity = "CRITICAL"
)

// IsValid returns true if the severity is known
func (s Severity) IsValid() bool {
	return s.Rank() > 0
}

// Rank orders severities from 1 (LOW) to 4 (CRITICAL), 0 when unknown
func (s Severity) Rank() int {
	switch s {
	case SeverityLow:
		return 1
	case SeverityMedium:
		return 2
	case SeverityHigh:
		return 3
	case SeverityCritical:
		return 4
	}
	return 0
}

// IncidentType tags the attack hypothesis behind an incident
type IncidentType string

const (
	IncidentTypeBruteForce  IncidentType = "brute_force"
	IncidentTypeWebScanning IncidentType = "web_scanning"
	IncidentTypeIDSAlert    IncidentType = "ids_alert"
)

// IsValid returns true if the incident type is known
func (t IncidentType) IsValid() bool {
	switch t {
	case IncidentTypeBruteForce, IncidentTypeWebScanning, IncidentTypeIDSAlert:
		return true
	}
	return false
}

// RuleID identifies the correlation rule (and its version) that created an incident
type RuleID string

const (
	RuleBruteForce   RuleID = "brute_force_v1"
	RuleWebScanning  RuleID = "web_scanning_v1"
	RuleIDSConfirmed RuleID = "ids_confirmed_v1"
)

// IsValid returns true if the rule is known
func (r RuleID) IsValid() bool {
	return r.IncidentType() != ""
}

// IncidentType returns the incident type the rule produces
func (r RuleID) IncidentType() IncidentType {
	switch r {
	case RuleBruteForce:
		return IncidentTypeBruteForce
	case RuleWebScanning:
		return IncidentTypeWebScanning
	case RuleIDSConfirmed:
		return IncidentTypeIDSAlert
	}
	return ""
}

// Relevance describes an event's role in an incident
type Relevance string

const (
	RelevancePrimary       Relevance = "primary"
	RelevanceCorroborating Relevance = "corroborating"
)

// IsValid returns true if the relevance is known
func (r Relevance) IsValid() bool {
	return r == RelevancePrimary || r == RelevanceCorroborating
}

// Incident is a correlation finding grouping related events under one hypothesis.
// (DatasetID, RuleID, GroupKey) is the natural key; the store rejects duplicates.
type Incident struct {
	ID              string         `json:"id"`
	DatasetID       string         `json:"dataset_id"`
	Title           string         `json:"title"`
	Status          IncidentStatus `json:"status"`
	Severity        Severity       `json:"severity"`
	Type            IncidentType   `json:"incident_type"`
	Confidence      int            `json:"confidence"`
	RuleID          RuleID         `json:"rule_id"`
	RuleExplanation string         `json:"rule_explanation"`
	GroupKey        string         `json:"group_key"`
	CreatedAt       time.Time      `json:"created_at"`
	UpdatedAt       time.Time      `json:"updated_at"`
	AcknowledgedBy  *string        `json:"acknowledged_by,omitempty"`
	AcknowledgedAt  *time.Time     `json:"acknowledged_at,omitempty"`
	AssignedTo      *string        `json:"assigned_to,omitempty"`
	ClosedBy        *string        `json:"closed_by,omitempty"`
	ClosedAt        *time.Time     `json:"closed_at,omitempty"`
}

// IncidentEvent links one event to one incident
type IncidentEvent struct {
	ID         string    `json:"id"`
	IncidentID string    `json:"incident_id"`
	EventID    string    `json:"event_id"`
	Relevance  Relevance `json:"relevance"`
}
