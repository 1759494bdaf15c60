package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRuleID_IncidentType(t *testing.T) {
	tests := []struct {
		rule     RuleID
		expected IncidentType
		valid    bool
	}{
		{RuleBruteForce, IncidentTypeBruteForce, true},
		{RuleWebScanning, IncidentTypeWebScanning, true},
		{RuleIDSConfirmed, IncidentTypeIDSAlert, true},
		{RuleID("port_scan_v1"), "", false},
	}

	for _, tt := range tests {
		t.Run(string(tt.rule), func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.rule.IncidentType())
			assert.Equal(t, tt.valid, tt.rule.IsValid())
		})
	}
}

func TestSeverity_Rank(t *testing.T) {
	assert.Less(t, SeverityLow.Rank(), SeverityMedium.Rank())
	assert.Less(t, SeverityMedium.Rank(), SeverityHigh.Rank())
	assert.Less(t, SeverityHigh.Rank(), SeverityCritical.Rank())
	assert.Equal(t, 0, Severity("SEVERE").Rank())
	assert.False(t, Severity("").IsValid())
	assert.True(t, SeverityCritical.IsValid())
}

func TestSourceType_IsIDS(t *testing.T) {
	assert.True(t, SourceSuricata.IsIDS())
	assert.True(t, SourceSnort.IsIDS())
	assert.False(t, SourceWebLog.IsIDS())
	assert.False(t, SourceSIEMJSON.IsIDS())
	assert.False(t, SourceType("ZEEK").IsValid())
	for _, st := range IDSSourceTypes {
		assert.True(t, st.IsIDS())
	}
}

func TestStatusEnums(t *testing.T) {
	assert.True(t, IncidentStatusNew.IsValid())
	assert.False(t, IncidentStatus("OPEN").IsValid())
	assert.True(t, DatasetStatusCorrelating.IsValid())
	assert.False(t, DatasetStatus("DONE").IsValid())
	assert.True(t, RelevanceCorroborating.IsValid())
	assert.False(t, Relevance("secondary").IsValid())
	assert.True(t, IncidentTypeWebScanning.IsValid())
}

func TestEvent_HasTime(t *testing.T) {
	now := time.Now()
	zero := time.Time{}
	status := 404

	assert.True(t, (&Event{EventTime: &now}).HasTime())
	assert.False(t, (&Event{}).HasTime())
	assert.False(t, (&Event{EventTime: &zero}).HasTime())
	assert.Equal(t, 404, (&Event{HTTPStatus: &status}).Status())
	assert.Equal(t, 0, (&Event{}).Status())
}
