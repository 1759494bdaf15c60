package correlation

import (
	"slices"

	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

// CorroborationSource is an independent signal type whose agreement raises confidence
type CorroborationSource string

const (
	SourceAuth CorroborationSource = "auth"
	SourceWeb  CorroborationSource = "web"
	SourceIDS  CorroborationSource = "ids"
)

const (
	baseConfidence     = 40
	perSignalStep      = 5
	maxBaseConfidence  = 70
	webBonus           = 10
	idsBonus           = 20
	highConfidence     = 85
	mediumConfidence   = 65
	defaultIDSPriority = 3
	idsPriorityStep    = 15
	minIDSConfidence   = 40
)

// ComputeConfidence maps signal strength above a threshold plus corroboration
// into a 0-100 score.
func ComputeConfidence(signalCount, threshold int, sources []CorroborationSource) int {
	base := min(baseConfidence+perSignalStep*(signalCount-threshold), maxBaseConfidence)

	bonus := 0
	if slices.Contains(sources, SourceWeb) {
		bonus += webBonus
	}
	if slices.Contains(sources, SourceIDS) {
		bonus += idsBonus
	}

	return clampConfidence(base + bonus)
}

// ComputeSeverity labels a confidence score. IDS corroboration always yields HIGH.
func ComputeSeverity(confidence int, idsCorroborated bool) models.Severity {
	switch {
	case confidence >= highConfidence || idsCorroborated:
		return models.SeverityHigh
	case confidence >= mediumConfidence:
		return models.SeverityMedium
	default:
		return models.SeverityLow
	}
}

// IDSConfidence scores a single IDS alert from its priority (1 is most severe).
// A missing or zero priority counts as 3.
func IDSConfidence(priority *int) int {
	p := defaultIDSPriority
	if priority != nil && *priority != 0 {
		p = *priority
	}
	return clampConfidence(max(minIDSConfidence, 100-p*idsPriorityStep))
}

func clampConfidence(c int) int {
	return max(0, min(c, 100))
}

