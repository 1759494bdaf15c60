package models

import "time"

// DatasetStatus tracks a dataset through ingestion and correlation
type DatasetStatus string

const (
	DatasetStatusUploading   DatasetStatus = "UPLOADING"
	DatasetStatusParsing     DatasetStatus = "PARSING"
	DatasetStatusCorrelating DatasetStatus = "CORRELATING"
	DatasetStatusSummarizing DatasetStatus = "SUMMARIZING"
	DatasetStatusReady       DatasetStatus = "READY"
	DatasetStatusError       DatasetStatus = "ERROR"
)

// IsValid returns true if the status is known
func (s DatasetStatus) IsValid() bool {
	switch s {
	case DatasetStatusUploading, DatasetStatusParsing, DatasetStatusCorrelating,
		DatasetStatusSummarizing, DatasetStatusReady, DatasetStatusError:
		return true
	}
	return false
}

// ParseError records a problem hit while processing a dataset
type ParseError struct {
	File  string `json:"file,omitempty"`
	Error string `json:"error"`
}

// Dataset is a bounded batch of ingested logs forming one correlation unit
type Dataset struct {
	ID            string        `json:"id"`
	Name          string        `json:"name"`
	Description   string        `json:"description,omitempty"`
	Status        DatasetStatus `json:"status"`
	UploadedBy    string        `json:"uploaded_by"`
	UploadedAt    time.Time     `json:"uploaded_at"`
	EventCount    int           `json:"event_count"`
	IncidentCount int           `json:"incident_count"`
	ParseErrors   []ParseError  `json:"parse_errors"`
}
