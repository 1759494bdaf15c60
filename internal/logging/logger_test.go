package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in       string
		expected slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"info", slog.LevelInfo},
		{"warn", slog.LevelWarn},
		{"warning", slog.LevelWarn},
		{"error", slog.LevelError},
		{"verbose", slog.LevelInfo},
		{"", slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.expected, ParseLevel(tt.in))
		})
	}
}

func TestLogger_WithContextAddsRunFields(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	ctx := ContextWithRun(context.Background(), "run-1", "ds-42")
	logger.InfoContext(ctx, "correlation started", Count(3))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "correlation started", line["msg"])
	assert.Equal(t, "run-1", line[FieldRunID])
	assert.Equal(t, "ds-42", line[FieldDatasetID])
	assert.EqualValues(t, 3, line[FieldCount])
}

func TestLogger_WithContextWithoutRun(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelInfo, "json")

	logger.WarnContext(context.Background(), "no run", Error(errors.New("boom")))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.NotContains(t, line, FieldRunID)
	assert.Equal(t, "boom", line[FieldError])
}

func TestLogger_TextFormatAndLevelFilter(t *testing.T) {
	var buf bytes.Buffer
	logger := NewWithWriter(&buf, slog.LevelWarn, "text")

	logger.Info("dropped")
	assert.Empty(t, buf.String())

	logger.With(Service("correlator")).Warn("kept")
	assert.Contains(t, buf.String(), "service=correlator")
	assert.Contains(t, buf.String(), "msg=kept")
}

func TestRunFromContext_Empty(t *testing.T) {
	runID, datasetID := RunFromContext(context.Background())
	assert.Empty(t, runID)
	assert.Empty(t, datasetID)
}
