package notify

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/telhawk-systems/telhawk-correlator/internal/config"
	"github.com/telhawk-systems/telhawk-correlator/internal/logging"
	"github.com/telhawk-systems/telhawk-correlator/internal/messaging"
	"github.com/telhawk-systems/telhawk-correlator/internal/models"
)

type recordingClient struct {
	mu       sync.Mutex
	subjects []string
	bodies   [][]byte
	err      error
	closed   bool
}

func (c *recordingClient) Publish(_ context.Context, subject string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.subjects = append(c.subjects, subject)
	c.bodies = append(c.bodies, data)
	return nil
}

func (c *recordingClient) Close() error {
	c.closed = true
	return nil
}

type recordingWriter struct {
	messages []kafka.Message
	err      error
	closed   bool
}

func (w *recordingWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	if w.err != nil {
		return w.err
	}
	w.messages = append(w.messages, msgs...)
	return nil
}

func (w *recordingWriter) Close() error {
	w.closed = true
	return nil
}

func sampleIncident() *models.Incident {
	return &models.Incident{
		ID:         "0192f0c4-0000-7000-8000-000000000001",
		DatasetID:  "ds-1",
		Title:      "Brute Force Attack from 192.168.1.100",
		Severity:   models.SeverityHigh,
		Type:       models.IncidentTypeBruteForce,
		Confidence: 65,
		RuleID:     models.RuleBruteForce,
		CreatedAt:  time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestNewIncidentCreatedEvent(t *testing.T) {
	data, err := json.Marshal(NewIncidentCreatedEvent(sampleIncident()))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "0192f0c4-0000-7000-8000-000000000001", decoded["incident_id"])
	assert.Equal(t, "ds-1", decoded["dataset_id"])
	assert.Equal(t, "brute_force_v1", decoded["rule_id"])
	assert.Equal(t, "brute_force", decoded["type"])
	assert.Equal(t, "HIGH", decoded["severity"])
	assert.EqualValues(t, 65, decoded["confidence"])
	assert.Equal(t, "2025-03-01T12:00:00Z", decoded["created_at"])
}

func TestNATSPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("publishes json", func(t *testing.T) {
		client := &recordingClient{}
		p := NewNATSPublisher(client, false)

		err := p.Publish(ctx, messaging.SubjectDatasetsCorrelated, &DatasetCorrelatedEvent{
			DatasetID: "ds-1", NewIncidents: 2, IncidentCount: 5, DurationMs: 120,
		})
		require.NoError(t, err)
		require.Len(t, client.subjects, 1)
		assert.Equal(t, "correlate.datasets.correlated", client.subjects[0])
		assert.JSONEq(t,
			`{"dataset_id":"ds-1","new_incidents":2,"incident_count":5,"duration_ms":120}`,
			string(client.bodies[0]))

		require.NoError(t, p.Close())
		assert.False(t, client.closed)
	})

	t.Run("owned client is closed", func(t *testing.T) {
		client := &recordingClient{}
		require.NoError(t, NewNATSPublisher(client, true).Close())
		assert.True(t, client.closed)
	})

	t.Run("unencodable payload", func(t *testing.T) {
		client := &recordingClient{}
		err := NewNATSPublisher(client, false).Publish(ctx, "x", make(chan int))
		require.Error(t, err)
		assert.Empty(t, client.subjects)
	})

	t.Run("broker error", func(t *testing.T) {
		client := &recordingClient{err: errors.New("nats: connection closed")}
		err := NewNATSPublisher(client, false).Publish(ctx, "x", map[string]string{})
		assert.Error(t, err)
	})
}

func TestKafkaPublisher(t *testing.T) {
	ctx := context.Background()

	t.Run("subject becomes key and header", func(t *testing.T) {
		w := &recordingWriter{}
		p := newKafkaPublisherWithWriter(w, "incidents")

		require.NoError(t, p.Publish(ctx, messaging.SubjectIncidentsCreated, NewIncidentCreatedEvent(sampleIncident())))
		require.Len(t, w.messages, 1)

		msg := w.messages[0]
		assert.Equal(t, "correlate.incidents.created", string(msg.Key))
		require.Len(t, msg.Headers, 1)
		assert.Equal(t, "subject", msg.Headers[0].Key)
		assert.Equal(t, "correlate.incidents.created", string(msg.Headers[0].Value))
		assert.Contains(t, string(msg.Value), `"incident_id":"0192f0c4-0000-7000-8000-000000000001"`)

		require.NoError(t, p.Close())
		assert.True(t, w.closed)
	})

	t.Run("write error is wrapped", func(t *testing.T) {
		w := &recordingWriter{err: kafka.LeaderNotAvailable}
		err := newKafkaPublisherWithWriter(w, "incidents").Publish(ctx, "x", struct{}{})
		require.Error(t, err)
		assert.ErrorIs(t, err, kafka.LeaderNotAvailable)
		assert.Contains(t, err.Error(), "incidents")
	})

	t.Run("config validation", func(t *testing.T) {
		_, err := NewKafkaPublisher(config.KafkaConfig{Topic: "t"}, logging.Discard())
		assert.Error(t, err)

		_, err = NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}}, logging.Discard())
		assert.Error(t, err)

		p, err := NewKafkaPublisher(config.KafkaConfig{Brokers: []string{"localhost:9092"}, Topic: "t"}, logging.Discard())
		require.NoError(t, err)
		assert.NoError(t, p.Close())
	})
}

func TestNew(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*config.Config)
		wantNop bool
		wantErr bool
	}{
		{"nats disabled", func(c *config.Config) { c.Notify.Driver = DriverNATS }, true, false},
		{"kafka disabled", func(c *config.Config) { c.Notify.Driver = DriverKafka }, true, false},
		{"none", func(c *config.Config) { c.Notify.Driver = DriverNone }, true, false},
		{"empty", func(c *config.Config) { c.Notify.Driver = "" }, true, false},
		{"unknown", func(c *config.Config) { c.Notify.Driver = "smtp" }, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &config.Config{}
			tt.mutate(cfg)

			p, err := New(cfg, logging.Discard())
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			if tt.wantNop {
				assert.IsType(t, NopPublisher{}, p)
			}
		})
	}
}
