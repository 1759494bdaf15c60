// Package messaging defines the broker abstractions the correlator publishes
// notifications and receives jobs through.
package messaging

import (
	"context"
	"time"
)

// Subjects used by the correlator
const (
	// SubjectCorrelateJobsDataset carries {"dataset_id": ...} run requests
	SubjectCorrelateJobsDataset = "correlate.jobs.dataset"

	// SubjectIncidentsCreated carries one message per new incident
	SubjectIncidentsCreated = "correlate.incidents.created"

	// SubjectDatasetsCorrelated carries one summary per finished run
	SubjectDatasetsCorrelated = "correlate.datasets.correlated"

	// QueueCorrelateWorkers load-balances jobs across worker processes
	QueueCorrelateWorkers = "correlate-workers"
)

// Message is a message received from or sent to a broker
type Message struct {
	Subject   string
	Data      []byte
	Reply     string
	Metadata  map[string]string
	Timestamp time.Time
}

// MessageHandler processes a received message
type MessageHandler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject
type Subscription interface {
	Unsubscribe() error
	Subject() string
	IsValid() bool
}

// Publisher sends raw payloads to subjects
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// Subscriber receives messages from subjects
type Subscriber interface {
	// QueueSubscribe load-balances subject across members of queue
	QueueSubscribe(subject, queue string, handler MessageHandler) (Subscription, error)
}

// Client combines publishing and subscribing over one connection
type Client interface {
	Publisher
	Subscriber

	// Drain lets in-flight messages finish, then closes the connection
	Drain() error
	IsConnected() bool
	Close() error
}
