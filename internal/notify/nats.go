package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/telhawk-systems/telhawk-correlator/internal/messaging"
)

// NATSPublisher publishes JSON notifications to NATS subjects
type NATSPublisher struct {
	client    messaging.Publisher
	ownClient bool
}

// NewNATSPublisher wraps client. When owns is true, Close closes the client.
func NewNATSPublisher(client messaging.Publisher, owns bool) *NATSPublisher {
	return &NATSPublisher{client: client, ownClient: owns}
}

// Publish marshals payload to JSON and publishes it to subject
func (p *NATSPublisher) Publish(ctx context.Context, subject string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	return p.client.Publish(ctx, subject, data)
}

// Close implements Publisher
func (p *NATSPublisher) Close() error {
	if !p.ownClient {
		return nil
	}
	if c, ok := p.client.(closer); ok {
		return c.Close()
	}
	return nil
}
