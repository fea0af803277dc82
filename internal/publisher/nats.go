// Package publisher emits export progress events over NATS.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"

	"github.com/harhitroot/tgmirror/internal/exporter"
)

// SubjectPageDone is the subject page events are published to.
const SubjectPageDone = "mirror.pages.done"

// NATSClient interface to allow mocking.
type NATSClient interface {
	Publish(subject string, data []byte) error
}

// NATSPublisher implements exporter.EventPublisher.
type NATSPublisher struct {
	conn NATSClient
}

// NewNATSPublisher creates a publisher over an established connection.
func NewNATSPublisher(conn *nats.Conn) *NATSPublisher {
	return &NATSPublisher{conn: conn}
}

// PublishPage publishes a page-processed event.
func (p *NATSPublisher) PublishPage(_ context.Context, event exporter.PageEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}

	if err := p.conn.Publish(SubjectPageDone, data); err != nil {
		return fmt.Errorf("publish event: %w", err)
	}

	return nil
}
