// Package eventbus publishes domain events to the message broker.
package eventbus

import "context"

// Publisher sends event payloads to the broker.
type Publisher interface {
	// Publish sends a message with the given routing key.
	Publish(ctx context.Context, routingKey string, payload []byte) error

	// Close closes the publisher connection.
	Close() error
}
