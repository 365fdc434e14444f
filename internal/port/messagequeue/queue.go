// Package messagequeue defines the message queue port (interface).
package messagequeue

import "context"

// Handler processes a message received from a subscription.
type Handler func(subject string, data []byte) error

// Queue is the port interface for publish/subscribe messaging between
// switchboard instances.
type Queue interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Subscribe(ctx context.Context, subject string, handler Handler) (func(), error)
	Close() error
}
