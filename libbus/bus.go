// Package libbus provides lightweight pub/sub messaging. The NATS-backed
// implementation is used when a NATS URL is configured; the in-memory
// implementation covers single-process deployments and tests.
package libbus

import (
	"context"
	"errors"
)

var (
	ErrConnectionClosed = errors.New("libbus: connection closed")
	ErrRequestTimeout   = errors.New("libbus: request timeout")
)

// Handler serves request-reply messages registered via Serve.
type Handler func(ctx context.Context, data []byte) ([]byte, error)

// Subscription is a handle to an active stream or serve registration.
type Subscription interface {
	Unsubscribe() error
}

// Messenger is the messaging surface used across the system.
type Messenger interface {
	// Publish sends a fire-and-forget message on subject.
	Publish(ctx context.Context, subject string, data []byte) error
	// Stream subscribes to subject; messages are delivered to ch until the
	// context is done or Unsubscribe is called.
	Stream(ctx context.Context, subject string, ch chan<- []byte) (Subscription, error)
	// Request sends a request and waits for a single reply.
	Request(ctx context.Context, subject string, data []byte) ([]byte, error)
	// Serve registers a request-reply handler for subject.
	Serve(ctx context.Context, subject string, handler Handler) (Subscription, error)
	Close() error
}

// Config selects the messenger backend. An empty NATSURL yields the
// in-memory messenger.
type Config struct {
	NATSURL      string
	NATSUser     string
	NATSPassword string
}

// NewPubSub returns a Messenger for the given config.
func NewPubSub(ctx context.Context, cfg *Config) (Messenger, error) {
	if cfg == nil || cfg.NATSURL == "" {
		return NewInMem(), nil
	}
	return newNATSMessenger(ctx, cfg)
}
