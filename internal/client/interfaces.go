package client

import (
	"context"
)

// EventPublisher is the transport notification events are written to.
type EventPublisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

var _ EventPublisher = (*NATSClient)(nil)
