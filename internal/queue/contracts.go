package queue

import (
	"context"

	"github.com/iago/career-agent/internal/domain"
)

// Producer sends routed signals to a queue backend.
type Producer interface {
	Enqueue(ctx context.Context, message domain.SignalMessage) error
}

// Consumer hands routed signals to a handler. A handler error moves the
// signal to the dead letter store; nothing is retried.
type Consumer interface {
	Consume(ctx context.Context, handler func(context.Context, domain.SignalMessage) error) error
}

// DeadLetters keeps signals whose dispatch failed.
type DeadLetters interface {
	DeadLetter(ctx context.Context, message domain.SignalMessage, reason string) error
}
