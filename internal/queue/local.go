package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/logging"
)

var ErrQueueFull = errors.New("signal queue is full")

// DeadLetter is a failed signal with the reason it failed.
type DeadLetter struct {
	Message domain.SignalMessage
	Reason  string
}

// LocalQueue is an in-process queue used when Redis is not configured.
type LocalQueue struct {
	ch     chan domain.SignalMessage
	logger *logging.Logger

	dlqMu sync.Mutex
	dlq   []DeadLetter
}

func NewLocalQueue(bufferSize int, logger *logging.Logger) *LocalQueue {
	if bufferSize <= 0 {
		bufferSize = 512
	}
	if logger == nil {
		logger = logging.Nop()
	}
	return &LocalQueue{
		ch:     make(chan domain.SignalMessage, bufferSize),
		logger: logger,
	}
}

// Enqueue never blocks: a full buffer is reported as ErrQueueFull.
func (q *LocalQueue) Enqueue(ctx context.Context, message domain.SignalMessage) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	select {
	case q.ch <- message:
		return nil
	default:
		return ErrQueueFull
	}
}

func (q *LocalQueue) Consume(ctx context.Context, handler func(context.Context, domain.SignalMessage) error) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case message := <-q.ch:
			if err := handler(ctx, message); err != nil {
				_ = q.DeadLetter(ctx, message, err.Error())
			}
		}
	}
}

func (q *LocalQueue) DeadLetter(_ context.Context, message domain.SignalMessage, reason string) error {
	q.dlqMu.Lock()
	q.dlq = append(q.dlq, DeadLetter{Message: message, Reason: reason})
	q.dlqMu.Unlock()
	q.logger.Warn("signal moved to dead letters", "signal_id", message.SignalID, "reason", reason)
	return nil
}

func (q *LocalQueue) DeadLetters() []DeadLetter {
	q.dlqMu.Lock()
	defer q.dlqMu.Unlock()
	return append([]DeadLetter(nil), q.dlq...)
}

func (q *LocalQueue) Len() int {
	return len(q.ch)
}
