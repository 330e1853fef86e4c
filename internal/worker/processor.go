package worker

import (
	"context"
	"sync"
	"time"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/logging"
	"github.com/iago/career-agent/internal/queue"
)

// Dispatcher resolves one routed signal into pipeline runs.
type Dispatcher interface {
	Dispatch(ctx context.Context, signal domain.SignalMessage) error
}

// Processor consumes routed signals and runs each on its own goroutine.
type Processor struct {
	consumer    queue.Consumer
	deadLetters queue.DeadLetters
	dispatcher  Dispatcher
	logger      *logging.Logger

	inflight sync.WaitGroup
}

func NewProcessor(
	consumer queue.Consumer,
	deadLetters queue.DeadLetters,
	dispatcher Dispatcher,
	logger *logging.Logger,
) *Processor {
	if logger == nil {
		logger = logging.Nop()
	}
	return &Processor{
		consumer:    consumer,
		deadLetters: deadLetters,
		dispatcher:  dispatcher,
		logger:      logger,
	}
}

// Start blocks until ctx is done, restarting the consume loop after errors.
func (p *Processor) Start(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}

		err := p.consumer.Consume(ctx, p.spawn)
		if err == nil || ctx.Err() != nil {
			return
		}
		p.logger.Error("worker consume loop error", "error", err)

		timer := time.NewTimer(2 * time.Second)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// Wait blocks until every spawned dispatch has returned.
func (p *Processor) Wait() {
	p.inflight.Wait()
}

func (p *Processor) spawn(ctx context.Context, signal domain.SignalMessage) error {
	p.inflight.Add(1)
	go func() {
		defer p.inflight.Done()
		p.run(ctx, signal)
	}()
	return nil
}

func (p *Processor) run(ctx context.Context, signal domain.SignalMessage) {
	started := time.Now()
	logger := p.logger.With("signal_id", signal.SignalID, "source", signal.Source)

	defer func() {
		if recovered := recover(); recovered != nil {
			logger.Error("signal dispatch panicked", "panic", recovered)
		}
	}()

	if err := p.dispatcher.Dispatch(ctx, signal); err != nil {
		logger.Warn("signal dispatch failed", "error", err)
		if p.deadLetters != nil {
			if dlqErr := p.deadLetters.DeadLetter(context.WithoutCancel(ctx), signal, err.Error()); dlqErr != nil {
				logger.Error("dead letter failed", "error", dlqErr)
			}
		}
		return
	}
	logger.Info("signal dispatched", "duration_ms", time.Since(started).Milliseconds())
}
