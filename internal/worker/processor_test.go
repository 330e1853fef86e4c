package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/queue"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type blockingDispatcher struct {
	mu      sync.Mutex
	started map[string]bool
	release chan struct{}
	fail    map[string]error
}

func (d *blockingDispatcher) Dispatch(ctx context.Context, signal domain.SignalMessage) error {
	d.mu.Lock()
	d.started[signal.SignalID] = true
	d.mu.Unlock()

	select {
	case <-d.release:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.fail[signal.SignalID]
}

func (d *blockingDispatcher) startedCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.started)
}

func TestProcessorRunsSignalsConcurrently(t *testing.T) {
	q := queue.NewLocalQueue(8, nil)
	dispatcher := &blockingDispatcher{
		started: make(map[string]bool),
		release: make(chan struct{}),
		fail:    map[string]error{"s2": errors.New("gmail: search failed")},
	}
	processor := NewProcessor(q, q, dispatcher, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		processor.Start(ctx)
		close(stopped)
	}()

	for _, id := range []string{"s1", "s2", "s3"} {
		require.NoError(t, q.Enqueue(ctx, domain.SignalMessage{SignalID: id}))
	}

	// All three are in flight at once even though none has finished.
	require.Eventually(t, func() bool { return dispatcher.startedCount() == 3 }, time.Second, 5*time.Millisecond)

	close(dispatcher.release)
	processor.Wait()

	letters := q.DeadLetters()
	require.Len(t, letters, 1)
	assert.Equal(t, "s2", letters[0].Message.SignalID)

	cancel()
	<-stopped
}

type panickyDispatcher struct{}

func (panickyDispatcher) Dispatch(context.Context, domain.SignalMessage) error {
	panic("boom")
}

func TestProcessorSurvivesPanics(t *testing.T) {
	q := queue.NewLocalQueue(2, nil)
	processor := NewProcessor(q, q, panickyDispatcher{}, nil)

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		processor.Start(ctx)
		close(stopped)
	}()

	require.NoError(t, q.Enqueue(ctx, domain.SignalMessage{SignalID: "p"}))
	require.Eventually(t, func() bool { return q.Len() == 0 }, time.Second, 5*time.Millisecond)

	cancel()
	<-stopped
	processor.Wait()
	assert.Empty(t, q.DeadLetters())
}
