// Package scheduler periodically sweeps the mailbox so messages whose
// notification was missed still reach the pipeline.
package scheduler

import (
	"context"
	"fmt"
	"sync"

	"github.com/robfig/cron/v3"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/logging"
)

const maxRemembered = 5000

type Searcher interface {
	Search(ctx context.Context, query string, maxResults int64) ([]string, error)
}

type Processor interface {
	Process(ctx context.Context, messageID string) domain.Result
}

// LogIndex tells whether a message already produced a log entry.
type LogIndex interface {
	HasLog(messageID string) bool
}

type Config struct {
	Spec       string
	Query      string
	MaxResults int64
}

// Sweeper runs a mailbox search on a cron spec and processes unseen results.
type Sweeper struct {
	cron      *cron.Cron
	searcher  Searcher
	processor Processor
	index     LogIndex
	logger    *logging.Logger
	cfg       Config

	mu   sync.Mutex
	seen map[string]struct{}
}

func New(cfg Config, searcher Searcher, processor Processor, index LogIndex, logger *logging.Logger) *Sweeper {
	if cfg.Spec == "" {
		cfg.Spec = "@every 15m"
	}
	if cfg.Query == "" {
		cfg.Query = "newer_than:1h category:primary"
	}
	if cfg.MaxResults <= 0 {
		cfg.MaxResults = 20
	}
	if logger == nil {
		logger = logging.Nop()
	}
	cronLog := cronLogger{logger: logger.With("component", "sweeper")}
	return &Sweeper{
		cron:      cron.New(cron.WithLogger(cronLog), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		searcher:  searcher,
		processor: processor,
		index:     index,
		logger:    logger,
		cfg:       cfg,
		seen:      make(map[string]struct{}),
	}
}

// Start registers the sweep and starts the cron loop.
func (s *Sweeper) Start(ctx context.Context) error {
	_, err := s.cron.AddFunc(s.cfg.Spec, func() {
		if _, err := s.RunOnce(ctx); err != nil {
			s.logger.Warn("mailbox sweep failed", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("cron.AddFunc: %w", err)
	}
	s.cron.Start()
	s.logger.Info("mailbox sweeper started", "spec", s.cfg.Spec, "query", s.cfg.Query)
	return nil
}

// Stop halts the cron loop and waits for a running sweep to finish.
func (s *Sweeper) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("mailbox sweeper stopped")
}

// RunOnce searches the mailbox and processes messages not seen before.
// It returns how many messages were processed.
func (s *Sweeper) RunOnce(ctx context.Context) (int, error) {
	ids, err := s.searcher.Search(ctx, s.cfg.Query, s.cfg.MaxResults)
	if err != nil {
		return 0, fmt.Errorf("sweep search: %w", err)
	}

	processed := 0
	for _, id := range ids {
		if ctx.Err() != nil {
			return processed, ctx.Err()
		}
		if s.index != nil && s.index.HasLog(id) {
			continue
		}
		if !s.remember(id) {
			continue
		}
		result := s.processor.Process(ctx, id)
		if result.Kind == domain.ResultFailed {
			s.forget(id)
		}
		processed++
	}
	if processed > 0 {
		s.logger.Info("mailbox sweep complete", "found", len(ids), "processed", processed)
	}
	return processed, nil
}

// remember reports false when the id was already handed to the pipeline.
func (s *Sweeper) remember(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[id]; ok {
		return false
	}
	if len(s.seen) >= maxRemembered {
		s.seen = make(map[string]struct{})
	}
	s.seen[id] = struct{}{}
	return true
}

func (s *Sweeper) forget(id string) {
	s.mu.Lock()
	delete(s.seen, id)
	s.mu.Unlock()
}

type cronLogger struct {
	logger *logging.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(msg, append(keysAndValues, "error", err)...)
}
