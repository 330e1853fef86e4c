package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/logging"
	"github.com/iago/career-agent/internal/policy"
	"github.com/iago/career-agent/internal/queue"
)

var ErrInvalidSignal = errors.New("invalid signal")

// Router decides whether a notification should trigger a pipeline run.
type Router interface {
	SourceOf(packageID string) domain.SourceApp
	Route(signal domain.InboundSignal) domain.Decision
}

type IngestResult struct {
	SignalID string
	Decision domain.Decision
}

// SignalsService accepts platform notifications and queues the ones that trigger.
type SignalsService struct {
	router   Router
	producer queue.Producer
	logger   *logging.Logger
	now      func() time.Time
}

func NewSignalsService(router Router, producer queue.Producer, logger *logging.Logger) *SignalsService {
	if logger == nil {
		logger = logging.Nop()
	}
	return &SignalsService{
		router:   router,
		producer: producer,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

func (s *SignalsService) Ingest(ctx context.Context, signal domain.InboundSignal) (IngestResult, error) {
	signal.PackageID = strings.TrimSpace(signal.PackageID)
	if signal.PackageID == "" {
		return IngestResult{}, fmt.Errorf("%w: package_id is required", ErrInvalidSignal)
	}
	if signal.ReceivedAt.IsZero() {
		signal.ReceivedAt = s.now()
	}
	signal.Source = s.router.SourceOf(signal.PackageID)

	result := IngestResult{
		SignalID: uuid.NewString(),
		Decision: s.router.Route(signal),
	}
	logger := s.logger.With("signal_id", result.SignalID, "package_id", signal.PackageID, "source", signal.Source)

	if !result.Decision.Trigger {
		logger.Debug("signal ignored", "title", policy.MaskText(signal.Title))
		return result, nil
	}

	message := domain.SignalMessage{
		SignalID:   result.SignalID,
		Source:     result.Decision.SourceHint,
		PackageID:  signal.PackageID,
		SearchKey:  result.Decision.SearchKey,
		Query:      result.Decision.Query,
		ReceivedAt: signal.ReceivedAt,
	}
	if err := s.producer.Enqueue(ctx, message); err != nil {
		return IngestResult{}, fmt.Errorf("enqueue signal: %w", err)
	}
	logger.Info("signal queued", "query", result.Decision.Query)
	return result, nil
}
