package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"hash/fnv"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/iago/career-agent/internal/domain"
	"github.com/iago/career-agent/internal/http/middleware"
	"github.com/iago/career-agent/internal/logging"
	"github.com/iago/career-agent/internal/service"
)

var errInvalidPayload = errors.New("invalid payload")

// SignalIngester queues platform notifications.
type SignalIngester interface {
	Ingest(ctx context.Context, signal domain.InboundSignal) (service.IngestResult, error)
}

// MessageProcessor runs the classification pipeline for one mailbox message.
type MessageProcessor interface {
	Process(ctx context.Context, messageID string) domain.Result
}

// StateView exposes the agent's log and feed snapshots.
type StateView interface {
	Logs() []domain.AgentLog
	Updates() []domain.CareerUpdate
}

type Dependencies struct {
	Signals   SignalIngester
	Processor MessageProcessor
	State     StateView
	Logger    *logging.Logger
}

type API struct {
	signals     SignalIngester
	processor   MessageProcessor
	state       StateView
	logger      *logging.Logger
	idempotency *idempotencyStore
}

func NewAPI(deps Dependencies) *API {
	logger := deps.Logger
	if logger == nil {
		logger = logging.Nop()
	}
	return &API{
		signals:     deps.Signals,
		processor:   deps.Processor,
		state:       deps.State,
		logger:      logger.With("component", "http"),
		idempotency: newIdempotencyStore(10 * time.Minute),
	}
}

type errorPayload struct {
	Error struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	RequestID string `json:"request_id"`
}

func writeJSON(w http.ResponseWriter, statusCode int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(value)
}

func writeError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	payload := errorPayload{RequestID: middleware.GetRequestID(r.Context())}
	payload.Error.Code = code
	payload.Error.Message = message
	writeJSON(w, statusCode, payload)
}

func decodeJSON(r *http.Request, value any) error {
	decoder := json.NewDecoder(io.LimitReader(r.Body, 64<<10))
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(value); err != nil {
		return errInvalidPayload
	}
	return nil
}

type idempotencyEntry struct {
	PayloadHash uint64
	Response    signalResponse
	CreatedAt   time.Time
}

// idempotencyStore remembers recent signal responses so a forwarder resending the
// same notification does not queue it twice.
type idempotencyStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]idempotencyEntry
	now     func() time.Time
}

func newIdempotencyStore(ttl time.Duration) *idempotencyStore {
	return &idempotencyStore{
		ttl:     ttl,
		entries: make(map[string]idempotencyEntry),
		now:     time.Now,
	}
}

func (s *idempotencyStore) Get(key string) (idempotencyEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.entries[key]
	if !ok {
		return idempotencyEntry{}, false
	}
	if s.now().Sub(entry.CreatedAt) > s.ttl {
		delete(s.entries, key)
		return idempotencyEntry{}, false
	}
	return entry, true
}

func (s *idempotencyStore) Put(key string, payloadHash uint64, response signalResponse) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, entry := range s.entries {
		if now.Sub(entry.CreatedAt) > s.ttl {
			delete(s.entries, k)
		}
	}
	s.entries[key] = idempotencyEntry{
		PayloadHash: payloadHash,
		Response:    response,
		CreatedAt:   now,
	}
}

func hashPayload(value any) uint64 {
	payload, _ := json.Marshal(value)
	hasher := fnv.New64a()
	_, _ = hasher.Write(payload)
	return hasher.Sum64()
}
