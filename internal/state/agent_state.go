package state

import (
	"sync"

	"github.com/iago/career-agent/internal/domain"
)

type EventKind string

const (
	EventLogAdded    EventKind = "log_added"
	EventLogChanged  EventKind = "log_changed"
	EventUpdateAdded EventKind = "update_added"
)

// Event is delivered to subscribers after a mutation commits.
type Event struct {
	Kind   EventKind
	Log    *domain.AgentLog
	Update *domain.CareerUpdate
}

// AgentState holds the agent's log and career feed, newest first. AgentLog
// entries are unique per message id and every mutation is atomic.
type AgentState struct {
	mu      sync.Mutex
	logs    []domain.AgentLog
	updates []domain.CareerUpdate
	// updated tracks message ids that already contributed a CareerUpdate.
	updated map[string]struct{}

	// notifyMu is taken before mu is released so subscribers see mutations in commit order.
	notifyMu    sync.Mutex
	subscribers map[int]chan Event
	nextSubID   int
}

func New() *AgentState {
	return &AgentState{
		updated:     make(map[string]struct{}),
		subscribers: make(map[int]chan Event),
	}
}

// AppendUpdate puts an update at the head of the feed.
func (s *AgentState) AppendUpdate(update domain.CareerUpdate) {
	s.mu.Lock()
	s.prependUpdate(update)
	s.commit(Event{Kind: EventUpdateAdded, Update: &update})
}

// InsertLogIfAbsent adds the entry unless one with the same message id exists.
// The check and the insert happen under one lock.
func (s *AgentState) InsertLogIfAbsent(log domain.AgentLog) bool {
	s.mu.Lock()
	if s.indexOf(log.MessageID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.prependLog(log)
	s.commit(Event{Kind: EventLogAdded, Log: &log})
	return true
}

// UpsertLog replaces the entry for log.MessageID in place, or inserts it at the head.
func (s *AgentState) UpsertLog(log domain.AgentLog) bool {
	s.mu.Lock()
	if i := s.indexOf(log.MessageID); i >= 0 {
		s.logs[i] = log
		s.commit(Event{Kind: EventLogChanged, Log: &log})
		return false
	}
	s.prependLog(log)
	s.commit(Event{Kind: EventLogAdded, Log: &log})
	return true
}

// MarkCompleted flips IsCompleted on an existing entry.
func (s *AgentState) MarkCompleted(messageID string) bool {
	s.mu.Lock()
	i := s.indexOf(messageID)
	if i < 0 || s.logs[i].IsCompleted {
		s.mu.Unlock()
		return false
	}
	s.logs[i].IsCompleted = true
	changed := s.logs[i]
	s.commit(Event{Kind: EventLogChanged, Log: &changed})
	return true
}

// RecordOutcome upserts the log entry and, the first time a message id is seen,
// prepends its update. It reports whether the update was added.
func (s *AgentState) RecordOutcome(log domain.AgentLog, update domain.CareerUpdate) bool {
	s.mu.Lock()
	events := make([]Event, 0, 2)
	if i := s.indexOf(log.MessageID); i >= 0 {
		s.logs[i] = log
		events = append(events, Event{Kind: EventLogChanged, Log: &log})
	} else {
		s.prependLog(log)
		events = append(events, Event{Kind: EventLogAdded, Log: &log})
	}

	_, seen := s.updated[log.MessageID]
	if !seen {
		s.updated[log.MessageID] = struct{}{}
		s.prependUpdate(update)
		events = append(events, Event{Kind: EventUpdateAdded, Update: &update})
	}
	s.commit(events...)
	return !seen
}

// RecordConnection inserts a connection entry and its update only when no
// entry exists for the message id.
func (s *AgentState) RecordConnection(log domain.AgentLog, update domain.CareerUpdate) bool {
	s.mu.Lock()
	if s.indexOf(log.MessageID) >= 0 {
		s.mu.Unlock()
		return false
	}
	s.prependLog(log)
	s.updated[log.MessageID] = struct{}{}
	s.prependUpdate(update)
	s.commit(
		Event{Kind: EventLogAdded, Log: &log},
		Event{Kind: EventUpdateAdded, Update: &update},
	)
	return true
}

func (s *AgentState) HasLog(messageID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(messageID) >= 0
}

func (s *AgentState) Log(messageID string) (domain.AgentLog, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if i := s.indexOf(messageID); i >= 0 {
		return s.logs[i], true
	}
	return domain.AgentLog{}, false
}

// Logs returns a snapshot, newest first.
func (s *AgentState) Logs() []domain.AgentLog {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.AgentLog(nil), s.logs...)
}

// Updates returns a snapshot, newest first.
func (s *AgentState) Updates() []domain.CareerUpdate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.CareerUpdate(nil), s.updates...)
}

// Subscribe registers an observer. Events are dropped for a subscriber whose
// buffer is full. The returned func unsubscribes and closes the channel.
func (s *AgentState) Subscribe(buffer int) (<-chan Event, func()) {
	if buffer <= 0 {
		buffer = 64
	}
	ch := make(chan Event, buffer)

	s.notifyMu.Lock()
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.notifyMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.notifyMu.Lock()
			delete(s.subscribers, id)
			s.notifyMu.Unlock()
			close(ch)
		})
	}
}

// commit must be called with mu held. It releases mu and then fans events out.
func (s *AgentState) commit(events ...Event) {
	s.notifyMu.Lock()
	s.mu.Unlock()
	defer s.notifyMu.Unlock()

	for _, ch := range s.subscribers {
		for _, event := range events {
			select {
			case ch <- event:
			default:
			}
		}
	}
}

func (s *AgentState) indexOf(messageID string) int {
	for i := range s.logs {
		if s.logs[i].MessageID == messageID {
			return i
		}
	}
	return -1
}

func (s *AgentState) prependLog(log domain.AgentLog) {
	s.logs = append(s.logs, domain.AgentLog{})
	copy(s.logs[1:], s.logs)
	s.logs[0] = log
}

func (s *AgentState) prependUpdate(update domain.CareerUpdate) {
	s.updates = append(s.updates, domain.CareerUpdate{})
	copy(s.updates[1:], s.updates)
	s.updates[0] = update
}
