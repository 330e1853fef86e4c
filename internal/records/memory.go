package records

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/iago/career-agent/internal/domain"
)

// Record is one tracked application.
type Record struct {
	ID          string
	Company     string
	Title       string
	Status      string
	DateApplied time.Time
	UpdatedAt   time.Time
}

// MemoryStore is an in-process tracker for local runs and tests.
type MemoryStore struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string
	now     func() time.Time
}

func NewMemoryStore(seed ...Record) *MemoryStore {
	s := &MemoryStore{
		records: make(map[string]Record),
		now:     func() time.Time { return time.Now().UTC() },
	}
	for _, r := range seed {
		if r.ID == "" {
			r.ID = uuid.NewString()
		}
		s.records[r.ID] = r
		s.order = append(s.order, r.ID)
	}
	return s
}

func (s *MemoryStore) FindMatch(_ context.Context, companyOrHeadline string) (domain.RecordMatch, error) {
	keywords := SplitKeywords(companyOrHeadline)
	if len(keywords) == 0 {
		return domain.RecordMatch{}, nil
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, id := range s.order {
		record := s.records[id]
		company := strings.ToLower(record.Company)
		for _, keyword := range keywords {
			if strings.Contains(company, strings.ToLower(keyword)) {
				return domain.NewRecordMatch(record.ID, record.Company), nil
			}
		}
	}
	return domain.RecordMatch{}, nil
}

func (s *MemoryStore) UpdateStatus(_ context.Context, recordID, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, ok := s.records[recordID]
	if !ok {
		return fmt.Errorf("memory: %s: %w", recordID, ErrRecordNotFound)
	}
	record.Status = status
	record.UpdatedAt = s.now()
	s.records[recordID] = record
	return nil
}

func (s *MemoryStore) CreateRecord(_ context.Context, company, title string, appliedDate time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record := Record{
		ID:          uuid.NewString(),
		Company:     company,
		Title:       title,
		Status:      StatusApplied,
		DateApplied: appliedDate,
		UpdatedAt:   s.now(),
	}
	s.records[record.ID] = record
	s.order = append(s.order, record.ID)
	return nil
}

// List returns all records sorted by company.
func (s *MemoryStore) List() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, 0, len(s.records))
	for _, r := range s.records {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Company < out[j].Company })
	return out
}

func (s *MemoryStore) Get(recordID string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.records[recordID]
	return r, ok
}
