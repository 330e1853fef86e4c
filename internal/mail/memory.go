package mail

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// MemoryFetcher serves messages from memory. Search matches every quoted
// phrase of the query against subject and body, ignoring Gmail operators.
type MemoryFetcher struct {
	mu       sync.RWMutex
	messages map[string]FullMessage
}

func NewMemoryFetcher(messages ...FullMessage) *MemoryFetcher {
	f := &MemoryFetcher{messages: make(map[string]FullMessage, len(messages))}
	for _, m := range messages {
		f.Put(m)
	}
	return f
}

func (f *MemoryFetcher) Put(message FullMessage) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.messages[message.ID] = message
}

func (f *MemoryFetcher) GetMetadata(_ context.Context, id string) (Metadata, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.messages[id]
	if !ok {
		return Metadata{}, fmt.Errorf("memory: %s: %w", id, ErrMessageNotFound)
	}
	return m.Metadata, nil
}

func (f *MemoryFetcher) GetFull(_ context.Context, id string) (FullMessage, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	m, ok := f.messages[id]
	if !ok {
		return FullMessage{}, fmt.Errorf("memory: %s: %w", id, ErrMessageNotFound)
	}
	return m, nil
}

func (f *MemoryFetcher) Search(_ context.Context, query string, maxResults int64) ([]string, error) {
	phrases := quotedPhrases(query)

	f.mu.RLock()
	matches := make([]FullMessage, 0)
	for _, m := range f.messages {
		haystack := strings.ToLower(m.Subject + "\n" + m.BodyText())
		ok := true
		for _, phrase := range phrases {
			if !strings.Contains(haystack, strings.ToLower(phrase)) {
				ok = false
				break
			}
		}
		if ok {
			matches = append(matches, m)
		}
	}
	f.mu.RUnlock()

	sort.Slice(matches, func(i, j int) bool {
		return matches[i].InternalDate.After(matches[j].InternalDate)
	})
	if maxResults > 0 && int64(len(matches)) > maxResults {
		matches = matches[:maxResults]
	}

	ids := make([]string, 0, len(matches))
	for _, m := range matches {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func quotedPhrases(query string) []string {
	parts := strings.Split(query, `"`)
	phrases := make([]string, 0, len(parts)/2)
	for i := 1; i < len(parts); i += 2 {
		if phrase := strings.TrimSpace(parts[i]); phrase != "" {
			phrases = append(phrases, phrase)
		}
	}
	return phrases
}
