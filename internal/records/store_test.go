package records

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitKeywords(t *testing.T) {
	tests := []struct {
		in   string
		want []string
	}{
		{"Acme Corp", []string{"Acme Corp"}},
		{"Engineer at Acme | ex-Globex", []string{"Engineer", "Acme", "ex-Globex"}},
		{"Recruiter @ Initech, Remote", []string{"Recruiter", "Initech", "Remote"}},
		{" , | ", []string{}},
		{"", []string{}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, SplitKeywords(tt.in), tt.in)
	}
}

func TestMemoryStoreFindMatchIsCaseInsensitive(t *testing.T) {
	store := NewMemoryStore(Record{ID: "r1", Company: "Acme Corp", Status: StatusApplied})

	match, err := store.FindMatch(context.Background(), "Senior Engineer at ACME")
	require.NoError(t, err)
	require.True(t, match.Found())
	assert.Equal(t, "r1", *match.PageID)
	assert.Equal(t, "Acme Corp", match.DisplayName("ACME"))

	match, err = store.FindMatch(context.Background(), "Globex")
	require.NoError(t, err)
	assert.False(t, match.Found())
	assert.Nil(t, match.OfficialName)
}

func TestMemoryStoreCreateAndUpdate(t *testing.T) {
	store := NewMemoryStore()
	applied := time.Date(2026, 3, 2, 0, 0, 0, 0, time.UTC)
	require.NoError(t, store.CreateRecord(context.Background(), "Initech", "Backend Engineer", applied))

	match, err := store.FindMatch(context.Background(), "Initech")
	require.NoError(t, err)
	require.True(t, match.Found())

	require.NoError(t, store.UpdateStatus(context.Background(), *match.PageID, StatusRejected))
	record, ok := store.Get(*match.PageID)
	require.True(t, ok)
	assert.Equal(t, StatusRejected, record.Status)
	assert.Equal(t, applied, record.DateApplied)

	assert.ErrorIs(t, store.UpdateStatus(context.Background(), "nope", StatusRejected), ErrRecordNotFound)
}

func TestLikePatternsEscapeWildcards(t *testing.T) {
	assert.Equal(t, []string{`%100\%%`, `%a\_b%`}, likePatterns([]string{"100%", "a_b"}))
}
