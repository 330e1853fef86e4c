package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestResponseCacheExpires(t *testing.T) {
	c := NewResponseCache(Config{TTL: time.Minute})
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time { return current }

	c.Set("k", "APPLIED", "gemini-1.5-flash")
	entry, ok := c.Get("k")
	require.True(t, ok)
	assert.Equal(t, "APPLIED", entry.Text)

	current = current.Add(2 * time.Minute)
	_, ok = c.Get("k")
	assert.False(t, ok)
	assert.Equal(t, 0, c.Len())
}

func TestResponseCacheEvictsOldest(t *testing.T) {
	c := NewResponseCache(Config{MaxEntries: 2})
	current := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	c.now = func() time.Time {
		current = current.Add(time.Second)
		return current
	}

	c.Set("a", "1", "")
	c.Set("b", "2", "")
	c.Set("c", "3", "")

	_, ok := c.Get("a")
	assert.False(t, ok)
	_, ok = c.Get("c")
	assert.True(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestSignatureKeepsPromptCase(t *testing.T) {
	assert.Equal(t, Signature("company", "Gemini-1.5-Flash", " Offer from ACME "), Signature("COMPANY", "gemini-1.5-flash", "Offer from ACME"))
	assert.NotEqual(t, Signature("company", "m", "Offer from ACME"), Signature("company", "m", "offer from acme"))
	assert.NotEqual(t, Signature("category", "m", "a"), Signature("company", "m", "a"))
	assert.NotEqual(t, Signature("category", "m1", "a"), Signature("category", "m2", "a"))
}
