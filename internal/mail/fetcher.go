package mail

import (
	"context"
	"errors"
	"strings"
	"time"
)

var ErrMessageNotFound = errors.New("message not found")

// Metadata is the cheap header-only view of a message.
type Metadata struct {
	ID           string
	Subject      string
	From         string
	InternalDate time.Time
}

type FullMessage struct {
	Metadata
	Snippet   string
	HTMLBody  string
	PlainBody string
}

// BodyText prefers the HTML part rendered as text, then the plain part, then the snippet.
func (m FullMessage) BodyText() string {
	if strings.TrimSpace(m.HTMLBody) != "" {
		if text := HTMLToText(m.HTMLBody); text != "" {
			return text
		}
	}
	if plain := strings.TrimSpace(m.PlainBody); plain != "" {
		return plain
	}
	return strings.TrimSpace(m.Snippet)
}

// Fetcher retrieves mail by id or by search query.
type Fetcher interface {
	GetMetadata(ctx context.Context, id string) (Metadata, error)
	GetFull(ctx context.Context, id string) (FullMessage, error)
	Search(ctx context.Context, query string, maxResults int64) ([]string, error)
}
