package records

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/iago/career-agent/internal/domain"
)

// Tracker status values written by the agent.
const (
	StatusApplied       = "Applied"
	StatusExamScheduled = "Exam Scheduled"
	StatusRejected      = "Rejected"
	StatusLinkedInChat  = "LinkedIn Chat"
)

var ErrRecordNotFound = errors.New("record not found")

// Store is the job tracker the pipeline reconciles against.
type Store interface {
	// FindMatch returns the first record whose company contains any keyword of
	// companyOrHeadline. No match is a zero RecordMatch and a nil error.
	FindMatch(ctx context.Context, companyOrHeadline string) (domain.RecordMatch, error)
	UpdateStatus(ctx context.Context, recordID, status string) error
	CreateRecord(ctx context.Context, company, title string, appliedDate time.Time) error
}

var keywordSeparators = strings.NewReplacer(",", "\x00", "|", "\x00", "@", "\x00", " at ", "\x00")

// SplitKeywords breaks a company name or profile headline into search terms,
// e.g. "Engineer at Acme | ex-Globex" yields ["Engineer", "Acme", "ex-Globex"].
func SplitKeywords(companyOrHeadline string) []string {
	parts := strings.Split(keywordSeparators.Replace(companyOrHeadline), "\x00")
	keywords := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			keywords = append(keywords, trimmed)
		}
	}
	return keywords
}
