package domain

import "strings"

// ClassifierFailure is what a classifier returns when the AI call could not complete.
// It never matches any keyword the pipeline looks for.
const ClassifierFailure = "ERROR"

// Category is the resolved kind of a career-related message.
type Category string

const (
	CategoryApplied          Category = "APPLIED"
	CategoryInterview        Category = "INTERVIEW"
	CategoryRejection        Category = "REJECTION"
	CategoryLinkedInAccepted Category = "LINKEDIN_ACCEPTED"
	CategoryOther            Category = "OTHER"
	CategoryPending          Category = "PENDING"
)

// Reconcilable reports whether the category drives a tracker update.
func (c Category) Reconcilable() bool {
	switch c {
	case CategoryApplied, CategoryInterview, CategoryRejection:
		return true
	default:
		return false
	}
}

// Stage is a classification step.
type Stage string

const (
	StageRelevanceCheck  Stage = "relevance_check"
	StageCategoryExtract Stage = "category_extract"
	StageFieldExtract    Stage = "field_extract"
)

type ClassificationRequest struct {
	RawText string
	Stage   Stage
}

// CareerUpdate is an immutable entry of the career feed, newest first.
type CareerUpdate struct {
	Company    string   `json:"company"`
	Subject    string   `json:"subject"`
	Category   Category `json:"category"`
	Timestamp  string   `json:"timestamp"`
	PersonName *string  `json:"person_name,omitempty"`
}

// AgentLog is the human-readable outcome of one pipeline run, keyed by message id.
type AgentLog struct {
	Message          string `json:"message"`
	NotificationTime string `json:"notification_time"`
	EmailTime        string `json:"email_time"`
	MessageID        string `json:"message_id"`
	IsCompleted      bool   `json:"is_completed"`
}

// RecordMatch is the result of a fuzzy tracker lookup. A nil PageID means no record.
type RecordMatch struct {
	PageID       *string `json:"page_id"`
	OfficialName *string `json:"official_name"`
}

func (m RecordMatch) Found() bool {
	return m.PageID != nil && strings.TrimSpace(*m.PageID) != ""
}

// DisplayName prefers the tracker's stored name over the extracted one.
func (m RecordMatch) DisplayName(fallback string) string {
	if m.OfficialName != nil && strings.TrimSpace(*m.OfficialName) != "" {
		return strings.TrimSpace(*m.OfficialName)
	}
	return fallback
}

// NewRecordMatch builds a found match.
func NewRecordMatch(pageID, officialName string) RecordMatch {
	match := RecordMatch{PageID: &pageID}
	if strings.TrimSpace(officialName) != "" {
		match.OfficialName = &officialName
	}
	return match
}
