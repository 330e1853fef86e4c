// Package classify holds the pure rules that turn free-text AI answers into
// pipeline decisions. Nothing here performs I/O.
package classify

import (
	"strings"

	"github.com/iago/career-agent/internal/domain"
)

// categoryPriority is checked in order; the first keyword found wins.
var categoryPriority = []domain.Category{
	domain.CategoryRejection,
	domain.CategoryInterview,
	domain.CategoryApplied,
}

// ParseCategory maps an AI answer to exactly one category. Answers that mention
// several keywords resolve by priority, anything else falls back to Other.
func ParseCategory(text string) domain.Category {
	if IsFailure(text) {
		return domain.CategoryOther
	}
	upper := strings.ToUpper(text)
	for _, category := range categoryPriority {
		if strings.Contains(upper, string(category)) {
			return category
		}
	}
	return domain.CategoryOther
}

// IsRelevant reports whether a yes/no relevance answer said TRUE.
func IsRelevant(text string) bool {
	if IsFailure(text) {
		return false
	}
	return strings.Contains(strings.ToUpper(text), "TRUE")
}

// IsFailure reports whether the text is the classifier failure sentinel.
func IsFailure(text string) bool {
	return strings.TrimSpace(text) == domain.ClassifierFailure
}

// CleanCompany normalizes an extracted employer name. Failures and empty answers
// become "Unknown".
func CleanCompany(text string) string {
	if IsFailure(text) {
		return UnknownCompany
	}
	cleaned := strings.TrimSpace(text)
	cleaned = strings.Trim(cleaned, "\"'`*.")
	cleaned = strings.TrimSpace(cleaned)
	if first, _, found := strings.Cut(cleaned, "\n"); found {
		cleaned = strings.TrimSpace(first)
	}
	if cleaned == "" {
		return UnknownCompany
	}
	return cleaned
}

const UnknownCompany = "Unknown"
