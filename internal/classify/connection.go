package classify

import (
	"errors"
	"regexp"
	"strings"
)

// ErrMalformedConnection is returned when an answer is not "Name | Company".
var ErrMalformedConnection = errors.New("connection answer is not in 'Name | Company' form")

const unknownMarker = "UNKNOWN"

const acceptedPhrase = "accepted your invitation"

// Connection is a parsed "Name | Company" answer.
type Connection struct {
	Name    string
	Company string
}

// KnownCompany is false when the model could not find the employer.
func (c Connection) KnownCompany() bool {
	return c.Company != "" && !strings.EqualFold(c.Company, unknownMarker)
}

// ParseConnection splits the first line on "|". Exactly two non-empty parts are
// required; a name or company containing another "|" is rejected.
func ParseConnection(text string) (Connection, error) {
	if IsFailure(text) {
		return Connection{}, ErrMalformedConnection
	}
	line := strings.TrimSpace(text)
	if first, _, found := strings.Cut(line, "\n"); found {
		line = strings.TrimSpace(first)
	}

	parts := strings.Split(line, "|")
	if len(parts) != 2 {
		return Connection{}, ErrMalformedConnection
	}
	name := strings.TrimSpace(parts[0])
	company := strings.TrimSpace(parts[1])
	if name == "" || company == "" {
		return Connection{}, ErrMalformedConnection
	}
	return Connection{Name: name, Company: company}, nil
}

// IsAcceptance reports whether the text reads like an invitation acceptance.
func IsAcceptance(text string) bool {
	return strings.Contains(strings.ToLower(text), acceptedPhrase)
}

var nameDelimiters = []string{":", "|", " - ", " — ", "·"}

// AcceptedPersonName pulls the accepting person's name out of a notification or
// mail subject. "X accepted your invitation" is looked for in text, then title.
// Failing that, the title segment after a delimiter is used, then the title itself.
func AcceptedPersonName(title, text string) string {
	for _, candidate := range []string{text, title} {
		if name := beforeAccepted(candidate); name != "" {
			return name
		}
	}
	title = strings.TrimSpace(title)
	for _, delimiter := range nameDelimiters {
		if _, after, found := strings.Cut(title, delimiter); found {
			segment := strings.TrimSpace(after)
			if segment != "" && !IsAcceptance(segment) {
				return segment
			}
		}
	}
	if IsAcceptance(title) {
		return ""
	}
	return title
}

// acceptedWord is matched on the original text so the cut offset is a valid
// byte index even when case folding changes a rune's width.
var acceptedWord = regexp.MustCompile(`(?i)\s+accepted`)

func beforeAccepted(text string) string {
	loc := acceptedWord.FindStringIndex(text)
	if loc == nil || loc[0] <= 0 {
		return ""
	}
	name := strings.TrimSpace(text[:loc[0]])
	if _, after, found := strings.Cut(name, ":"); found {
		name = strings.TrimSpace(after)
	}
	return name
}
