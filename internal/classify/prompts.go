package classify

import (
	"fmt"
	"strings"
)

const (
	maxBodyChars    = 6000
	maxCompanyChars = 200
)

func RelevancePrompt(subject string) string {
	return "Read the Subject Line and return only the word 'TRUE' if it sounds like a job application, " +
		"candidate update, or recruitment email. Otherwise return 'FALSE'. Subject: " + subject
}

func CategoryPrompt(subject, body string) string {
	return fmt.Sprintf(
		"Read the email and return exactly one word: 'REJECTION', 'INTERVIEW', 'APPLIED', or 'OTHER'. "+
			"Use APPLIED for application confirmations, INTERVIEW for interview or exam invitations "+
			"and REJECTION when the candidate is turned down. Subject: %s Body: %s",
		subject,
		truncate(body, maxBodyChars),
	)
}

func CompanyPrompt(subject, body string) string {
	return fmt.Sprintf(
		"Extract only the company name from this text. Return the name alone. Subject: %s Body: %s",
		subject,
		truncate(body, maxCompanyChars),
	)
}

func ConnectionPrompt(body, searchKey string) string {
	hint := ""
	if strings.TrimSpace(searchKey) != "" {
		hint = fmt.Sprintf(" The person is probably %q.", strings.TrimSpace(searchKey))
	}
	return fmt.Sprintf(
		"This email says someone accepted a LinkedIn invitation.%s Extract the person's full name and "+
			"their current employer. Answer strictly as 'Name | Company'. If the employer cannot be found "+
			"answer 'Name | UNKNOWN'. Body: %s",
		hint,
		truncate(body, maxBodyChars),
	)
}

func truncate(value string, limit int) string {
	runes := []rune(value)
	if len(runes) <= limit {
		return value
	}
	return string(runes[:limit])
}
