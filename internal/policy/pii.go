package policy

import (
	"regexp"
)

var (
	emailPattern = regexp.MustCompile(`(?i)\b[a-z0-9._%+\-]+@[a-z0-9.\-]+\.[a-z]{2,}\b`)
	phonePattern = regexp.MustCompile(`(?:\+\d[\d()\-\s.]{7,}\d)|(?:\(\d{2,3}\)\s?\d[\d\-\s.]{6,}\d)`)
	cardPattern  = regexp.MustCompile(`\b(?:\d[ -]?){12,15}\d\b`)
)

// MaskText redacts e-mail addresses, phone numbers and card-like digit runs.
// Mail bodies go through it before they reach an AI provider.
func MaskText(value string) string {
	masked := emailPattern.ReplaceAllString(value, "[email_redacted]")
	masked = phonePattern.ReplaceAllString(masked, "[phone_redacted]")
	masked = cardPattern.ReplaceAllStringFunc(masked, maskCardNumber)
	return masked
}

// MaskAddress keeps only the domain of an address, e.g. for a From header in logs.
func MaskAddress(address string) string {
	return emailPattern.ReplaceAllStringFunc(address, func(match string) string {
		for i := len(match) - 1; i >= 0; i-- {
			if match[i] == '@' {
				return "***" + match[i:]
			}
		}
		return "[email_redacted]"
	})
}

func maskCardNumber(value string) string {
	digits := make([]rune, 0, len(value))
	for _, char := range value {
		if char >= '0' && char <= '9' {
			digits = append(digits, char)
		}
	}
	if len(digits) < 8 {
		return "[card_redacted]"
	}
	return "**** **** **** " + string(digits[len(digits)-4:])
}
