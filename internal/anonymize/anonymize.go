// Package anonymize redacts PII from message content before it is
// segmented, stored, or sent to the model.
package anonymize

import (
	"regexp"
	"strings"
)

const (
	// PhonePlaceholder replaces Vietnamese phone numbers.
	PhonePlaceholder = "[SDT]"
	// EmailPlaceholder replaces email addresses.
	EmailPlaceholder = "[EMAIL]"
)

var (
	phoneRe = regexp.MustCompile(`(?:\+84|84|0)(?:[\s\.\-]?\d{1,3}){2,3}[\s\.\-]?\d{3,4}\b`)
	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
)

// Redact replaces phone numbers and email addresses with fixed placeholders.
// Phone redaction runs first, but only outside email spans: an address like
// shop0901234567@gmail.com must become [EMAIL], not shop[SDT]@gmail.com.
// Idempotent — the placeholders match neither pattern.
func Redact(text string) string {
	spans := emailRe.FindAllStringIndex(text, -1)
	if len(spans) == 0 {
		return phoneRe.ReplaceAllString(text, PhonePlaceholder)
	}

	var b strings.Builder
	prev := 0
	for _, sp := range spans {
		b.WriteString(phoneRe.ReplaceAllString(text[prev:sp[0]], PhonePlaceholder))
		b.WriteString(EmailPlaceholder)
		prev = sp[1]
	}
	b.WriteString(phoneRe.ReplaceAllString(text[prev:], PhonePlaceholder))
	return b.String()
}
