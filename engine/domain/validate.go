package domain

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Injection patterns — query fragments that should never appear in user input.
var injectionPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\b(DROP|DELETE|INSERT|UPDATE|ALTER|EXEC|UNION)\b.*\b(TABLE|FROM|INTO|SELECT|SET)\b`),
	regexp.MustCompile(`(?i)(--|;)\s*(DROP|DELETE|SELECT)`),
	regexp.MustCompile(`(?i)\$\{.*\}`),            // template injection
	regexp.MustCompile(`(?i)\{\s*"\$[a-z]+"\s*:`), // operator injection
}

const minQueryLength = 3

// ValidateEvent checks a CrisisEvent before ingestion.
func ValidateEvent(e CrisisEvent) error {
	if strings.TrimSpace(e.Title) == "" {
		return NewValidationError("title", e.Title, ErrMissingTitle)
	}
	if strings.TrimSpace(e.ContentText()) == "" {
		return NewValidationError("text", "", ErrMissingContent)
	}
	if e.Category != "" && !ValidCategories[e.Category] {
		return NewValidationError("category", string(e.Category), ErrUnknownCategory)
	}
	return nil
}

// ValidateQuery checks a user query. Failures here are caller contract
// violations and are the only errors the answer pipeline surfaces.
func ValidateQuery(q Query) error {
	text := strings.TrimSpace(q.Text)

	if utf8.RuneCountInString(text) < minQueryLength {
		return NewValidationError("text", text, ErrQueryTooShort)
	}

	for _, pat := range injectionPatterns {
		if pat.MatchString(text) {
			return NewValidationError("text", text, ErrQueryInjection)
		}
	}

	return nil
}
