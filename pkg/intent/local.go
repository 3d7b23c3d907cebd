package intent

import (
	"strings"
	"unicode"

	"github.com/aretw0/concierge/pkg/domain"
)

const (
	msgBadName  = "Please tell me your name, for example: Anna."
	msgBadPhone = "Please send your phone number, for example: +7 701 123 45 67."
)

// LocalValidate checks name and phone input without any external service.
// It never fails: every input is either accepted or rejected with a prompt.
func LocalValidate(text string, kind domain.ValidationKind) domain.Validation {
	text = strings.TrimSpace(text)
	if strings.HasPrefix(text, "/") {
		return invalid(kind)
	}
	switch kind {
	case domain.KindName:
		if name, ok := extractName(text); ok {
			return domain.Validation{Valid: true, Value: name}
		}
	case domain.KindPhone:
		if phone, ok := NormalizePhone(text); ok {
			return domain.Validation{Valid: true, Value: phone}
		}
	}
	return invalid(kind)
}

func invalid(kind domain.ValidationKind) domain.Validation {
	if kind == domain.KindPhone {
		return domain.Validation{Message: msgBadPhone}
	}
	return domain.Validation{Message: msgBadName}
}

// extractName returns the first word made only of letters, at least two long.
func extractName(text string) (string, bool) {
	for _, field := range strings.Fields(text) {
		word := strings.TrimFunc(field, func(r rune) bool { return unicode.IsPunct(r) })
		if len([]rune(word)) < 2 {
			continue
		}
		if strings.IndexFunc(word, func(r rune) bool { return !unicode.IsLetter(r) && r != '-' }) >= 0 {
			continue
		}
		r := []rune(word)
		r[0] = unicode.ToUpper(r[0])
		return string(r), true
	}
	return "", false
}

// NormalizePhone extracts a phone number from free text as digits only.
// An 11-digit number starting with 8 is rewritten to the +7 form.
func NormalizePhone(text string) (string, bool) {
	digits := domain.PhoneDigits(text)
	if len(digits) == 11 && digits[0] == '8' {
		digits = "7" + digits[1:]
	}
	if len(digits) < 10 || len(digits) > 15 {
		return "", false
	}
	return digits, true
}
