package optin

import (
	"strings"

	"github.com/go-playground/validator/v10"
)

// MaxEmailLength is the RFC 5321 path limit.
const MaxEmailLength = 254

var emailValidator = validator.New()

// NormalizeEmail trims and lower-cases an address.
func NormalizeEmail(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

// ValidateEmail checks a normalized address. maxLen <= 0 means MaxEmailLength.
func ValidateEmail(email string, maxLen int) error {
	if maxLen <= 0 {
		maxLen = MaxEmailLength
	}
	if email == "" {
		return NewError(KindEmailRequired, nil)
	}
	if len(email) > maxLen {
		return NewError(KindEmailTooLong, nil)
	}
	if err := emailValidator.Var(email, "email"); err != nil {
		return NewError(KindEmailInvalid, nil)
	}
	return nil
}
