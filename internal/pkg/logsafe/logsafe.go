// Package logsafe keeps subscriber addresses out of log output.
package logsafe

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// HashLength is the number of hex characters kept from the digest.
const HashLength = 12

// Hash returns a truncated one-way hash of the normalized address.
func Hash(email string) string {
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:HashLength]
}

// Email returns a zap field carrying the address hash under "email_hash".
func Email(email string) zap.Field {
	return zap.String("email_hash", Hash(email))
}

// Redact replaces every occurrence of the given addresses in s with their hash.
func Redact(s string, emails ...string) string {
	for _, email := range emails {
		e := strings.TrimSpace(email)
		if e == "" {
			continue
		}
		s = replaceFold(s, e, "<"+Hash(e)+">")
	}
	return s
}

// Err returns an error field whose message has the given addresses redacted.
// SMTP servers echo recipients in their replies, so mail errors go through here.
func Err(err error, emails ...string) zap.Field {
	if err == nil {
		return zap.Skip()
	}
	return zap.Error(errors.New(Redact(err.Error(), emails...)))
}

// Scrub replaces anything shaped like an email address in s with its hash.
// It covers text whose addresses are not known up front, such as gin errors.
func Scrub(s string) string {
	return addressPattern.ReplaceAllStringFunc(s, func(m string) string {
		return "<" + Hash(m) + ">"
	})
}

var addressPattern = regexp.MustCompile(`[^\s<>()\[\]"',;:]+@[^\s<>()\[\]"',;:]+`)

// replaceFold matches case-insensitively on s itself. Lowercasing first would
// shift byte offsets for runes whose lower form has a different width.
func replaceFold(s, old, repl string) string {
	re, err := regexp.Compile("(?i)" + regexp.QuoteMeta(old))
	if err != nil {
		return s
	}
	return re.ReplaceAllLiteralString(s, repl)
}
