package optin

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strconv"
)

// TokenLength is the number of hex characters in a confirmation token.
const TokenLength = 32

var tokenPattern = regexp.MustCompile(`^[a-f0-9]{32}$`)

// TokenGenerator derives confirmation tokens from an address, a secret and
// the issuance time in milliseconds.
type TokenGenerator struct {
	secret string
	clock  Clock
}

func NewTokenGenerator(secret string, clock Clock) *TokenGenerator {
	if clock == nil {
		clock = SystemClock
	}
	return &TokenGenerator{secret: secret, clock: clock}
}

// Generate expects an already normalized address.
func (g *TokenGenerator) Generate(email string) string {
	millis := strconv.FormatInt(g.clock.Now().UnixMilli(), 10)
	sum := sha256.Sum256([]byte(email + g.secret + millis))
	return hex.EncodeToString(sum[:])[:TokenLength]
}

// IsWellFormed reports whether token has the shape Generate produces.
func IsWellFormed(token string) bool {
	return tokenPattern.MatchString(token)
}
