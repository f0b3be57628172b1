package logsafe

import (
	"errors"
	"regexp"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestHash_NormalizesAndTruncates(t *testing.T) {
	h := Hash("  Hornet@Pharloom.test ")
	assert.Len(t, h, HashLength)
	assert.Regexp(t, regexp.MustCompile(`^[a-f0-9]+$`), h)
	assert.Equal(t, h, Hash("hornet@pharloom.test"))
	assert.NotEqual(t, h, Hash("knight@hallownest.test"))
	assert.Empty(t, Hash("   "))
}

func TestRedact_CaseInsensitive(t *testing.T) {
	msg := "550 5.1.1 <HORNET@pharloom.test>: recipient rejected for hornet@pharloom.test"
	out := Redact(msg, "hornet@pharloom.test")
	assert.NotContains(t, out, "pharloom")
	assert.Contains(t, out, "<"+Hash("hornet@pharloom.test")+">")
}

func TestRedact_NonASCIIPrefix(t *testing.T) {
	for _, msg := range []string{
		"İİİİİİİİİİ a@b.com",
		"İİİİ rejected A@B.com",
	} {
		out := Redact(msg, "a@b.com")
		assert.NotContains(t, strings.ToLower(out), "a@b.com", msg)
		assert.True(t, utf8.ValidString(out), "invalid utf-8 for %q: %q", msg, out)
		assert.Contains(t, out, "<"+Hash("a@b.com")+">")
		assert.True(t, strings.HasPrefix(out, "İİİİ"))
	}
}

func TestScrub_UnknownAddresses(t *testing.T) {
	msg := "Error #01: smtp rcpt: 550 5.1.1 <hornet@pharloom.example>: Recipient address rejected"
	out := Scrub(msg)
	assert.NotContains(t, out, "hornet@pharloom.example")
	assert.Contains(t, out, "<"+Hash("hornet@pharloom.example")+">")
	assert.Contains(t, out, "Recipient address rejected")
	assert.Equal(t, "no address here", Scrub("no address here"))
}

func TestErr_FieldIsRedacted(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := zap.New(core)

	log.Error("send failed", Err(errors.New("dial: rejected hornet@pharloom.test"), "hornet@pharloom.test"), Email("hornet@pharloom.test"))

	entries := logs.All()
	if assert.Len(t, entries, 1) {
		for k, v := range entries[0].ContextMap() {
			assert.NotContains(t, v, "hornet@pharloom.test", "field %s leaks the address", k)
		}
	}
}

func TestErr_NilIsSkipped(t *testing.T) {
	assert.Equal(t, zap.Skip(), Err(nil))
}
