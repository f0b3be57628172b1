package optin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// ErrRecordNotFound is returned by RecordStore.Read when no record exists.
var ErrRecordNotFound = errors.New("record not found")

// errCorruptRecord marks a record that exists but cannot be parsed.
var errCorruptRecord = errors.New("corrupt record")

// RecordStore holds raw records addressed by key.
type RecordStore interface {
	Keys(ctx context.Context) ([]string, error)
	Read(ctx context.Context, key string) ([]byte, error)
	// Write must replace the record atomically. ttl is a hint for stores that
	// expire keys natively; zero means no expiry.
	Write(ctx context.Context, key string, data []byte, ttl time.Duration) error
	// Remove deletes the record; a missing record is not an error.
	Remove(ctx context.Context, key string) error
}

// PendingToken is one outstanding, unconfirmed subscription request.
type PendingToken struct {
	Email   string    `json:"email"`
	Created time.Time `json:"created"`
	Token   string    `json:"token"`
}

// ExpiresAt returns the end of the validity window.
func (p PendingToken) ExpiresAt(ttl time.Duration) time.Time {
	return p.Created.Add(ttl)
}

// Expired reports whether the record is outside its validity window at now.
func (p PendingToken) Expired(now time.Time, ttl time.Duration) bool {
	return now.Sub(p.Created) >= ttl
}

func encodeRecord(p PendingToken) ([]byte, error) {
	return json.MarshalIndent(p, "", "  ")
}

func decodeRecord(data []byte) (PendingToken, error) {
	var p PendingToken
	if err := json.Unmarshal(data, &p); err != nil {
		return PendingToken{}, fmt.Errorf("%w: %v", errCorruptRecord, err)
	}
	if p.Email == "" || p.Token == "" || p.Created.IsZero() {
		return PendingToken{}, fmt.Errorf("%w: missing fields", errCorruptRecord)
	}
	return p, nil
}

// CorruptPolicy decides what happens to a record that cannot be parsed.
type CorruptPolicy string

const (
	// CorruptSkip leaves the record on disk and treats it as absent.
	CorruptSkip CorruptPolicy = "skip"
	// CorruptPurge deletes the record.
	CorruptPurge CorruptPolicy = "purge"
)

// ParseCorruptPolicy accepts "skip" or "purge"; anything else yields fallback.
func ParseCorruptPolicy(raw string, fallback CorruptPolicy) CorruptPolicy {
	switch CorruptPolicy(raw) {
	case CorruptSkip, CorruptPurge:
		return CorruptPolicy(raw)
	default:
		return fallback
	}
}
