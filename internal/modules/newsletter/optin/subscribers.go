package optin

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"time"
)

// SubscriberHeader is the first line of every exported list.
var SubscriberHeader = []string{"email", "subscribed_at"}

// TimestampLayout is ISO-8601 with milliseconds, always UTC.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// ErrListWrite marks a failure to persist the subscriber list. Confirmer maps
// it to SAVE_FAILED.
var ErrListWrite = errors.New("subscriber list write failed")

// Subscriber is one confirmed address.
type Subscriber struct {
	Email        string    `json:"email"`
	SubscribedAt time.Time `json:"subscribed_at"`
}

// SubscriberList is the durable, append-only list of confirmed addresses.
type SubscriberList interface {
	// Add appends s unless the address is already present (case-insensitive).
	// added is false for an existing address.
	Add(ctx context.Context, s Subscriber) (added bool, err error)
	All(ctx context.Context) ([]Subscriber, error)
	Count(ctx context.Context) (int, error)
}

// FormatTimestamp renders t the way the list stores it.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// EncodeCSV renders subscribers with the header line.
func EncodeCSV(subs []Subscriber) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(SubscriberHeader); err != nil {
		return nil, err
	}
	for _, s := range subs {
		if err := w.Write([]string{s.Email, FormatTimestamp(s.SubscribedAt)}); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
