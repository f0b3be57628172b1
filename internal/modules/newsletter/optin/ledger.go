package optin

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ConsumedLedger remembers tokens that were already confirmed so a repeated
// click on the same link can be answered without the pending record.
type ConsumedLedger struct {
	records RecordStore
	clock   Clock
	ttl     time.Duration
	log     *zap.Logger
}

func NewConsumedLedger(records RecordStore, ttl time.Duration, clock Clock, logger *zap.Logger) *ConsumedLedger {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConsumedLedger{records: records, clock: clock, ttl: ttl, log: logger.Named("ConsumedLedger")}
}

// Record stores token as consumed for email at the current time.
func (l *ConsumedLedger) Record(ctx context.Context, token, email string) error {
	data, err := encodeRecord(PendingToken{
		Email:   email,
		Created: l.clock.Now().UTC().Truncate(time.Millisecond),
		Token:   token,
	})
	if err != nil {
		return err
	}
	return l.records.Write(ctx, token, data, l.ttl)
}

// Lookup returns the live entry for token, or nil. Expired or corrupt entries
// are dropped.
func (l *ConsumedLedger) Lookup(ctx context.Context, token string) (*PendingToken, error) {
	if !IsWellFormed(token) {
		return nil, nil
	}
	data, err := l.records.Read(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	rec, err := decodeRecord(data)
	if err != nil || rec.Token != token || rec.Expired(l.clock.Now(), l.ttl) {
		_ = l.records.Remove(ctx, token)
		return nil, nil
	}
	return &rec, nil
}

// Cleanup drops expired and unparsable entries.
func (l *ConsumedLedger) Cleanup(ctx context.Context) (int, error) {
	keys, err := l.records.Keys(ctx)
	if err != nil {
		return 0, err
	}
	now := l.clock.Now()
	removed := 0
	for _, key := range keys {
		data, err := l.records.Read(ctx, key)
		if err != nil {
			continue
		}
		rec, err := decodeRecord(data)
		if err == nil && !rec.Expired(now, l.ttl) {
			continue
		}
		if err := l.records.Remove(ctx, key); err != nil {
			l.log.Warn("failed to remove ledger entry", zap.Error(err))
			continue
		}
		removed++
	}
	if removed > 0 {
		l.log.Debug("ledger entries dropped", zap.Int("removed", removed))
	}
	return removed, nil
}
