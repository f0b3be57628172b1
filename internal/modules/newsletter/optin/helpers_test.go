package optin

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const testSecret = "test-secret"

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 9, 4, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// countingRecords wraps a RecordStore and counts calls.
type countingRecords struct {
	RecordStore
	calls atomic.Int64
}

func (c *countingRecords) Keys(ctx context.Context) ([]string, error) {
	c.calls.Add(1)
	return c.RecordStore.Keys(ctx)
}

func (c *countingRecords) Read(ctx context.Context, key string) ([]byte, error) {
	c.calls.Add(1)
	return c.RecordStore.Read(ctx, key)
}

// failingRecords fails the selected operations.
type failingRecords struct {
	RecordStore
	keysErr  error
	readErr  error
	writeErr error
}

func (f *failingRecords) Keys(ctx context.Context) ([]string, error) {
	if f.keysErr != nil {
		return nil, f.keysErr
	}
	return f.RecordStore.Keys(ctx)
}

func (f *failingRecords) Read(ctx context.Context, key string) ([]byte, error) {
	if f.readErr != nil {
		return nil, f.readErr
	}
	return f.RecordStore.Read(ctx, key)
}

func (f *failingRecords) Write(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	if f.writeErr != nil {
		return f.writeErr
	}
	return f.RecordStore.Write(ctx, key, data, ttl)
}

// failingList rejects every Add with the given error.
type failingList struct {
	SubscriberList
	err   error
	panic bool
}

func (f *failingList) Add(context.Context, Subscriber) (bool, error) {
	if f.panic {
		panic("list exploded")
	}
	return false, f.err
}

var errBoom = errors.New("boom")

type fixture struct {
	clock   *fakeClock
	records *FileRecords
	pending *PendingStore
	list    *CSVList
	ledger  *ConsumedLedger
	conf    *Confirmer
	logs    *observer.ObservedLogs
}

func newFixture(t *testing.T, opts PendingOptions) *fixture {
	t.Helper()
	dir := t.TempDir()

	records, err := NewFileRecords(dir + "/pending")
	require.NoError(t, err)
	consumed, err := NewFileRecords(dir + "/pending/consumed")
	require.NoError(t, err)

	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	clock := newFakeClock()
	opts.Clock = clock
	opts.Logger = logger
	pending := NewPendingStore(records, testSecret, opts)
	list := NewCSVList(dir + "/subscribers.csv")
	ledger := NewConsumedLedger(consumed, pending.TTL(), clock, logger)

	return &fixture{
		clock:   clock,
		records: records,
		pending: pending,
		list:    list,
		ledger:  ledger,
		conf:    NewConfirmer(pending, list, ledger, clock, logger),
		logs:    logs,
	}
}
