package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/redis"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const prefix = "silksong:optin:"

type stepClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *stepClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *stepClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	return mr, redis.NewFromClient(rdb)
}

func TestRedisRecordsRoundTrip(t *testing.T) {
	mr, client := newRedis(t)
	recs := NewRedisRecords(client, prefix)
	ctx := context.Background()

	_, err := recs.Read(ctx, "abc")
	assert.ErrorIs(t, err, optin.ErrRecordNotFound)

	require.NoError(t, recs.Write(ctx, "abc", []byte(`{"x":1}`), time.Hour))
	data, err := recs.Read(ctx, "abc")
	require.NoError(t, err)
	assert.JSONEq(t, `{"x":1}`, string(data))
	assert.Equal(t, time.Hour+ExpiryGrace, mr.TTL(prefix+"abc"))

	require.NoError(t, recs.Write(ctx, "forever", []byte("{}"), 0))
	assert.Zero(t, mr.TTL(prefix+"forever"))

	require.NoError(t, recs.Remove(ctx, "abc"))
	require.NoError(t, recs.Remove(ctx, "abc"), "missing key is not an error")
	assert.False(t, mr.Exists(prefix+"abc"))
}

func TestRedisRecordsKeysIgnoreNestedPrefixes(t *testing.T) {
	mr, client := newRedis(t)
	ctx := context.Background()
	pending := NewRedisRecords(client, prefix)
	consumed := NewRedisRecords(client, prefix+"consumed:")

	require.NoError(t, pending.Write(ctx, "one", []byte("{}"), 0))
	require.NoError(t, consumed.Write(ctx, "two", []byte("{}"), 0))
	require.NoError(t, mr.Set("other:key", "x"))

	keys, err := pending.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"one"}, keys)

	keys, err = consumed.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"two"}, keys)
}

func TestRedisRecordsUnavailable(t *testing.T) {
	mr, client := newRedis(t)
	recs := NewRedisRecords(client, prefix)
	mr.Close()

	_, err := recs.Keys(context.Background())
	assert.Error(t, err)
	_, err = recs.Read(context.Background(), "abc")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, optin.ErrRecordNotFound)
}

func TestPendingStoreOverRedis(t *testing.T) {
	_, client := newRedis(t)
	clock := &stepClock{t: time.Date(2025, 9, 4, 12, 0, 0, 0, time.UTC)}
	pending := optin.NewPendingStore(NewRedisRecords(client, prefix), "secret", optin.PendingOptions{Clock: clock})
	ledger := optin.NewConsumedLedger(NewRedisRecords(client, prefix+"consumed:"), pending.TTL(), clock, nil)
	list := optin.NewCSVList(t.TempDir() + "/subscribers.csv")
	conf := optin.NewConfirmer(pending, list, ledger, clock, nil)
	ctx := context.Background()

	token, err := pending.Create(ctx, "Hornet@Pharloom.example")
	require.NoError(t, err)

	_, err = pending.Create(ctx, "hornet@pharloom.example")
	assert.ErrorIs(t, err, optin.ErrAlreadyPending)

	res, err := conf.Confirm(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, optin.MessageConfirmed, res.Message)

	res, err = conf.Confirm(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, optin.MessageAlreadySubscribed, res.Message)

	other, err := pending.Create(ctx, "lace@pharloom.example")
	require.NoError(t, err)
	clock.Advance(pending.TTL())
	_, err = pending.Validate(ctx, other)
	assert.ErrorIs(t, err, optin.ErrTokenExpired)

	n, err := list.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}
