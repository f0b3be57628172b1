package store

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/redis"
)

// ExpiryGrace keeps a Redis record around after its token lapses so the
// sweeper and Validate can still report it as expired rather than missing.
const ExpiryGrace = 24 * time.Hour

// RedisRecords stores records as plain string keys under a prefix.
type RedisRecords struct {
	client *redis.Client
	prefix string
}

var _ optin.RecordStore = (*RedisRecords)(nil)

func NewRedisRecords(client *redis.Client, prefix string) *RedisRecords {
	return &RedisRecords{client: client, prefix: prefix}
}

func (r *RedisRecords) key(k string) string { return r.prefix + k }

func (r *RedisRecords) Keys(ctx context.Context) ([]string, error) {
	raw, err := r.client.ScanKeys(ctx, r.prefix+"*")
	if err != nil {
		return nil, fmt.Errorf("scan %s*: %w", r.prefix, err)
	}
	keys := make([]string, 0, len(raw))
	for _, k := range raw {
		rest := strings.TrimPrefix(k, r.prefix)
		// nested prefixes (e.g. the consumed ledger) are not ours
		if rest == "" || strings.Contains(rest, ":") {
			continue
		}
		keys = append(keys, rest)
	}
	return keys, nil
}

func (r *RedisRecords) Read(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Lookup(ctx, r.key(key))
	if errors.Is(err, redis.ErrNil) {
		return nil, optin.ErrRecordNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", key, err)
	}
	return data, nil
}

func (r *RedisRecords) Write(ctx context.Context, key string, data []byte, ttl time.Duration) error {
	var exp time.Duration
	if ttl > 0 {
		exp = ttl + ExpiryGrace
	}
	if err := r.client.Set(ctx, r.key(key), data, exp); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

func (r *RedisRecords) Remove(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, r.key(key)); err != nil {
		return fmt.Errorf("del %s: %w", key, err)
	}
	return nil
}
