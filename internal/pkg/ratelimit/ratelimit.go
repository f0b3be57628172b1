// Package ratelimit provides fixed-window request counters behind a small
// interface so the HTTP layer does not care where counts live.
package ratelimit

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/redis"
)

// Limiter reports whether one more event for key fits in the current window.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error)
}

type bucket struct {
	window time.Time
	count  int
}

// Memory is a per-process limiter. Counts do not survive restarts and are not
// shared between instances.
type Memory struct {
	mu   sync.Mutex
	data map[string]bucket
	now  func() time.Time
}

func NewMemory(now func() time.Time) *Memory {
	if now == nil {
		now = time.Now
	}
	return &Memory{data: make(map[string]bucket), now: now}
}

func (m *Memory) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	win := m.now().Truncate(window)
	b, ok := m.data[key]
	if !ok || b.window.Before(win) {
		if len(m.data) > 10000 {
			m.pruneLocked(win)
		}
		m.data[key] = bucket{window: win, count: 1}
		return true, nil
	}
	if b.count >= limit {
		return false, nil
	}
	b.count++
	m.data[key] = b
	return true, nil
}

func (m *Memory) pruneLocked(current time.Time) {
	for k, b := range m.data {
		if b.window.Before(current) {
			delete(m.data, k)
		}
	}
}

// Redis counts in Redis so every instance shares the same window.
type Redis struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis(client *redis.Client, prefix string) *Redis {
	return &Redis{client: client, prefix: prefix, now: time.Now}
}

func (r *Redis) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, error) {
	win := r.now().Truncate(window).Unix()
	k := r.prefix + key + ":" + strconv.FormatInt(win, 10)
	count, err := r.client.IncrWindow(ctx, k, window+time.Second)
	if err != nil {
		return false, err
	}
	return count <= int64(limit), nil
}
