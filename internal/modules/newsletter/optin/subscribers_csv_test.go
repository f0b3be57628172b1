package optin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCSVListConcurrentAddIsExactlyOnce(t *testing.T) {
	list := NewCSVList(filepath.Join(t.TempDir(), "subscribers.csv"))
	ctx := context.Background()
	now := time.Date(2025, 9, 4, 0, 0, 0, 0, time.UTC)

	var wg sync.WaitGroup
	var mu sync.Mutex
	added := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			email := fmt.Sprintf("user%d@example.com", i%5)
			ok, err := list.Add(ctx, Subscriber{Email: email, SubscribedAt: now})
			assert.NoError(t, err)
			if ok {
				mu.Lock()
				added++
				mu.Unlock()
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, added)
	count, err := list.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)
}

func TestCSVListMissingFileIsEmpty(t *testing.T) {
	list := NewCSVList(filepath.Join(t.TempDir(), "missing.csv"))
	subs, err := list.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, subs)
}

func TestCSVListKeepsExistingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "subscribers.csv")
	require.NoError(t, os.WriteFile(path, []byte("email,subscribed_at\nold@example.com,2024-01-01T00:00:00.000Z"), 0o644))
	list := NewCSVList(path)
	ctx := context.Background()

	ok, err := list.Add(ctx, Subscriber{Email: "new@example.com", SubscribedAt: time.Date(2025, 1, 2, 3, 4, 5, 6e6, time.UTC)})
	require.NoError(t, err)
	assert.True(t, ok)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"email,subscribed_at\nold@example.com,2024-01-01T00:00:00.000Z\nnew@example.com,2025-01-02T03:04:05.006Z\n",
		string(data))

	subs, err := list.All(ctx)
	require.NoError(t, err)
	require.Len(t, subs, 2)
	assert.Equal(t, 2024, subs[0].SubscribedAt.Year())
}

func TestCSVListUnreadableIsNotWriteFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "file")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))

	// parent is a regular file
	list := NewCSVList(filepath.Join(blocker, "subscribers.csv"))
	_, err := list.Add(context.Background(), Subscriber{Email: "a@b.com"})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrListWrite)
}

func TestEncodeCSV(t *testing.T) {
	data, err := EncodeCSV([]Subscriber{{Email: "a@b.com", SubscribedAt: time.Date(2025, 9, 4, 12, 0, 0, 0, time.UTC)}})
	require.NoError(t, err)
	assert.Equal(t, "email,subscribed_at\na@b.com,2025-09-04T12:00:00.000Z\n", string(data))
}
