package optin

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateNormalizesAndPersists(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	token, err := f.pending.Create(ctx, "USER@Example.com ")
	require.NoError(t, err)
	assert.True(t, IsWellFormed(token))

	data, err := os.ReadFile(filepath.Join(f.records.Dir(), token+".json"))
	require.NoError(t, err)

	var rec PendingToken
	require.NoError(t, json.Unmarshal(data, &rec))
	assert.Equal(t, "user@example.com", rec.Email)
	assert.Equal(t, token, rec.Token)
	assert.True(t, f.clock.Now().Equal(rec.Created))
}

func TestCreateRejectsSecondRequest(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	first, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)

	f.clock.Advance(time.Minute)
	_, err = f.pending.Create(ctx, "A@B.com")
	assert.ErrorIs(t, err, ErrAlreadyPending)

	keys, err := f.records.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{first}, keys, "existing token is not rotated")
}

func TestCreateValidatesEmail(t *testing.T) {
	f := newFixture(t, PendingOptions{MaxEmailLength: 10})
	ctx := context.Background()

	_, err := f.pending.Create(ctx, "")
	assert.True(t, IsKind(err, KindEmailRequired))
	_, err = f.pending.Create(ctx, "long@example.com")
	assert.True(t, IsKind(err, KindEmailTooLong))
	_, err = f.pending.Create(ctx, "nope")
	assert.True(t, IsKind(err, KindEmailInvalid))
}

func TestCreateAfterExpiryIssuesNewToken(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	first, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)

	f.clock.Advance(49 * time.Hour)
	second, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)
	assert.NotEqual(t, first, second)

	keys, err := f.records.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{second}, keys)
}

func TestCheckPendingExpiredIsAbsentAndDeleted(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	token, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)

	live, err := f.pending.CheckPending(ctx, "a@b.com")
	require.NoError(t, err)
	require.NotNil(t, live)
	assert.Equal(t, token, live.Token)

	f.clock.Advance(49 * time.Hour)
	got, err := f.pending.CheckPending(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.records.Read(ctx, token)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestValidateExpiredDeletes(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	token, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)

	f.clock.Advance(49 * time.Hour)
	_, err = f.pending.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)

	_, err = f.records.Read(ctx, token)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestValidateExpiryBoundary(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	token, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)

	f.clock.Advance(48*time.Hour - time.Millisecond)
	_, err = f.pending.Validate(ctx, token)
	require.NoError(t, err)

	f.clock.Advance(time.Millisecond)
	_, err = f.pending.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateMismatch(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	token, err := f.pending.Create(ctx, "a@b.com")
	require.NoError(t, err)

	path := filepath.Join(f.records.Dir(), token+".json")
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), token, strings.Repeat("f", TokenLength), 1)
	require.NoError(t, os.WriteFile(path, []byte(tampered), 0o600))

	_, err = f.pending.Validate(ctx, token)
	assert.ErrorIs(t, err, ErrTokenMismatch)
}

func TestValidateNotFound(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	_, err := f.pending.Validate(context.Background(), strings.Repeat("ab", 16))
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestValidateShapeCheckedBeforeStorage(t *testing.T) {
	dir := t.TempDir()
	files, err := NewFileRecords(dir)
	require.NoError(t, err)
	counting := &countingRecords{RecordStore: files}
	store := NewPendingStore(counting, testSecret, PendingOptions{Clock: newFakeClock()})

	_, err = store.Validate(context.Background(), "short")
	assert.ErrorIs(t, err, ErrTokenInvalid)
	assert.Zero(t, counting.calls.Load())
}

func TestValidateCorruptRecordIsCheckFailed(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()
	token := strings.Repeat("0", TokenLength)
	require.NoError(t, f.records.Write(ctx, token, []byte("{not json"), 0))

	_, err := f.pending.Validate(ctx, token)
	assert.True(t, IsKind(err, KindCheckFailed))
}

func TestCheckPendingSkipsCorruptByDefault(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()
	bad := strings.Repeat("0", TokenLength)
	require.NoError(t, f.records.Write(ctx, bad, []byte("{not json"), 0))

	got, err := f.pending.CheckPending(ctx, "a@b.com")
	require.NoError(t, err)
	assert.Nil(t, got)

	_, err = f.records.Read(ctx, bad)
	assert.NoError(t, err, "corrupt record stays on the read path")
}

func TestCheckPendingPurgesCorruptWhenConfigured(t *testing.T) {
	f := newFixture(t, PendingOptions{CorruptOnRead: CorruptPurge})
	ctx := context.Background()
	bad := strings.Repeat("0", TokenLength)
	require.NoError(t, f.records.Write(ctx, bad, []byte("{not json"), 0))

	_, err := f.pending.CheckPending(ctx, "a@b.com")
	require.NoError(t, err)

	_, err = f.records.Read(ctx, bad)
	assert.ErrorIs(t, err, ErrRecordNotFound)
}

func TestCleanupExpired(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	old1, err := f.pending.Create(ctx, "old1@b.com")
	require.NoError(t, err)
	f.clock.Advance(time.Millisecond)
	old2, err := f.pending.Create(ctx, "old2@b.com")
	require.NoError(t, err)

	f.clock.Advance(47 * time.Hour)
	fresh, err := f.pending.Create(ctx, "fresh@b.com")
	require.NoError(t, err)

	bad := strings.Repeat("0", TokenLength)
	require.NoError(t, f.records.Write(ctx, bad, []byte("garbage"), 0))

	f.clock.Advance(2 * time.Hour)
	removed, err := f.pending.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, removed, "corrupt records are purged but not counted")

	keys, err := f.records.Keys(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{fresh}, keys)
	assert.NotContains(t, keys, old1)
	assert.NotContains(t, keys, old2)
}

func TestCleanupExpiredKeepsCorruptWhenSkipping(t *testing.T) {
	f := newFixture(t, PendingOptions{CorruptOnSweep: CorruptSkip})
	ctx := context.Background()
	bad := strings.Repeat("0", TokenLength)
	require.NoError(t, f.records.Write(ctx, bad, []byte("garbage"), 0))

	removed, err := f.pending.CleanupExpired(ctx)
	require.NoError(t, err)
	assert.Zero(t, removed)

	_, err = f.records.Read(ctx, bad)
	assert.NoError(t, err)
}

func TestStorageFailuresAreClassified(t *testing.T) {
	files, err := NewFileRecords(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	broken := NewPendingStore(&failingRecords{RecordStore: files, keysErr: errBoom}, testSecret, PendingOptions{})
	_, err = broken.Create(ctx, "a@b.com")
	assert.True(t, IsKind(err, KindCheckFailed))
	_, err = broken.CleanupExpired(ctx)
	assert.True(t, IsKind(err, KindCleanupFailed))

	readOnly := NewPendingStore(&failingRecords{RecordStore: files, writeErr: errBoom}, testSecret, PendingOptions{})
	_, err = readOnly.Create(ctx, "a@b.com")
	assert.True(t, IsKind(err, KindWriteFailed))
	assert.ErrorIs(t, err, errBoom)

	unreadable := NewPendingStore(&failingRecords{RecordStore: files, readErr: errBoom}, testSecret, PendingOptions{})
	_, err = unreadable.Validate(ctx, strings.Repeat("a", TokenLength))
	assert.True(t, IsKind(err, KindCheckFailed))
}

func TestListOrdersByCreation(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	for _, email := range []string{"c@b.com", "a@b.com", "b@b.com"} {
		_, err := f.pending.Create(ctx, email)
		require.NoError(t, err)
		f.clock.Advance(time.Second)
	}

	list, err := f.pending.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "c@b.com", list[0].Email)
	assert.Equal(t, "b@b.com", list[2].Email)
}

func TestFileRecordsIgnoreTempFiles(t *testing.T) {
	f := newFixture(t, PendingOptions{})
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(f.records.Dir(), ".abc.json.tmp-123"), []byte("x"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(f.records.Dir(), "notes.txt"), []byte("x"), 0o600))

	keys, err := f.records.Keys(ctx)
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = f.records.Read(ctx, "../escape")
	assert.ErrorIs(t, err, ErrRecordNotFound)
}
