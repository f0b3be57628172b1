package nativelog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTodayFilename(t *testing.T) {
	assert.Equal(t, "stdout_9-4-25.log", TodayFilename(time.Date(2025, 9, 4, 1, 0, 0, 0, time.UTC)))
}

func TestWriterAppendsToDailyFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "logs")
	w, err := NewWriter(dir)
	require.NoError(t, err)
	w.now = func() time.Time { return time.Date(2025, 9, 4, 1, 0, 0, 0, time.UTC) }

	_, err = w.Write([]byte("one\n"))
	require.NoError(t, err)
	_, err = w.Write([]byte("two\n"))
	require.NoError(t, err)

	data, err := os.ReadFile(filepath.Join(dir, "stdout_9-4-25.log"))
	require.NoError(t, err)
	assert.Equal(t, "one\ntwo\n", string(data))
}

func TestResolveDir(t *testing.T) {
	t.Setenv(EnvLogDir, "")
	assert.Equal(t, "/var/log/silksong", ResolveDir("/var/log/silksong"))
	assert.Equal(t, filepath.Join(".", "logs"), ResolveDir(""))

	t.Setenv(EnvLogDir, "/tmp/override")
	assert.Equal(t, "/tmp/override", ResolveDir("/var/log/silksong"))
}
