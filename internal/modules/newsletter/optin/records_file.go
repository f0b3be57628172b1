package optin

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/atomicfile"
)

const recordExt = ".json"

// FileRecords stores one JSON file per key in a directory.
type FileRecords struct {
	dir string
}

// NewFileRecords creates dir if needed.
func NewFileRecords(dir string) (*FileRecords, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("record directory is empty")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("create record dir: %w", err)
	}
	return &FileRecords{dir: dir}, nil
}

// Dir returns the backing directory.
func (f *FileRecords) Dir() string { return f.dir }

func (f *FileRecords) path(key string) (string, error) {
	if !isSafeKey(key) {
		return "", fmt.Errorf("invalid record key %q", key)
	}
	return filepath.Join(f.dir, key+recordExt), nil
}

func (f *FileRecords) Keys(_ context.Context) ([]string, error) {
	entries, err := os.ReadDir(f.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("list records: %w", err)
	}
	keys := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || atomicfile.IsTemp(name) || !strings.HasSuffix(name, recordExt) {
			continue
		}
		keys = append(keys, strings.TrimSuffix(name, recordExt))
	}
	sort.Strings(keys)
	return keys, nil
}

func (f *FileRecords) Read(_ context.Context, key string) ([]byte, error) {
	p, err := f.path(key)
	if err != nil {
		return nil, ErrRecordNotFound
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, ErrRecordNotFound
		}
		return nil, fmt.Errorf("read record: %w", err)
	}
	return data, nil
}

func (f *FileRecords) Write(_ context.Context, key string, data []byte, _ time.Duration) error {
	p, err := f.path(key)
	if err != nil {
		return err
	}
	return atomicfile.WriteFile(p, data, 0o600)
}

func (f *FileRecords) Remove(_ context.Context, key string) error {
	p, err := f.path(key)
	if err != nil {
		return nil
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove record: %w", err)
	}
	return nil
}

// isSafeKey keeps keys inside the record directory.
func isSafeKey(key string) bool {
	if key == "" || len(key) > 128 {
		return false
	}
	for _, r := range key {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
		default:
			return false
		}
	}
	return true
}
