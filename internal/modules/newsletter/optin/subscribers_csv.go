package optin

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/atomicfile"
)

// pathLocks serializes read-modify-write cycles per list file.
var pathLocks sync.Map

func lockFor(path string) *sync.Mutex {
	mu, _ := pathLocks.LoadOrStore(path, &sync.Mutex{})
	return mu.(*sync.Mutex)
}

// CSVList keeps subscribers in a CSV file with header email,subscribed_at.
type CSVList struct {
	path string
}

func NewCSVList(path string) *CSVList {
	return &CSVList{path: path}
}

// Path returns the backing file.
func (l *CSVList) Path() string { return l.path }

func (l *CSVList) Add(_ context.Context, s Subscriber) (bool, error) {
	mu := lockFor(l.path)
	mu.Lock()
	defer mu.Unlock()

	raw, err := l.readRaw()
	if err != nil {
		return false, err
	}
	subs, err := parseSubscribers(raw)
	if err != nil {
		return false, err
	}
	for _, existing := range subs {
		if strings.EqualFold(existing.Email, s.Email) {
			return false, nil
		}
	}

	line, err := encodeLine(s)
	if err != nil {
		return false, err
	}
	var buf bytes.Buffer
	if len(bytes.TrimSpace(raw)) == 0 {
		buf.WriteString(strings.Join(SubscriberHeader, ",") + "\n")
	} else {
		buf.Write(raw)
		if !bytes.HasSuffix(raw, []byte("\n")) {
			buf.WriteByte('\n')
		}
	}
	buf.Write(line)

	if err := atomicfile.WriteFile(l.path, buf.Bytes(), 0o644); err != nil {
		return false, fmt.Errorf("%w: %w", ErrListWrite, err)
	}
	return true, nil
}

func (l *CSVList) All(_ context.Context) ([]Subscriber, error) {
	raw, err := l.readRaw()
	if err != nil {
		return nil, err
	}
	return parseSubscribers(raw)
}

func (l *CSVList) Count(ctx context.Context) (int, error) {
	subs, err := l.All(ctx)
	if err != nil {
		return 0, err
	}
	return len(subs), nil
}

// readRaw treats a missing file as an empty list.
func (l *CSVList) readRaw() ([]byte, error) {
	raw, err := os.ReadFile(l.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("read subscriber list: %w", err)
	}
	return raw, nil
}

func encodeLine(s Subscriber) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write([]string{s.Email, FormatTimestamp(s.SubscribedAt)}); err != nil {
		return nil, err
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}

func parseSubscribers(raw []byte) ([]Subscriber, error) {
	r := csv.NewReader(bytes.NewReader(raw))
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	var out []Subscriber
	first := true
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("parse subscriber list: %w", err)
		}
		if first {
			first = false
			if len(row) > 0 && strings.EqualFold(strings.TrimSpace(row[0]), SubscriberHeader[0]) {
				continue
			}
		}
		if len(row) == 0 || strings.TrimSpace(row[0]) == "" {
			continue
		}
		s := Subscriber{Email: strings.TrimSpace(row[0])}
		if len(row) > 1 {
			if t, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(row[1])); err == nil {
				s.SubscribedAt = t
			}
		}
		out = append(out, s)
	}
	return out, nil
}
