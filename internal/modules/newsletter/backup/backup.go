package backup

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/atomicfile"
	"go.uber.org/zap"
)

const (
	filePrefix = "subscribers-"
	fileSuffix = ".csv"
	nameLayout = "2006-01-02T15-04-05.000"
)

// Result describes one finished backup.
type Result struct {
	Filename string `json:"filename"`
	Count    int    `json:"count"`
	Location string `json:"location,omitempty"`
	Pruned   int    `json:"pruned"`
}

// Item is a backup file on disk.
type Item struct {
	Filename string    `json:"filename"`
	Size     string    `json:"size"`
	ModTime  time.Time `json:"modified"`
}

// Service exports the subscriber list to timestamped CSV files.
type Service struct {
	list     optin.SubscriberList
	dir      string
	keep     int
	uploader Uploader
	now      func() time.Time
	log      *zap.Logger

	// mu serializes name reservation and the write that claims it.
	mu sync.Mutex
}

// NewService builds a Service. uploader may be nil; keep <= 0 keeps all files.
func NewService(list optin.SubscriberList, dir string, keep int, uploader Uploader, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		list:     list,
		dir:      dir,
		keep:     keep,
		uploader: uploader,
		now:      time.Now,
		log:      logger.Named("BackupService"),
	}
}

func (s *Service) Dir() string { return s.dir }

// Run writes a new backup, prunes old ones and uploads when configured. An
// upload failure is returned after the local copy is safely on disk.
func (s *Service) Run(ctx context.Context) (Result, error) {
	subs, err := s.list.All(ctx)
	if err != nil {
		return Result{}, fmt.Errorf("read subscribers: %w", err)
	}
	data, err := optin.EncodeCSV(subs)
	if err != nil {
		return Result{}, fmt.Errorf("encode subscribers: %w", err)
	}

	s.mu.Lock()
	now, filename := s.reserveName(s.now().UTC())
	err = atomicfile.WriteFile(filepath.Join(s.dir, filename), data, 0o600)
	s.mu.Unlock()
	if err != nil {
		return Result{}, fmt.Errorf("write backup: %w", err)
	}
	res := Result{Filename: filename, Count: len(subs)}

	pruned, err := s.Prune()
	if err != nil {
		s.log.Warn("failed to prune backups", zap.Error(err))
	}
	res.Pruned = pruned

	if s.uploader != nil {
		loc, err := s.uploader.Upload(ctx, filename, data, "text/csv", now)
		if err != nil {
			s.log.Error("backup upload failed", zap.String("filename", filename), zap.Error(err))
			return res, err
		}
		res.Location = loc
	}
	s.log.Info("subscriber backup written",
		zap.String("filename", filename),
		zap.Int("count", res.Count),
		zap.Int("pruned", pruned),
		zap.String("location", res.Location))
	return res, nil
}

// List returns backups newest first.
func (s *Service) List() ([]Item, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return []Item{}, nil
		}
		return nil, err
	}
	items := []Item{}
	for _, e := range entries {
		if !isBackupName(e.Name()) || e.IsDir() {
			continue
		}
		info, err := e.Info()
		if err != nil {
			continue
		}
		items = append(items, Item{
			Filename: e.Name(),
			Size:     formatSize(info.Size()),
			ModTime:  info.ModTime(),
		})
	}
	// names embed the timestamp, so lexical order is chronological
	sort.Slice(items, func(i, j int) bool { return items[i].Filename > items[j].Filename })
	return items, nil
}

// Prune removes all but the newest keep backups.
func (s *Service) Prune() (int, error) {
	if s.keep <= 0 {
		return 0, nil
	}
	items, err := s.List()
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, it := range items[min(s.keep, len(items)):] {
		if err := os.Remove(filepath.Join(s.dir, it.Filename)); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		removed++
	}
	return removed, nil
}

// Open returns the path of a backup by name, rejecting anything else.
func (s *Service) Open(filename string) (string, error) {
	name := filepath.Base(filename)
	if name != filename || !isBackupName(name) {
		return "", os.ErrNotExist
	}
	path := filepath.Join(s.dir, name)
	if _, err := os.Stat(path); err != nil {
		return "", err
	}
	return path, nil
}

// reserveName picks the first free name at or after now, moving forward a
// millisecond at a time so runs in the same instant keep separate files.
func (s *Service) reserveName(now time.Time) (time.Time, string) {
	for {
		name := filePrefix + now.Format(nameLayout) + fileSuffix
		if _, err := os.Stat(filepath.Join(s.dir, name)); os.IsNotExist(err) {
			return now, name
		}
		now = now.Add(time.Millisecond)
	}
}

func isBackupName(name string) bool {
	return strings.HasPrefix(name, filePrefix) && strings.HasSuffix(name, fileSuffix) && !atomicfile.IsTemp(name)
}

func formatSize(size int64) string {
	switch {
	case size >= 1<<20:
		return fmt.Sprintf("%.2f MB", float64(size)/(1<<20))
	case size >= 1<<10:
		return fmt.Sprintf("%.2f KB", float64(size)/(1<<10))
	default:
		return fmt.Sprintf("%d B", size)
	}
}
