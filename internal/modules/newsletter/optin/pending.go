package optin

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/logsafe"
	"go.uber.org/zap"
)

// DefaultTokenTTL is the confirmation window.
const DefaultTokenTTL = 48 * time.Hour

// PendingOptions configures a PendingStore. Zero values take defaults.
type PendingOptions struct {
	TTL            time.Duration
	MaxEmailLength int
	// CorruptOnRead applies to CheckPending; the default skips.
	CorruptOnRead CorruptPolicy
	// CorruptOnSweep applies to CleanupExpired; the default purges.
	CorruptOnSweep CorruptPolicy
	Clock          Clock
	Logger         *zap.Logger
}

// PendingStore keeps at most one live PendingToken per address.
type PendingStore struct {
	records        RecordStore
	gen            *TokenGenerator
	clock          Clock
	ttl            time.Duration
	maxEmailLength int
	corruptOnRead  CorruptPolicy
	corruptOnSweep CorruptPolicy
	log            *zap.Logger

	// createMu serializes Create within the process so two requests for the
	// same address cannot both pass the pending check.
	createMu sync.Mutex
}

func NewPendingStore(records RecordStore, secret string, opts PendingOptions) *PendingStore {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTokenTTL
	}
	if opts.MaxEmailLength <= 0 {
		opts.MaxEmailLength = MaxEmailLength
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	return &PendingStore{
		records:        records,
		gen:            NewTokenGenerator(secret, opts.Clock),
		clock:          opts.Clock,
		ttl:            opts.TTL,
		maxEmailLength: opts.MaxEmailLength,
		corruptOnRead:  ParseCorruptPolicy(string(opts.CorruptOnRead), CorruptSkip),
		corruptOnSweep: ParseCorruptPolicy(string(opts.CorruptOnSweep), CorruptPurge),
		log:            opts.Logger.Named("PendingStore"),
	}
}

// TTL returns the validity window.
func (s *PendingStore) TTL() time.Duration { return s.ttl }

// CheckPending returns the live record for email, or nil. Expired matches are
// deleted on the way.
func (s *PendingStore) CheckPending(ctx context.Context, email string) (*PendingToken, error) {
	email = NormalizeEmail(email)
	log := s.log.With(zap.String("op", "check_pending"), logsafe.Email(email))

	keys, err := s.records.Keys(ctx)
	if err != nil {
		log.Error("failed to list pending records", zap.Error(err))
		return nil, NewError(KindCheckFailed, err)
	}

	now := s.clock.Now()
	for _, key := range keys {
		rec, err := s.load(ctx, key)
		if err != nil {
			if errors.Is(err, ErrRecordNotFound) {
				continue
			}
			if errors.Is(err, errCorruptRecord) && s.corruptOnRead == CorruptPurge {
				s.remove(ctx, key, log)
				log.Warn("purged corrupt pending record")
				continue
			}
			log.Debug("skipping unreadable pending record", zap.Error(err))
			continue
		}
		if rec.Email != email {
			continue
		}
		if rec.Expired(now, s.ttl) {
			s.remove(ctx, key, log)
			log.Info("removed expired pending token")
			continue
		}
		return &rec, nil
	}
	return nil, nil
}

// Create issues a token for email. An address with a live token gets
// ALREADY_PENDING; the existing token is not rotated.
func (s *PendingStore) Create(ctx context.Context, rawEmail string) (string, error) {
	email := NormalizeEmail(rawEmail)
	log := s.log.With(zap.String("op", "create"), logsafe.Email(email))

	if err := ValidateEmail(email, s.maxEmailLength); err != nil {
		log.Info("rejected address", zap.String("reason", string(KindOf(err))))
		return "", err
	}

	s.createMu.Lock()
	defer s.createMu.Unlock()

	existing, err := s.CheckPending(ctx, email)
	if err != nil {
		return "", err
	}
	if existing != nil {
		log.Info("confirmation already pending", zap.Time("expires_at", existing.ExpiresAt(s.ttl)))
		return "", NewError(KindAlreadyPending, nil)
	}

	rec := PendingToken{
		Email:   email,
		Created: s.clock.Now().UTC().Truncate(time.Millisecond),
		Token:   s.gen.Generate(email),
	}
	data, err := encodeRecord(rec)
	if err != nil {
		log.Error("failed to encode pending record", zap.Error(err))
		return "", NewError(KindWriteFailed, err)
	}
	if err := s.records.Write(ctx, rec.Token, data, s.ttl); err != nil {
		log.Error("failed to write pending record", zap.Error(err))
		return "", NewError(KindWriteFailed, err)
	}

	log.Info("pending token created", zap.Time("expires_at", rec.ExpiresAt(s.ttl)))
	return rec.Token, nil
}

// Validate resolves token to its live record.
func (s *PendingStore) Validate(ctx context.Context, token string) (*PendingToken, error) {
	log := s.log.With(zap.String("op", "validate"))

	if !IsWellFormed(token) {
		log.Info("rejected malformed token")
		return nil, NewError(KindTokenInvalid, nil)
	}

	data, err := s.records.Read(ctx, token)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			log.Info("token not found")
			return nil, NewError(KindTokenNotFound, nil)
		}
		log.Error("failed to read pending record", zap.Error(err))
		return nil, NewError(KindCheckFailed, err)
	}
	rec, err := decodeRecord(data)
	if err != nil {
		log.Warn("pending record is corrupt", zap.Error(err))
		return nil, NewError(KindCheckFailed, err)
	}

	log = log.With(logsafe.Email(rec.Email))
	if rec.Token != token {
		log.Warn("stored token does not match its key")
		return nil, NewError(KindTokenMismatch, nil)
	}
	if rec.Expired(s.clock.Now(), s.ttl) {
		s.remove(ctx, token, log)
		log.Info("token expired")
		return nil, NewError(KindTokenExpired, nil)
	}
	return &rec, nil
}

// Remove deletes the record for token.
func (s *PendingStore) Remove(ctx context.Context, token string) error {
	if !IsWellFormed(token) {
		return NewError(KindTokenInvalid, nil)
	}
	if err := s.records.Remove(ctx, token); err != nil {
		s.log.Warn("failed to remove pending record", zap.String("op", "remove"), zap.Error(err))
		return NewError(KindWriteFailed, err)
	}
	return nil
}

// List returns every parsable record, oldest first.
func (s *PendingStore) List(ctx context.Context) ([]PendingToken, error) {
	keys, err := s.records.Keys(ctx)
	if err != nil {
		return nil, NewError(KindCheckFailed, err)
	}
	out := make([]PendingToken, 0, len(keys))
	for _, key := range keys {
		rec, err := s.load(ctx, key)
		if err != nil {
			continue
		}
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Created.Before(out[j].Created) })
	return out, nil
}

// CleanupExpired deletes expired records and returns how many it removed.
// Unparsable records are purged under the sweep policy but not counted.
func (s *PendingStore) CleanupExpired(ctx context.Context) (int, error) {
	log := s.log.With(zap.String("op", "cleanup_expired"))

	keys, err := s.records.Keys(ctx)
	if err != nil {
		log.Error("failed to list pending records", zap.Error(err))
		return 0, NewError(KindCleanupFailed, err)
	}

	now := s.clock.Now()
	removed, purged := 0, 0
	for _, key := range keys {
		if err := ctx.Err(); err != nil {
			return removed, NewError(KindCleanupFailed, err)
		}
		rec, err := s.load(ctx, key)
		if err != nil {
			if errors.Is(err, errCorruptRecord) && s.corruptOnSweep == CorruptPurge {
				if s.remove(ctx, key, log) {
					purged++
				}
			}
			continue
		}
		if !rec.Expired(now, s.ttl) {
			continue
		}
		if s.remove(ctx, key, log) {
			removed++
		}
	}

	log.Info("expired pending tokens cleaned", zap.Int("removed", removed), zap.Int("corrupt_purged", purged))
	return removed, nil
}

func (s *PendingStore) load(ctx context.Context, key string) (PendingToken, error) {
	data, err := s.records.Read(ctx, key)
	if err != nil {
		return PendingToken{}, err
	}
	return decodeRecord(data)
}

func (s *PendingStore) remove(ctx context.Context, key string, log *zap.Logger) bool {
	if err := s.records.Remove(ctx, key); err != nil {
		log.Warn("failed to remove pending record", zap.Error(err))
		return false
	}
	return true
}
