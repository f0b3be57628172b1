package optin

import (
	"context"
	"errors"
	"fmt"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/logsafe"
	"go.uber.org/zap"
)

const (
	MessageConfirmed         = "Subscription confirmed"
	MessageAlreadySubscribed = "Already subscribed"
)

// ConfirmResult is the outcome of a successful or idempotent confirmation.
type ConfirmResult struct {
	Message string
	Email   string
	// Created reports whether this call added the address to the list.
	Created bool
}

// Confirmer turns a pending token into a subscriber.
type Confirmer struct {
	pending *PendingStore
	list    SubscriberList
	ledger  *ConsumedLedger
	clock   Clock
	log     *zap.Logger
}

// NewConfirmer builds a Confirmer. ledger may be nil, in which case a repeated
// confirmation of a consumed token reports TOKEN_NOT_FOUND.
func NewConfirmer(pending *PendingStore, list SubscriberList, ledger *ConsumedLedger, clock Clock, logger *zap.Logger) *Confirmer {
	if clock == nil {
		clock = SystemClock
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Confirmer{
		pending: pending,
		list:    list,
		ledger:  ledger,
		clock:   clock,
		log:     logger.Named("Confirmer"),
	}
}

func (c *Confirmer) Confirm(ctx context.Context, token string) (res ConfirmResult, err error) {
	log := c.log.With(zap.String("op", "confirm"))
	defer func() {
		if r := recover(); r != nil {
			log.Error("confirmation panicked", zap.String("panic", fmt.Sprint(r)))
			res, err = ConfirmResult{}, NewError(KindConfirmationFailed, nil)
		}
	}()

	rec, err := c.pending.Validate(ctx, token)
	if err != nil {
		if IsKind(err, KindTokenNotFound) {
			if consumed := c.lookupConsumed(ctx, token, log); consumed != nil {
				log.Info("token already consumed", logsafe.Email(consumed.Email))
				return ConfirmResult{Message: MessageAlreadySubscribed, Email: consumed.Email}, nil
			}
		}
		var classified *Error
		if errors.As(err, &classified) {
			return ConfirmResult{}, err
		}
		log.Error("unexpected validation failure", zap.Error(err))
		return ConfirmResult{}, NewError(KindConfirmationFailed, err)
	}

	log = log.With(logsafe.Email(rec.Email))
	added, err := c.list.Add(ctx, Subscriber{Email: rec.Email, SubscribedAt: c.clock.Now().UTC()})
	if err != nil {
		if errors.Is(err, ErrListWrite) {
			log.Error("failed to save subscriber", logsafe.Err(err, rec.Email))
			return ConfirmResult{}, NewError(KindSaveFailed, err)
		}
		log.Error("failed to update subscriber list", logsafe.Err(err, rec.Email))
		return ConfirmResult{}, NewError(KindConfirmationFailed, err)
	}

	c.consume(ctx, rec, log)

	if !added {
		log.Info("address already subscribed")
		return ConfirmResult{Message: MessageAlreadySubscribed, Email: rec.Email}, nil
	}
	log.Info("subscription confirmed")
	return ConfirmResult{Message: MessageConfirmed, Email: rec.Email, Created: true}, nil
}

// consume records the token in the ledger and drops the pending record. Both
// steps are best-effort.
func (c *Confirmer) consume(ctx context.Context, rec *PendingToken, log *zap.Logger) {
	if c.ledger != nil {
		if err := c.ledger.Record(ctx, rec.Token, rec.Email); err != nil {
			log.Warn("failed to record consumed token", zap.Error(err))
		}
	}
	if err := c.pending.Remove(ctx, rec.Token); err != nil {
		log.Warn("failed to remove pending token", zap.Error(err))
	}
}

func (c *Confirmer) lookupConsumed(ctx context.Context, token string, log *zap.Logger) *PendingToken {
	if c.ledger == nil {
		return nil
	}
	rec, err := c.ledger.Lookup(ctx, token)
	if err != nil {
		log.Warn("failed to read consumed ledger", zap.Error(err))
		return nil
	}
	return rec
}

// Sweep runs the expired-token sweep over pending records and the ledger.
// Only pending removals are counted.
func (c *Confirmer) Sweep(ctx context.Context) (int, error) {
	removed, err := c.pending.CleanupExpired(ctx)
	if err != nil {
		return removed, err
	}
	if c.ledger != nil {
		if _, err := c.ledger.Cleanup(ctx); err != nil {
			c.log.Warn("failed to clean consumed ledger", zap.String("op", "sweep"), zap.Error(err))
		}
	}
	return removed, nil
}
