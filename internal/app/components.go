package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/config"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/database"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/backup"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/optin"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/store"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/newsletter/subscribe"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/modules/system/core/health"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/mail"
	"github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/ratelimit"
	pkgredis "github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/redis"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	consumedKeySegment  = "consumed:"
	rateLimitKeySegment = "ratelimit:"
)

// Components is the wired newsletter stack, shared by the server and optinctl.
type Components struct {
	Config *config.AppConfig
	Logger *zap.Logger

	Redis *pkgredis.Client
	DB    *gorm.DB

	PendingRecords optin.RecordStore
	Pending        *optin.PendingStore
	Ledger         *optin.ConsumedLedger
	List           optin.SubscriberList
	Confirmer      *optin.Confirmer
	Mailer         mail.Mailer
	Newsletter     *subscribe.Service
	Backup         *backup.Service
	Limiter        ratelimit.Limiter
}

// Build connects the configured backends and assembles the services.
func Build(cfg *config.AppConfig, logger *zap.Logger) (*Components, error) {
	if cfg == nil {
		return nil, errors.New("config is nil")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Components{Config: cfg, Logger: logger}

	if cfg.Redis.Enable {
		rc, err := pkgredis.Connect(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("redis: %w", err)
		}
		c.Redis = rc
	}

	if err := c.buildPending(); err != nil {
		c.Close()
		return nil, err
	}
	if err := c.buildList(); err != nil {
		c.Close()
		return nil, err
	}

	c.Confirmer = optin.NewConfirmer(c.Pending, c.List, c.Ledger, nil, logger)
	c.Mailer = mail.New(cfg.Mail)
	c.Newsletter = subscribe.NewService(subscribe.Deps{
		Pending:   c.Pending,
		Confirmer: c.Confirmer,
		List:      c.List,
		Mailer:    c.Mailer,
		PublicURL: cfg.Newsletter.PublicURL,
		SiteName:  cfg.Mail.SiteName,
		Logger:    logger,
	})

	var uploader backup.Uploader
	if cfg.Backup.S3.Enabled() {
		up, err := backup.NewS3Uploader(cfg.Backup.S3)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("backup: %w", err)
		}
		uploader = up
	}
	c.Backup = backup.NewService(c.List, cfg.BackupDir(), cfg.Backup.Keep, uploader, logger)

	if c.Redis != nil {
		c.Limiter = ratelimit.NewRedis(c.Redis, cfg.Redis.KeyPrefix+rateLimitKeySegment)
	} else {
		c.Limiter = ratelimit.NewMemory(nil)
	}
	return c, nil
}

func (c *Components) buildPending() error {
	cfg := c.Config
	var ledgerRecords optin.RecordStore

	switch cfg.Newsletter.PendingStore {
	case config.StorePendingRedis:
		if c.Redis == nil {
			return errors.New("pending store redis requires redis")
		}
		c.PendingRecords = store.NewRedisRecords(c.Redis, cfg.Redis.KeyPrefix)
		ledgerRecords = store.NewRedisRecords(c.Redis, cfg.Redis.KeyPrefix+consumedKeySegment)
	default:
		recs, err := optin.NewFileRecords(cfg.PendingDir())
		if err != nil {
			return fmt.Errorf("pending store: %w", err)
		}
		consumed, err := optin.NewFileRecords(cfg.ConsumedDir())
		if err != nil {
			return fmt.Errorf("consumed ledger: %w", err)
		}
		c.PendingRecords, ledgerRecords = recs, consumed
	}

	c.Pending = optin.NewPendingStore(c.PendingRecords, cfg.Newsletter.Secret, optin.PendingOptions{
		TTL:            cfg.Newsletter.TokenTTL,
		MaxEmailLength: cfg.Newsletter.MaxEmailLength,
		CorruptOnRead:  optin.CorruptPolicy(cfg.Newsletter.CorruptOnRead),
		CorruptOnSweep: optin.CorruptPolicy(cfg.Newsletter.CorruptOnSweep),
		Logger:         c.Logger,
	})
	c.Ledger = optin.NewConsumedLedger(ledgerRecords, cfg.Newsletter.TokenTTL, nil, c.Logger)
	return nil
}

func (c *Components) buildList() error {
	cfg := c.Config
	switch cfg.Newsletter.SubscriberStore {
	case config.StoreListSQL:
		db, err := database.Connect(cfg, true)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		c.DB = db
		c.List = store.NewGormList(db)
	default:
		c.List = optin.NewCSVList(cfg.SubscribersPath())
	}
	return nil
}

// HealthChecks probes the pending store and the subscriber list.
func (c *Components) HealthChecks() []health.Check {
	return []health.Check{
		{Name: "pending_store", Fn: func(ctx context.Context) error {
			_, err := c.PendingRecords.Keys(ctx)
			return err
		}},
		{Name: "subscriber_list", Fn: func(ctx context.Context) error {
			_, err := c.List.Count(ctx)
			return err
		}},
	}
}

// Close releases connections opened by Build.
func (c *Components) Close() {
	if c.DB != nil {
		if err := database.Close(c.DB); err != nil {
			c.Logger.Warn("failed to close database", zap.Error(err))
		}
	}
	if c.Redis != nil {
		if err := c.Redis.Close(); err != nil {
			c.Logger.Warn("failed to close redis", zap.Error(err))
		}
	}
}
