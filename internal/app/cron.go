package app

import (
	"context"

	pkgcron "github.com/stewart-lhc/silksong-nextjs-sub001/internal/pkg/cron"
	"go.uber.org/zap"
)

const (
	JobCleanupExpiredTokens = "cleanup_expired_tokens"
	JobBackupSubscribers    = "backup_subscribers"
)

// registerCronJobs registers all scheduled background jobs. A zero interval
// leaves the job available for manual runs only.
func registerCronJobs(sched *pkgcron.Scheduler, comps *Components, logger *zap.Logger) {
	cfg := comps.Config
	cronLogger := logger.Named("CronService")

	sched.Register(pkgcron.Job{
		Name:        JobCleanupExpiredTokens,
		Description: "Remove expired pending confirmation tokens",
		Interval:    cfg.Newsletter.SweepInterval,
		Fn: func(ctx context.Context) error {
			removed, err := comps.Newsletter.Sweep(ctx)
			if err != nil {
				cronLogger.Warn("token sweep failed", zap.Error(err))
				return err
			}
			cronLogger.Info("token sweep finished", zap.Int("removed", removed))
			return nil
		},
	})

	interval := cfg.Backup.Interval
	if !cfg.Backup.Enable {
		interval = 0
	}
	sched.Register(pkgcron.Job{
		Name:        JobBackupSubscribers,
		Description: "Export the subscriber list to the backups directory",
		Interval:    interval,
		Fn: func(ctx context.Context) error {
			res, err := comps.Backup.Run(ctx)
			if err != nil {
				cronLogger.Warn("subscriber backup failed", zap.Error(err))
				return err
			}
			cronLogger.Info("subscriber backup finished", zap.String("filename", res.Filename), zap.Int("count", res.Count))
			return nil
		},
	})
}
