package maintenance

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	iauth "github.com/sitebridgehq/sitebridge/internal/auth"
	"github.com/sitebridgehq/sitebridge/internal/services"
	"github.com/sitebridgehq/sitebridge/pkg/logger"
)

const (
	defaultBackupRetention = 7 * 24 * time.Hour
	defaultSessionSpec     = "@hourly"
	defaultBackupSpec      = "@daily"
)

// Cleaner coordinates background maintenance tasks such as purging expired sessions
// and removing finished backup jobs past their retention window.
type Cleaner struct {
	sessions  *iauth.SessionBroker
	backups   *services.BackupService
	cron      *cron.Cron
	log       *zap.Logger
	enabled   bool
	retention time.Duration

	sessionSchedule string
	backupSchedule  string
}

// Option customises the Cleaner.
type Option func(*Cleaner)

// WithCron injects a preconfigured cron instance, primarily for testing.
func WithCron(c *cron.Cron) Option {
	return func(cleaner *Cleaner) {
		if c != nil {
			cleaner.cron = c
		}
	}
}

// WithBackupRetention adjusts how long finished backup jobs are retained before cleanup.
func WithBackupRetention(retention time.Duration) Option {
	return func(cleaner *Cleaner) {
		if retention > 0 {
			cleaner.retention = retention
		}
	}
}

// WithSessionSchedule overrides the cron specification for session cleanup.
func WithSessionSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.sessionSchedule = spec
		}
	}
}

// WithBackupSchedule overrides the cron specification for backup retention enforcement.
func WithBackupSchedule(spec string) Option {
	return func(cleaner *Cleaner) {
		if spec != "" {
			cleaner.backupSchedule = spec
		}
	}
}

// NewCleaner constructs a Cleaner with sensible defaults. Any nil dependency results in
// the corresponding cleanup job being skipped.
func NewCleaner(sessions *iauth.SessionBroker, backups *services.BackupService, opts ...Option) *Cleaner {
	cleaner := &Cleaner{
		sessions:        sessions,
		backups:         backups,
		retention:       defaultBackupRetention,
		sessionSchedule: defaultSessionSpec,
		backupSchedule:  defaultBackupSpec,
		log:             logger.WithModule("maintenance"),
	}

	for _, opt := range opts {
		opt(cleaner)
	}

	if cleaner.cron == nil {
		cleaner.cron = cron.New(cron.WithLogger(cron.DiscardLogger))
	}

	cleaner.enabled = cleaner.sessions != nil || cleaner.backups != nil

	return cleaner
}

// Start registers cleanup jobs with the cron scheduler and launches it if at least one cleanup is enabled.
func (c *Cleaner) Start() error {
	if !c.enabled {
		return nil
	}

	if c.sessions != nil {
		if _, err := c.cron.AddFunc(c.sessionSchedule, func() {
			ctx := context.Background()
			if _, err := c.sessions.CleanupExpired(ctx); err != nil {
				c.log.Warn("session cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	if c.backups != nil && c.retention > 0 {
		if _, err := c.cron.AddFunc(c.backupSchedule, func() {
			ctx := context.Background()
			if _, err := c.backups.PurgeStale(ctx, c.retention); err != nil {
				c.log.Warn("backup cleanup failed", zap.Error(err))
			}
		}); err != nil {
			return err
		}
	}

	c.cron.Start()
	return nil
}

// Stop halts the underlying scheduler, waiting for any running jobs to complete.
func (c *Cleaner) Stop() context.Context {
	if c.cron == nil {
		return context.Background()
	}
	return c.cron.Stop()
}

// RunOnce executes all configured cleanup routines sequentially. Primarily used in tests
// and during graceful shutdown.
func (c *Cleaner) RunOnce(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	var errs error

	if c.sessions != nil {
		if _, err := c.sessions.CleanupExpired(ctx); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	if c.backups != nil && c.retention > 0 {
		if _, err := c.backups.PurgeStale(ctx, c.retention); err != nil {
			errs = multierr.Append(errs, err)
		}
	}

	return errs
}
