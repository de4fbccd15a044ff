package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/livemart/livemart-backend/pkg/logger"
)

const (
	defaultRetentionDays = 30
	outboxMinAttempts    = 5
)

type purgeFunc func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)

type outboxPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

type notificationPurger interface {
	DeleteOlderThan(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// RetentionJobParams are shared by the table cleanup jobs.
type RetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	RetentionDays int
}

// NewOutboxRetentionJob deletes outbox rows that were published, or gave up
// after outboxMinAttempts, before the retention window.
func NewOutboxRetentionJob(params RetentionJobParams, repo outboxPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("outbox repository required")
	}
	return asJob(newRetentionJob("outbox-retention", params, func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
		return repo.DeletePublishedBefore(ctx, tx, cutoff, outboxMinAttempts)
	}))
}

// NewNotificationCleanupJob deletes read in-app notifications older than the window.
func NewNotificationCleanupJob(params RetentionJobParams, repo notificationPurger) (Job, error) {
	if repo == nil {
		return nil, fmt.Errorf("notifications repository required")
	}
	return asJob(newRetentionJob("notification-cleanup", params, repo.DeleteOlderThan))
}

func asJob(job *retentionJob, err error) (Job, error) {
	if err != nil {
		return nil, err
	}
	return job, nil
}

func newRetentionJob(name string, params RetentionJobParams, purge purgeFunc) (*retentionJob, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	days := params.RetentionDays
	if days <= 0 {
		days = defaultRetentionDays
	}
	return &retentionJob{
		name:  name,
		logg:  params.Logger,
		db:    params.DB,
		purge: purge,
		days:  days,
		now:   time.Now,
	}, nil
}

type retentionJob struct {
	name  string
	logg  *logger.Logger
	db    txRunner
	purge purgeFunc
	days  int
	now   func() time.Time
}

func (j *retentionJob) Name() string { return j.name }

func (j *retentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.days)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.purge(ctx, tx, cutoff)
		deleted = rows
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.days,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "retention cleanup complete")
	return nil
}
