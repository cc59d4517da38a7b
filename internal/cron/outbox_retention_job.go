package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/logger"
)

const (
	defaultRetentionDays    = 30
	defaultAbandonAttempts  = 10
	defaultRetentionBatch   = 500
	maxRetentionBatchPasses = 1000
)

type OutboxRetentionJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository outboxPruner
	// Retention is the age in days after which finished rows are removed.
	Retention int
	// MinAttempts is the attempt count at which a row counts as abandoned.
	MinAttempts int
	// BatchSize bounds the rows deleted per transaction.
	BatchSize int
}

type outboxPruner interface {
	DeleteExpired(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount, limit int) (int64, error)
}

// NewOutboxRetentionJob prunes outbox rows that were published, or abandoned
// after MinAttempts deliveries, and are older than the retention window.
// Rows go in batches so a large backlog never holds one long lock.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		retention:   orDefault(params.Retention, defaultRetentionDays),
		minAttempts: orDefault(params.MinAttempts, defaultAbandonAttempts),
		batch:       orDefault(params.BatchSize, defaultRetentionBatch),
		now:         time.Now,
	}
	return job, nil
}

func orDefault(v, fallback int) int {
	if v <= 0 {
		return fallback
	}
	return v
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        outboxPruner
	retention   int
	minAttempts int
	batch       int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var total int64
	passes := 0
	for ; passes < maxRetentionBatchPasses; passes++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		var deleted int64
		err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
			n, err := j.repo.DeleteExpired(ctx, tx, cutoff, j.minAttempts, j.batch)
			deleted = n
			return err
		})
		if err != nil {
			return fmt.Errorf("outbox retention after %d rows: %w", total, err)
		}
		total += deleted
		if deleted < int64(j.batch) {
			passes++
			break
		}
	}

	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":         cutoff,
		"retention_days": j.retention,
		"min_attempts":   j.minAttempts,
		"batches":        passes,
		"rows_deleted":   total,
	}), "outbox retention cleanup complete")
	return nil
}
