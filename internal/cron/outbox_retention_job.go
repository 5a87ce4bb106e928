package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	dbpkg "github.com/angelmondragon/matcycle-backend/pkg/db"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/metrics"
)

const defaultOutboxRetentionDays = 30

type publishedPurger interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type deadLetterPurger interface {
	DeleteFailedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            dbpkg.TxRunner
	Outbox        publishedPurger
	DeadLetters   deadLetterPurger
	Metrics       *metrics.CronJobMetrics
	RetentionDays int
}

// outboxRetentionJob drops delivered outbox rows and stale dead letters.
// Pending rows are never touched.
type outboxRetentionJob struct {
	logg        *logger.Logger
	db          dbpkg.TxRunner
	outbox      publishedPurger
	deadLetters deadLetterPurger
	metrics     *metrics.CronJobMetrics
	retention   int
	now         func() time.Time
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.DB == nil {
		return nil, errors.New("db runner required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox repository required")
	}
	retention := params.RetentionDays
	if retention <= 0 {
		retention = defaultOutboxRetentionDays
	}
	return &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		outbox:      params.Outbox,
		deadLetters: params.DeadLetters,
		metrics:     params.Metrics,
		retention:   retention,
		now:         time.Now,
	}, nil
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().AddDate(0, 0, -j.retention)
	var published, deadLetters int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		rows, err := j.outbox.DeletePublishedBefore(ctx, tx, cutoff)
		if err != nil {
			return fmt.Errorf("purge published: %w", err)
		}
		published = rows
		if j.deadLetters == nil {
			return nil
		}
		rows, err = j.deadLetters.DeleteFailedBefore(ctx, tx, cutoff)
		if err != nil {
			return fmt.Errorf("purge dead letters: %w", err)
		}
		deadLetters = rows
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	j.metrics.AddPurged("outbox_events", published)
	j.metrics.AddPurged("outbox_dead_letters", deadLetters)
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":              cutoff,
		"retention_days":      j.retention,
		"published_deleted":   published,
		"dead_letter_deleted": deadLetters,
	}), "outbox retention cleanup complete")
	return nil
}
