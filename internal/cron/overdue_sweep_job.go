package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/angelmondragon/matcycle-backend/internal/reports"
	"github.com/angelmondragon/matcycle-backend/pkg/logger"
	"github.com/angelmondragon/matcycle-backend/pkg/metrics"
)

const (
	defaultOverdueThresholdDays = 14
	overdueSweepPageSize        = 100
	overdueSweepMaxPages        = 50
	overdueSampleSize           = 5
)

type overdueReporter interface {
	Overdue(ctx context.Context, filter reports.OverdueFilter) ([]reports.OverdueCycle, error)
}

type OverdueSweepJobParams struct {
	Logger        *logger.Logger
	Reports       overdueReporter
	Metrics       *metrics.CronJobMetrics
	ThresholdDays int
}

// overdueSweepJob counts cycles left on trial too long and exports the total.
type overdueSweepJob struct {
	logg      *logger.Logger
	reports   overdueReporter
	metrics   *metrics.CronJobMetrics
	threshold int
	now       func() time.Time
}

func NewOverdueSweepJob(params OverdueSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, errors.New("logger required")
	}
	if params.Reports == nil {
		return nil, errors.New("reports service required")
	}
	threshold := params.ThresholdDays
	if threshold <= 0 {
		threshold = defaultOverdueThresholdDays
	}
	return &overdueSweepJob{
		logg:      params.Logger,
		reports:   params.Reports,
		metrics:   params.Metrics,
		threshold: threshold,
		now:       time.Now,
	}, nil
}

func (j *overdueSweepJob) Name() string { return "overdue-sweep" }

func (j *overdueSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	total := 0
	var sample []string
	for page := 0; page < overdueSweepMaxPages; page++ {
		rows, err := j.reports.Overdue(ctx, reports.OverdueFilter{
			ThresholdDays: j.threshold,
			Now:           now,
			Limit:         overdueSweepPageSize,
			Offset:        page * overdueSweepPageSize,
		})
		if err != nil {
			return fmt.Errorf("overdue sweep: %w", err)
		}
		total += len(rows)
		for _, row := range rows {
			if len(sample) < overdueSampleSize {
				sample = append(sample, row.AssetCode)
			}
		}
		if len(rows) < overdueSweepPageSize {
			break
		}
	}

	j.metrics.SetOverdue(total)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"threshold_days": j.threshold,
		"overdue":        total,
		"sample_codes":   sample,
	})
	if total > 0 {
		j.logg.Warn(logCtx, "cycles overdue on trial")
		return nil
	}
	j.logg.Info(logCtx, "no cycles overdue on trial")
	return nil
}
