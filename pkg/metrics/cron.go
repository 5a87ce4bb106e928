package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// CronJobMetrics records scheduled maintenance runs.
type CronJobMetrics struct {
	duration *prometheus.HistogramVec
	runs     *prometheus.CounterVec
	affected *prometheus.CounterVec
	overdue  prometheus.Gauge
}

// NewCronJobMetrics registers the cron metrics. A nil registerer yields no-ops.
func NewCronJobMetrics(reg prometheus.Registerer) *CronJobMetrics {
	if reg == nil {
		return &CronJobMetrics{}
	}
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cron_job_duration_seconds",
		Help:    "Duration of cron jobs in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"job"})
	runs := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_job_runs_total",
		Help: "Cron job executions by job and outcome.",
	}, []string{"job", "outcome"})
	affected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cron_rows_purged_total",
		Help: "Rows removed by retention jobs.",
	}, []string{"table"})
	overdue := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "cycles_overdue_on_test",
		Help: "Cycles on trial longer than the configured threshold at the last sweep.",
	})
	reg.MustRegister(duration, runs, affected, overdue)
	return &CronJobMetrics{
		duration: duration,
		runs:     runs,
		affected: affected,
		overdue:  overdue,
	}
}

// ObserveRun records one job execution.
func (c *CronJobMetrics) ObserveRun(job, outcome string, duration time.Duration) {
	if c == nil || c.runs == nil {
		return
	}
	job = normalizeLabel(job)
	c.runs.WithLabelValues(job, normalizeLabel(outcome)).Inc()
	c.duration.WithLabelValues(job).Observe(duration.Seconds())
}

// AddPurged counts rows a retention job deleted from table.
func (c *CronJobMetrics) AddPurged(table string, rows int64) {
	if c == nil || c.affected == nil || rows <= 0 {
		return
	}
	c.affected.WithLabelValues(normalizeLabel(table)).Add(float64(rows))
}

// SetOverdue publishes the latest overdue sweep size.
func (c *CronJobMetrics) SetOverdue(count int) {
	if c == nil || c.overdue == nil {
		return
	}
	c.overdue.Set(float64(count))
}
