package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func TestCronJobMetricsRecordsRunsAndPurges(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewCronJobMetrics(reg)

	m.ObserveRun("outbox-retention", OutcomeSuccess, 2*time.Second)
	m.ObserveRun("outbox-retention", OutcomeError, time.Second)
	m.AddPurged("outbox_events", 7)
	m.AddPurged("outbox_events", 0)
	m.SetOverdue(4)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "cron_job_runs_total", "outcome", OutcomeError); err != nil {
		t.Fatalf("fetch runs: %v", err)
	} else if got != 1 {
		t.Fatalf("expected error runs=1, got %f", got)
	}

	if got, err := fetchHistogramSum(mfs, "cron_job_duration_seconds", "job", "outbox-retention"); err != nil {
		t.Fatalf("fetch duration: %v", err)
	} else if got != 3 {
		t.Fatalf("expected duration sum=3, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "cron_rows_purged_total", "table", "outbox_events"); err != nil {
		t.Fatalf("fetch purged: %v", err)
	} else if got != 7 {
		t.Fatalf("expected purged=7, got %f", got)
	}

	mf := findMetricFamily(mfs, "cycles_overdue_on_test")
	if mf == nil || len(mf.Metric) != 1 || mf.Metric[0].GetGauge().GetValue() != 4 {
		t.Fatalf("unexpected overdue gauge %+v", mf)
	}
}

func TestPublisherMetricsCountsResults(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewPublisherMetrics(reg)

	m.ObserveBatch()
	m.ObserveEvent("cycle_changed", PublishPublished)
	m.ObserveEvent("cycle_changed", PublishDeadLetter)
	m.ObserveEvent("", PublishRetry)

	mfs, err := reg.Gather()
	if err != nil {
		t.Fatalf("gather metrics: %v", err)
	}

	if got, err := fetchCounterValue(mfs, "outbox_events_total", "result", PublishDeadLetter); err != nil {
		t.Fatalf("fetch dead letters: %v", err)
	} else if got != 1 {
		t.Fatalf("expected dead_letter=1, got %f", got)
	}

	if got, err := fetchCounterValue(mfs, "outbox_events_total", "event_type", "unknown"); err != nil {
		t.Fatalf("fetch unknown type: %v", err)
	} else if got != 1 {
		t.Fatalf("expected unknown=1, got %f", got)
	}

	mf := findMetricFamily(mfs, "outbox_batches_total")
	if mf == nil || len(mf.Metric) != 1 || mf.Metric[0].GetCounter().GetValue() != 1 {
		t.Fatalf("unexpected batch counter %+v", mf)
	}
}

func TestNilJobMetricsAreNoop(t *testing.T) {
	var cron *CronJobMetrics
	cron.ObserveRun("x", OutcomeSuccess, time.Second)
	cron.AddPurged("outbox_events", 1)
	cron.SetOverdue(1)

	var pub *PublisherMetrics
	pub.ObserveBatch()
	pub.ObserveEvent("cycle_changed", PublishPublished)

	NewCronJobMetrics(nil).SetOverdue(2)
	NewPublisherMetrics(nil).ObserveBatch()
}
