package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"

	"github.com/angelmondragon/matcycle-backend/pkg/migrate"
)

type stubRunner struct {
	up      []migrate.Applied
	upErr   error
	target  int64
	version int64
	status  []migrate.Status
}

func (s *stubRunner) Up(context.Context) ([]migrate.Applied, error) { return s.up, s.upErr }

func (s *stubRunner) Down(context.Context) (*migrate.Applied, error) {
	return &migrate.Applied{Version: 20260105090500, Name: "20260105090500_create_outbox_dead_letters.sql", Direction: "down"}, nil
}

func (s *stubRunner) To(_ context.Context, target int64) ([]migrate.Applied, error) {
	s.target = target
	return nil, nil
}

func (s *stubRunner) Version(context.Context) (int64, error) { return s.version, nil }

func (s *stubRunner) Status(context.Context) ([]migrate.Status, error) { return s.status, nil }

func execute(t *testing.T, runner schemaRunner, args ...string) (string, error) {
	t.Helper()
	color.NoColor = true
	var out bytes.Buffer
	opened := false
	open := func(context.Context, string) (schemaRunner, func(), error) {
		opened = true
		return runner, func() {}, nil
	}
	now := func() time.Time { return time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC) }
	cmd := newRootCmd(open, &out, now)
	cmd.SetArgs(args)
	err := cmd.Execute()
	if runner == nil && opened {
		t.Fatalf("command %v should not open a database", args)
	}
	return out.String(), err
}

func TestUpPrintsAppliedMigrations(t *testing.T) {
	runner := &stubRunner{up: []migrate.Applied{{Version: 20260105090000, Name: "20260105090000_create_assets.sql", Direction: "up", Duration: 12 * time.Millisecond}}}
	out, err := execute(t, runner, "up")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "up 20260105090000 20260105090000_create_assets.sql (12ms)") {
		t.Fatalf("unexpected output %q", out)
	}
}

func TestUpReportsPartialProgressAndError(t *testing.T) {
	runner := &stubRunner{
		up:    []migrate.Applied{{Version: 1, Name: "1_a.sql", Direction: "up"}},
		upErr: errors.New("boom"),
	}
	out, err := execute(t, runner, "up")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(out, "1_a.sql") {
		t.Fatalf("expected applied migration in output, got %q", out)
	}
}

func TestUpWithNothingPending(t *testing.T) {
	out, err := execute(t, &stubRunner{}, "up")
	if err != nil || !strings.Contains(out, "no migrations to run") {
		t.Fatalf("unexpected %q, %v", out, err)
	}
}

func TestToParsesVersion(t *testing.T) {
	runner := &stubRunner{}
	if _, err := execute(t, runner, "to", "20260105090300"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if runner.target != 20260105090300 {
		t.Fatalf("unexpected target %d", runner.target)
	}
	if _, err := execute(t, runner, "to", "latest"); err == nil {
		t.Fatal("expected error for a malformed version")
	}
}

func TestStatusAndVersion(t *testing.T) {
	runner := &stubRunner{
		version: 20260105090100,
		status: []migrate.Status{
			{Version: 20260105090000, Name: "20260105090000_create_assets.sql", Applied: true, AppliedAt: time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)},
			{Version: 20260105090200, Name: "20260105090200_create_pickups.sql"},
		},
	}
	out, err := execute(t, runner, "status")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(out, "applied") || !strings.Contains(out, "2026-01-05T09:00:00Z") || !strings.Contains(out, "pending") {
		t.Fatalf("unexpected status output %q", out)
	}

	out, err = execute(t, runner, "version")
	if err != nil || strings.TrimSpace(out) != "20260105090100" {
		t.Fatalf("unexpected version output %q, %v", out, err)
	}
}

func TestDownPrintsRolledBackMigration(t *testing.T) {
	out, err := execute(t, &stubRunner{}, "down")
	if err != nil || !strings.HasPrefix(out, "down 20260105090500") {
		t.Fatalf("unexpected %q, %v", out, err)
	}
}

func TestCreateAndValidateSkipDatabase(t *testing.T) {
	dir := t.TempDir()
	out, err := execute(t, nil, "create", "add driver notes", "--dir", dir)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	want := filepath.Join(dir, "20260501120000_add_driver_notes.sql")
	if !strings.Contains(out, want) {
		t.Fatalf("unexpected output %q", out)
	}
	if _, err := os.Stat(want); err != nil {
		t.Fatalf("migration not written: %v", err)
	}

	out, err = execute(t, nil, "validate", "--dir", dir)
	if err != nil || !strings.Contains(out, "migrations ok") {
		t.Fatalf("unexpected %q, %v", out, err)
	}
}

func TestOpenErrorIsReturned(t *testing.T) {
	var out bytes.Buffer
	open := func(context.Context, string) (schemaRunner, func(), error) {
		return nil, nil, errors.New("no database")
	}
	cmd := newRootCmd(open, &out, time.Now)
	cmd.SetArgs([]string{"up"})
	if err := cmd.Execute(); err == nil || err.Error() != "no database" {
		t.Fatalf("unexpected error %v", err)
	}
}
