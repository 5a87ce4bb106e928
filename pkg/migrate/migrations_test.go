package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"github.com/angelmondragon/matcycle-backend/pkg/migrate"
)

func readMigration(t *testing.T, suffix string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", "*_"+suffix+".sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no %s migration file found", suffix)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"create_assets": {
			"CREATE TABLE IF NOT EXISTS assets",
			"CONSTRAINT ux_assets_code UNIQUE (code)",
			"DROP TABLE IF EXISTS assets",
		},
		"create_cycles": {
			"CREATE TABLE IF NOT EXISTS cycles",
			"FOREIGN KEY (asset_id) REFERENCES assets(id) ON DELETE RESTRICT",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_cycles_active_asset ON cycles (asset_id) WHERE status <> 'completed'",
			"CHECK (extensions_count >= 0)",
			"DROP TABLE IF EXISTS cycles",
		},
		"create_pickups": {
			"CREATE TABLE IF NOT EXISTS pickup_batches",
			"CREATE TABLE IF NOT EXISTS pickup_items",
			"FOREIGN KEY (batch_id) REFERENCES pickup_batches(id) ON DELETE CASCADE",
			"CONSTRAINT ux_pickup_items_batch_cycle UNIQUE (batch_id, cycle_id)",
		},
		"create_cycle_history": {
			"seq bigserial PRIMARY KEY",
			"BEFORE UPDATE OR DELETE ON cycle_history",
			"DROP TABLE IF EXISTS cycle_history",
		},
		"create_outbox_events": {
			"CREATE TABLE IF NOT EXISTS outbox_events",
			"WHERE published_at IS NULL",
		},
		"pickup_items_open_membership": {
			"ADD COLUMN IF NOT EXISTS is_open boolean NOT NULL DEFAULT true",
			"CREATE UNIQUE INDEX IF NOT EXISTS ux_pickup_items_open_cycle ON pickup_items (cycle_id) WHERE is_open",
			"DROP INDEX IF EXISTS ux_pickup_items_open_cycle",
		},
		"create_outbox_dead_letters": {
			"CREATE TABLE IF NOT EXISTS outbox_dead_letters",
			"CHECK (error_reason IN ('max_attempts', 'non_retryable'))",
			"DROP TABLE IF EXISTS outbox_dead_letters",
		},
	}

	for suffix, checks := range cases {
		t.Run(suffix, func(t *testing.T) {
			content := readMigration(t, suffix)
			for _, sub := range checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestValidateDirAcceptsMigrations(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestValidateDirRejectsBadFilename(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "create_things.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename error")
	}
}

func TestCreateWritesValidTemplate(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 4, 2, 15, 4, 5, 0, time.UTC)
	path, err := migrate.Create(dir, "Add Asset Notes!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260402150405_add_asset_notes.sql" {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("validate created migration: %v", err)
	}
	if _, err := migrate.Create(dir, "add asset notes", now); err == nil {
		t.Fatal("expected error when the file already exists")
	}
	if _, err := migrate.Create(dir, "!!!", now); err == nil {
		t.Fatal("expected error for an empty slug")
	}
}

func TestValidateRejectsBrokenAnnotations(t *testing.T) {
	cases := map[string]string{
		"missing down":  "-- +goose Up\nSELECT 1;\n",
		"up after down": "-- +goose Down\n-- +goose Up\n",
		"unterminated":  "-- +goose Up\n-- +goose StatementBegin\nSELECT 1;\n-- +goose Down\n",
		"stray end":     "-- +goose Up\n-- +goose StatementEnd\n-- +goose Down\n",
		"duplicate up":  "-- +goose Up\n-- +goose Up\n-- +goose Down\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			fsys := fstest.MapFS{"20260101000000_broken.sql": {Data: []byte(body)}}
			if err := migrate.Validate(fsys); err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestValidateRejectsDuplicateVersions(t *testing.T) {
	body := []byte("-- +goose Up\n-- +goose Down\n")
	fsys := fstest.MapFS{
		"20260101000000_a.sql": {Data: body},
		"20260101000000_b.sql": {Data: body},
	}
	if err := migrate.Validate(fsys); err == nil {
		t.Fatal("expected duplicate version error")
	}
}

func TestEmbeddedSourceMatchesDirectory(t *testing.T) {
	fsys, err := migrate.Source("")
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	if err := migrate.Validate(fsys); err != nil {
		t.Fatalf("validate embedded: %v", err)
	}
	embedded, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) == 0 || len(embedded) != len(onDisk) {
		t.Fatalf("embedded %d migrations, disk has %d", len(embedded), len(onDisk))
	}
}

func TestParseVersion(t *testing.T) {
	if v, err := migrate.ParseVersion("20260105090300"); err != nil || v != 20260105090300 {
		t.Fatalf("unexpected %d, %v", v, err)
	}
	for _, raw := range []string{"", "2026", "2026010509030x"} {
		if _, err := migrate.ParseVersion(raw); err == nil {
			t.Fatalf("expected error for %q", raw)
		}
	}
}
