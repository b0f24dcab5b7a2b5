package migrate

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("embedded migrations invalid: %v", err)
	}
}

func TestCheckoutSnapshotMigrationContainsConstraints(t *testing.T) {
	data, err := migrationsFS.ReadFile("migrations/20260301120000_create_checkout_snapshots.sql")
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TABLE IF NOT EXISTS checkout_snapshots",
		"CHECK (total_amount >= 0)",
		"ux_checkout_snapshots_gateway_session",
		"DROP TABLE IF EXISTS checkout_snapshots",
	}
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestValidateFSRejectsBadFiles(t *testing.T) {
	badName := fstest.MapFS{"create_things.sql": {Data: []byte("-- +goose Up\n-- +goose Down\n")}}
	if err := ValidateFS(badName); err == nil {
		t.Fatal("expected invalid filename error")
	}

	missingDown := fstest.MapFS{"20260101000000_things.sql": {Data: []byte("-- +goose Up\n")}}
	if err := ValidateFS(missingDown); err == nil {
		t.Fatal("expected missing down marker error")
	}
}

func TestCreateSQLMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	path, err := CreateSQLMigration(dir, "Add Order Index!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260301120000_add_order_index.sql" {
		t.Fatalf("unexpected filename %s", filepath.Base(path))
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read created migration: %v", err)
	}
	if !strings.Contains(string(data), "-- +goose Down") {
		t.Fatal("created migration is missing the down marker")
	}

	if _, err := CreateSQLMigration(dir, "Add Order Index!", now); err == nil {
		t.Fatal("expected duplicate migration error")
	}
}

func TestRunUpOnSQLite(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := conn.DB()
	if err != nil {
		t.Fatalf("sql handle: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	if err := Run(context.Background(), sqlDB, "sqlite", "up"); err != nil {
		t.Fatalf("goose up: %v", err)
	}
	if !conn.Migrator().HasTable("checkout_snapshots") {
		t.Fatal("expected checkout_snapshots table after migration")
	}
}
