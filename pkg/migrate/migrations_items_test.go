package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestItemsMigrationContainsConstraints(t *testing.T) {
	content := readMigration(t, "*_create_items.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS items",
		"status              item_status NOT NULL DEFAULT 'in_stock'",
		"CHECK (quantity >= 0)",
		"CHECK (low_stock_threshold >= 0)",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_items_name",
		"DROP TABLE IF EXISTS items",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestStockLogMigrationIsAppendOnlyFriendly(t *testing.T) {
	content := readMigration(t, "*_create_stock_log_entries.sql")

	checks := []string{
		"CREATE TABLE IF NOT EXISTS stock_log_entries",
		"CHECK (delta <> 0)",
		"CHECK (quantity_after >= 0)",
		"idx_stock_log_item_time ON stock_log_entries (item_id, created_at DESC)",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestAllocationsMigrationEnforcesUniquePair(t *testing.T) {
	content := readMigration(t, "*_create_teacher_allocations.sql")

	if !strings.Contains(content, "CREATE UNIQUE INDEX IF NOT EXISTS idx_allocations_teacher_item ON teacher_allocations (teacher_id, item_id)") {
		t.Error("missing unique (teacher_id, item_id) index")
	}
	if !strings.Contains(content, "CHECK (quantity >= 0)") {
		t.Error("missing non-negative quantity check")
	}
}

func readMigration(t *testing.T, pattern string) string {
	t.Helper()
	matches, err := filepath.Glob(filepath.Join("migrations", pattern))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no migration matching %s", pattern)
	}
	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	return string(data)
}
