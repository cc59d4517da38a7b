package migrate_test

import (
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/kioskpos/pos-backend/pkg/migrate"
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

func assertContains(t *testing.T, content string, checks []string) {
	t.Helper()
	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestCatalogMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_catalog"), []string{
		"CREATE TABLE IF NOT EXISTS menu_items",
		"CHECK (price >= 0)",
		"CREATE TABLE IF NOT EXISTS ingredients",
		"CHECK (stock >= 0)",
		"PRIMARY KEY (menu_item_id, ingredient_id)",
		"CHECK (amount > 0)",
		"DROP TABLE IF EXISTS menu_items",
	})
}

func TestPeopleMigrationLeavesCurrentPointsUnconstrained(t *testing.T) {
	content := readMigration(t, "create_people")
	assertContains(t, content, []string{
		"CREATE TABLE IF NOT EXISTS customers",
		"CHECK (total_points >= 0)",
		"CREATE TABLE IF NOT EXISTS employees",
	})
	if strings.Contains(content, "CHECK (current_points") {
		t.Fatal("current_points must accept negative balances")
	}
}

func TestTransactionsMigrationContainsConstraints(t *testing.T) {
	assertContains(t, readMigration(t, "create_transactions"), []string{
		"CREATE TABLE IF NOT EXISTS transactions",
		"customer_id BIGINT REFERENCES customers(id)",
		"CREATE TABLE IF NOT EXISTS transaction_details",
		"CHECK (quantity > 0)",
		"UNIQUE (transaction_id, menu_item_id)",
		"DROP TABLE IF EXISTS transactions",
	})
}

func TestOutboxMigrationMatchesEnums(t *testing.T) {
	assertContains(t, readMigration(t, "create_outbox_events"), []string{
		"'transaction_created', 'ingredient_low_stock'",
		"'transaction', 'ingredient'",
		"CREATE TABLE IF NOT EXISTS outbox_events",
		"WHERE published_at IS NULL",
	})
}

func TestMigrationsDirValidates(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("expected migrations dir to validate: %v", err)
	}
}

func TestValidateDirRejectsBadNames(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "001_init.sql"), []byte("-- +goose Up\n-- +goose Down\n"), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected invalid filename to fail validation")
	}
}

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := t.TempDir()
	path, err := migrate.CreateSQLMigration(dir, "Add Loyalty Tiers!")
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if !strings.HasSuffix(path, "_add_loyalty_tiers.sql") {
		t.Fatalf("unexpected filename %q", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migration should validate: %v", err)
	}
}

func TestEmbeddedSourceMatchesDisk(t *testing.T) {
	fsys, err := migrate.Source(migrate.DefaultDir)
	if err != nil {
		t.Fatalf("embedded source: %v", err)
	}
	if err := migrate.ValidateFS(fsys); err != nil {
		t.Fatalf("embedded migrations should validate: %v", err)
	}
	embedded, err := fs.Glob(fsys, "*.sql")
	if err != nil {
		t.Fatalf("glob embedded: %v", err)
	}
	onDisk, err := filepath.Glob(filepath.Join("migrations", "*.sql"))
	if err != nil {
		t.Fatalf("glob disk: %v", err)
	}
	if len(embedded) != len(onDisk) || len(embedded) == 0 {
		t.Fatalf("expected embedded and disk migrations to match, got %d and %d", len(embedded), len(onDisk))
	}
}

func TestSourceRejectsMissingDir(t *testing.T) {
	if _, err := migrate.Source(filepath.Join(t.TempDir(), "nope")); err == nil {
		t.Fatal("expected missing dir to fail")
	}
}

func TestCreateSQLMigrationKeepsVersionsIncreasing(t *testing.T) {
	dir := t.TempDir()
	first, err := migrate.CreateSQLMigration(dir, "first")
	if err != nil {
		t.Fatalf("create first: %v", err)
	}
	second, err := migrate.CreateSQLMigration(dir, "second")
	if err != nil {
		t.Fatalf("create second: %v", err)
	}
	if filepath.Base(first)[:14] >= filepath.Base(second)[:14] {
		t.Fatalf("expected increasing versions, got %s then %s", first, second)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("generated migrations should validate: %v", err)
	}
}

func TestValidateFSRejectsDownBeforeUp(t *testing.T) {
	dir := t.TempDir()
	body := "-- +goose Down\nDROP TABLE x;\n-- +goose Up\nCREATE TABLE x();\n"
	if err := os.WriteFile(filepath.Join(dir, "20260101000000_swap.sql"), []byte(body), 0o644); err != nil {
		t.Fatalf("write file: %v", err)
	}
	if err := migrate.ValidateDir(dir); err == nil {
		t.Fatal("expected out of order sections to fail")
	}
}
