package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"testing/fstest"
	"time"

	"go.uber.org/multierr"

	"github.com/livemart/livemart-backend/pkg/migrate"
)

func TestMigrationsDirIsValid(t *testing.T) {
	if err := migrate.ValidateDir("migrations"); err != nil {
		t.Fatalf("validate migrations: %v", err)
	}
}

func TestMigrationsContainConstraints(t *testing.T) {
	cases := map[string][]string{
		"*_create_orders.sql": {
			"CREATE TABLE IF NOT EXISTS orders",
			"CREATE UNIQUE INDEX IF NOT EXISTS orders_payment_session_id_key",
			"FOREIGN KEY (order_id) REFERENCES orders(id) ON DELETE CASCADE",
			"CHECK (quantity > 0)",
			"DROP TABLE IF EXISTS orders",
		},
		"*_create_products.sql": {
			"CHECK (stock >= 0)",
			"CHECK (retailer_id IS NOT NULL OR wholesaler_id IS NOT NULL)",
		},
		"*_create_notifications.sql": {
			"CONSTRAINT notification_requests_user_product_key UNIQUE (user_id, product_id)",
			"CREATE TABLE IF NOT EXISTS notifications",
		},
		"*_create_feedback.sql": {
			"CHECK (rating BETWEEN 1 AND 5)",
			"CHECK (product_id IS NOT NULL OR order_id IS NOT NULL)",
			"CONSTRAINT browsing_history_user_product_key UNIQUE (user_id, product_id)",
			"DROP TYPE IF EXISTS feedback_type",
		},
		"*_create_outbox.sql": {
			"CREATE UNIQUE INDEX IF NOT EXISTS outbox_events_event_aggregate_key",
			"WHERE event_type = 'order_pending_nudge'",
			"CREATE TABLE IF NOT EXISTS outbox_dlq",
		},
	}

	for pattern, checks := range cases {
		t.Run(pattern, func(t *testing.T) {
			matches, err := filepath.Glob(filepath.Join("migrations", pattern))
			if err != nil {
				t.Fatalf("glob migrations: %v", err)
			}
			if len(matches) != 1 {
				t.Fatalf("expected one migration for %s, got %d", pattern, len(matches))
			}
			data, err := os.ReadFile(matches[0])
			if err != nil {
				t.Fatalf("read migration file: %v", err)
			}
			content := string(data)
			for _, sub := range checks {
				if !strings.Contains(content, sub) {
					t.Errorf("missing expected statement %q", sub)
				}
			}
		})
	}
}

func TestEmbeddedMigrationsAreValid(t *testing.T) {
	if err := migrate.ValidateDir(""); err != nil {
		t.Fatalf("validate embedded migrations: %v", err)
	}
}

func TestCreateWritesValidMigration(t *testing.T) {
	dir := t.TempDir()
	now := time.Date(2026, 7, 1, 12, 30, 0, 0, time.UTC)
	path, err := migrate.Create(dir, "Add Order Ratings!", now)
	if err != nil {
		t.Fatalf("create migration: %v", err)
	}
	if filepath.Base(path) != "20260701123000_add_order_ratings.sql" {
		t.Fatalf("unexpected filename %s", path)
	}
	if err := migrate.ValidateDir(dir); err != nil {
		t.Fatalf("created migration should validate: %v", err)
	}
	if _, err := migrate.Create(dir, "add order ratings", now); err == nil {
		t.Fatalf("expected existing migration to be kept")
	}
	if _, err := migrate.Create(dir, "!!!", now); err == nil {
		t.Fatalf("expected unusable name to fail")
	}
}

func TestValidateReportsEveryProblem(t *testing.T) {
	fsys := fstest.MapFS{
		"20260101000000_first.sql":   {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260101000000_second.sql":  {Data: []byte("-- +goose Up\n-- +goose Down\n")},
		"20260102000000_no_down.sql": {Data: []byte("-- +goose Up\n")},
		"Bad-Name.sql":               {Data: []byte("")},
		"README.md":                  {Data: []byte("ignored")},
	}
	err := migrate.Validate(fsys)
	if err == nil {
		t.Fatalf("expected validation errors")
	}
	if got := len(multierr.Errors(err)); got != 3 {
		t.Fatalf("expected 3 problems, got %d: %v", got, err)
	}
}
