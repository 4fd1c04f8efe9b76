package migrate_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestProductsMigrationContainsSchemas(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_products_table.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no product migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE product_category AS ENUM",
		"CREATE TABLE IF NOT EXISTS products",
		"NUMERIC(12,2)",
		"min_stock_level",
		"reorder_point",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_products_sku",
		"CREATE INDEX IF NOT EXISTS idx_products_category_is_active",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}

func TestNotificationsMigrationContainsReadState(t *testing.T) {
	matches, err := filepath.Glob(filepath.Join("migrations", "*_create_notifications.sql"))
	if err != nil {
		t.Fatalf("glob migrations: %v", err)
	}
	if len(matches) == 0 {
		t.Fatalf("no notifications migration file found")
	}

	data, err := os.ReadFile(matches[0])
	if err != nil {
		t.Fatalf("read migration file: %v", err)
	}
	content := string(data)

	checks := []string{
		"CREATE TYPE notification_type AS ENUM",
		"CREATE TYPE notification_priority AS ENUM",
		"CREATE TABLE IF NOT EXISTS notifications",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_notifications_stock_alert",
		"CREATE TABLE IF NOT EXISTS notification_states",
		"CREATE UNIQUE INDEX IF NOT EXISTS idx_notification_state_user",
	}

	for _, sub := range checks {
		if !strings.Contains(content, sub) {
			t.Errorf("missing expected statement %q", sub)
		}
	}
}
