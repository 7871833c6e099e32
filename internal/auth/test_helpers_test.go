package auth

import (
	"database/sql"
	"os"
	"testing"

	_ "github.com/mattn/go-sqlite3"
)

// testDB creates a temporary SQLite database with the identity schema applied.
// The database file is cleaned up when the test completes.
func testDB(t *testing.T) *sql.DB {
	t.Helper()

	// Use a temp file so WAL mode works (in-memory doesn't support it)
	f, err := os.CreateTemp("", "auth-test-*.db")
	if err != nil {
		t.Fatalf("creating temp db: %v", err)
	}
	dbPath := f.Name()
	f.Close()
	t.Cleanup(func() { os.Remove(dbPath) })

	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON")
	if err != nil {
		t.Fatalf("opening test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	// Mirrors migrations/20261001_120000_device_identities.up.sql
	migrationSQL := `
		CREATE TABLE device_identities (
			product_key TEXT PRIMARY KEY,
			device_id TEXT NOT NULL,
			device_secret TEXT NOT NULL,
			registered_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		) STRICT;
	`
	if _, err := db.Exec(migrationSQL); err != nil {
		t.Fatalf("applying identity migration: %v", err)
	}

	return db
}

func testRegisterConfig(url string) RegisterConfig {
	return RegisterConfig{
		URL:           url,
		ProductKey:    "PK1",
		ProductSecret: "product-secret",
		Identifiers:   map[string][]string{"sn": {"SN001"}, "mac": {"AA:BB"}},
	}
}
