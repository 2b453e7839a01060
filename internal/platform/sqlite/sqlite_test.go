package sqlite

import (
	"path/filepath"
	"testing"
)

func TestOpen_CreatesSchema(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var name string
	err = db.QueryRow(`SELECT name FROM sqlite_master WHERE type = 'table' AND name = 'jobs'`).Scan(&name)
	if err != nil {
		t.Fatalf("jobs table missing: %v", err)
	}
}

func TestOpen_FileIsReopenable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "candles.db")

	db, err := Open(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	if _, err := db.Exec(`INSERT INTO jobs (id, status, symbol, timeframe, start_ms, end_ms, created_at, updated_at)
		VALUES ('a', 'done', 'BTC', '1h', 0, 1, '', '')`); err != nil {
		t.Fatalf("insert: %v", err)
	}
	_ = db.Close()

	db, err = Open(path)
	if err != nil {
		t.Fatalf("second open: %v", err)
	}
	defer func() { _ = db.Close() }()

	var n int
	if err := db.QueryRow(`SELECT COUNT(*) FROM jobs`).Scan(&n); err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("rows = %d, want 1", n)
	}
}
