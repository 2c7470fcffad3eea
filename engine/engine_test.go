package engine

import (
	"path/filepath"
	"strings"
	"testing"
	"time"
)

// TestOpenInMemory verifies that we can open an in-memory SQLite database
// using the modernc.org/sqlite driver and execute a trivial statement.
func TestOpenInMemory(t *testing.T) {
	db, err := Open(":memory:")
	if err != nil {
		t.Fatalf("Open(:memory:) failed: %v", err)
	}
	defer db.Close()

	if _, err := db.Exec("CREATE TABLE t(x INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	if _, err := db.Exec("INSERT INTO t(x) VALUES (1),(2),(3)"); err != nil {
		t.Fatalf("INSERT failed: %v", err)
	}
}

// TestOpenReadOnly verifies that the query_only pragma rejects writes on a
// database prepared by a writable connection.
func TestOpenReadOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ro.db")
	rw, err := Open(path)
	if err != nil {
		t.Fatalf("Open(rw) failed: %v", err)
	}
	if _, err := rw.Exec("CREATE TABLE t(x INTEGER)"); err != nil {
		t.Fatalf("CREATE TABLE failed: %v", err)
	}
	rw.Close()

	ro, err := Open(path, WithReadOnly(), WithBusyTimeout(time.Second))
	if err != nil {
		t.Fatalf("Open(ro) failed: %v", err)
	}
	defer ro.Close()

	var n int
	if err := ro.QueryRow("SELECT COUNT(*) FROM t").Scan(&n); err != nil {
		t.Fatalf("SELECT failed: %v", err)
	}
	if _, err := ro.Exec("INSERT INTO t(x) VALUES (1)"); err == nil {
		t.Fatalf("INSERT on read-only connection succeeded, want error")
	}
}

func TestWithPragmas(t *testing.T) {
	got := withPragmas("file.db", &options{foreignKeys: true, readOnly: true})
	if !strings.HasPrefix(got, "file.db?") {
		t.Fatalf("withPragmas = %q, want file.db? prefix", got)
	}
	if !strings.Contains(got, "foreign_keys%281%29") || !strings.Contains(got, "query_only%281%29") {
		t.Fatalf("withPragmas = %q, want foreign_keys and query_only pragmas", got)
	}
	if got := withPragmas("file.db?mode=ro", &options{foreignKeys: true}); !strings.Contains(got, "mode=ro&_pragma=") {
		t.Fatalf("withPragmas appended with wrong separator: %q", got)
	}
}
