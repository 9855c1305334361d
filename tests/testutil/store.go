package testutil

import (
	"io"
	"log/slog"
	"testing"

	"github.com/99designs/keyring"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/store"
)

// DiscardLogger returns a logger that drops everything.
func DiscardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// NewTestSecrets returns Secrets backed by an in-memory keyring.
func NewTestSecrets() *credential.Secrets {
	return credential.New(keyring.NewArrayKeyring(nil))
}

// NewTestStore creates an in-memory SQLiteStore with all migrations applied.
// It automatically closes the store when the test completes.
func NewTestStore(t *testing.T) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(":memory:", DiscardLogger(), NewTestSecrets())
	if err != nil {
		t.Fatalf("creating test store: %v", err)
	}

	t.Cleanup(func() {
		if err := s.Close(); err != nil {
			t.Errorf("closing test store: %v", err)
		}
	})

	return s
}

// NewFileStore opens a SQLiteStore at path, for tests that need a second
// connection to the same database.
func NewFileStore(t *testing.T, path string) *store.SQLiteStore {
	t.Helper()

	s, err := store.NewSQLiteStore(path, DiscardLogger(), NewTestSecrets())
	if err != nil {
		t.Fatalf("creating file store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

// WriteRawSnapshot overwrites the snapshot row at path with value, bypassing
// the store's encoding.
func WriteRawSnapshot(t *testing.T, path, value string) {
	t.Helper()

	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		t.Fatalf("opening %s: %v", path, err)
	}
	defer db.Close()

	if _, err := db.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", store.SnapshotKey, value); err != nil {
		t.Fatalf("writing raw snapshot: %v", err)
	}
}
