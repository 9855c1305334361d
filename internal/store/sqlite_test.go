package store

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/99designs/keyring"

	"github.com/nhle/tempmail/internal/credential"
	"github.com/nhle/tempmail/internal/model"
)

func newTestStore(t *testing.T, secrets Secrets) *SQLiteStore {
	t.Helper()

	s, err := NewSQLiteStore(":memory:", slog.New(slog.NewTextHandler(io.Discard, nil)), secrets)
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

func putRaw(t *testing.T, s *SQLiteStore, value string) {
	t.Helper()
	_, err := s.db.Exec("INSERT OR REPLACE INTO kv (key, value) VALUES (?, ?)", SnapshotKey, value)
	if err != nil {
		t.Fatalf("writing raw value: %v", err)
	}
}

func sampleSnapshot() model.Snapshot {
	created := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	return model.Snapshot{
		Address:   "abc123@example.test",
		Token:     "tok",
		AccountID: "acc1",
		Password:  "password123",
		Quota:     40000000,
		Used:      1024,
		CreatedAt: created,
		UpdatedAt: created,
		Origin:    model.OriginLogin,
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	want := sampleSnapshot()
	if err := s.Save(ctx, want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got := s.Load(ctx)
	if got.Address != want.Address || got.Token != want.Token || got.AccountID != want.AccountID {
		t.Errorf("unexpected snapshot %+v", got)
	}
	if got.Password != want.Password || got.Quota != want.Quota || got.Used != want.Used {
		t.Errorf("unexpected snapshot %+v", got)
	}
	if !got.CreatedAt.Equal(want.CreatedAt) || got.Origin != model.OriginLogin {
		t.Errorf("unexpected snapshot %+v", got)
	}
}

func TestSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	first := sampleSnapshot()
	second := sampleSnapshot()
	second.AccountID = "acc2"
	second.Address = "xyz@example.test"

	if err := s.Save(ctx, first); err != nil {
		t.Fatalf("save first: %v", err)
	}
	if err := s.Save(ctx, second); err != nil {
		t.Fatalf("save second: %v", err)
	}
	if got := s.Load(ctx); got.AccountID != "acc2" {
		t.Fatalf("expected latest snapshot, got %+v", got)
	}
}

func TestLoadEmpty(t *testing.T) {
	s := newTestStore(t, nil)
	if got := s.Load(context.Background()); !got.IsEmpty() {
		t.Fatalf("expected empty snapshot, got %+v", got)
	}
}

func TestLoadCorruptIsEmpty(t *testing.T) {
	s := newTestStore(t, nil)
	putRaw(t, s, "{not json")

	if got := s.Load(context.Background()); !got.IsEmpty() {
		t.Fatalf("expected empty snapshot for corrupt payload, got %+v", got)
	}
}

func TestLoadToleratesMissingFields(t *testing.T) {
	s := newTestStore(t, nil)
	putRaw(t, s, `{"address":"abc123@example.test","token":"tok"}`)

	got := s.Load(context.Background())
	if got.Address != "abc123@example.test" || got.Token != "tok" {
		t.Fatalf("unexpected snapshot %+v", got)
	}
	if got.Resumable() {
		t.Fatalf("snapshot without account id must not be resumable")
	}
	if got.SessionOrigin() != model.OriginGenerated {
		t.Fatalf("expected default origin, got %q", got.SessionOrigin())
	}
}

func TestClear(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t, nil)

	if err := s.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if got := s.Load(ctx); !got.IsEmpty() {
		t.Fatalf("expected empty snapshot after clear, got %+v", got)
	}
}

func TestPasswordKeptInKeyring(t *testing.T) {
	ctx := context.Background()
	secrets := credential.New(keyring.NewArrayKeyring(nil))
	s := newTestStore(t, secrets)

	if err := s.Save(ctx, sampleSnapshot()); err != nil {
		t.Fatalf("save: %v", err)
	}

	var raw string
	if err := s.db.Get(&raw, "SELECT value FROM kv WHERE key = ?", SnapshotKey); err != nil {
		t.Fatalf("reading raw value: %v", err)
	}
	if strings.Contains(raw, "password123") {
		t.Fatalf("password must not be written to the database: %s", raw)
	}

	stored, err := secrets.Get(credential.PasswordKey("acc1"))
	if err != nil || stored != "password123" {
		t.Fatalf("expected password in keyring, got %q, %v", stored, err)
	}

	if got := s.Load(ctx); got.Password != "password123" {
		t.Fatalf("expected password restored from keyring, got %q", got.Password)
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if _, err := secrets.Get(credential.PasswordKey("acc1")); err == nil {
		t.Fatalf("expected keyring entry removed on clear")
	}
}
