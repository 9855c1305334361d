package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/nhle/tempmail/internal/model"
)

func newTestCache(t *testing.T, accountID string) *Cache {
	t.Helper()
	c := New(slog.New(slog.NewTextHandler(io.Discard, nil)))
	c.Reset(accountID)
	return c
}

func msg(id string, created time.Time) model.Message {
	return model.Message{ID: id, Subject: "s-" + id, CreatedAt: created, UpdatedAt: created}
}

func TestMergeDeduplicatesAndOrders(t *testing.T) {
	c := newTestCache(t, "acc1")
	base := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	c.Merge("acc1", []model.Message{msg("m1", base), msg("m2", base.Add(time.Minute))})
	c.Merge("acc1", []model.Message{msg("m2", base.Add(time.Minute)), msg("m3", base), msg("m1", base)})

	got := c.Messages()
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}

	seen := make(map[string]bool)
	for _, m := range got {
		if seen[m.ID] {
			t.Fatalf("duplicate id %s", m.ID)
		}
		seen[m.ID] = true
	}

	want := []string{"m2", "m1", "m3"}
	for i, id := range want {
		if got[i].ID != id {
			t.Errorf("position %d: expected %s, got %s", i, id, got[i].ID)
		}
	}
	if got[0].AccountID != "acc1" {
		t.Errorf("expected account id to be filled in, got %q", got[0].AccountID)
	}
}

func TestMergeIsIdempotent(t *testing.T) {
	c := newTestCache(t, "acc1")
	notified := 0
	c.Subscribe(func(string, []model.Message) { notified++ })

	batch := []model.Message{msg("m1", time.Now())}
	first := c.Merge("acc1", batch)
	second := c.Merge("acc1", batch)

	if notified != 1 {
		t.Fatalf("expected exactly one notification, got %d", notified)
	}
	if len(first) != 1 || len(second) != 1 || first[0].ID != second[0].ID {
		t.Fatalf("expected identical contents, got %v and %v", first, second)
	}
}

func TestMergeDiscardsOtherAccount(t *testing.T) {
	c := newTestCache(t, "acc2")
	notified := 0
	c.Subscribe(func(string, []model.Message) { notified++ })

	c.Merge("acc1", []model.Message{msg("old", time.Now())})

	if len(c.Messages()) != 0 {
		t.Fatalf("messages for another account must be discarded")
	}
	if notified != 0 {
		t.Fatalf("discarded merge must not notify")
	}
}

func TestMergeKeepsSeenAndBody(t *testing.T) {
	c := newTestCache(t, "acc1")
	created := time.Now()

	full := msg("m1", created)
	full.Seen = true
	full.Text = "body"
	full.Attachments = []model.Attachment{{ID: "a1", Filename: "f.txt"}}
	c.Merge("acc1", []model.Message{full})

	summary := msg("m1", created)
	summary.Subject = "renamed"
	summary.Seen = false
	c.Merge("acc1", []model.Message{summary})

	got, ok := c.Get("m1")
	if !ok {
		t.Fatalf("message missing")
	}
	if !got.Seen {
		t.Errorf("seen must never revert")
	}
	if got.Text != "body" || len(got.Attachments) != 1 {
		t.Errorf("fetched body must survive a summary merge, got %+v", got)
	}
	if got.Subject != "renamed" {
		t.Errorf("expected newer metadata to apply, got %q", got.Subject)
	}
}

func TestMergeIgnoresOlderMetadata(t *testing.T) {
	c := newTestCache(t, "acc1")
	created := time.Now()

	current := msg("m1", created)
	current.UpdatedAt = created.Add(time.Minute)
	current.Subject = "current"
	c.Merge("acc1", []model.Message{current})

	stale := msg("m1", created)
	stale.Subject = "stale"
	c.Merge("acc1", []model.Message{stale})

	got, _ := c.Get("m1")
	if got.Subject != "current" {
		t.Fatalf("older record must not overwrite metadata, got %q", got.Subject)
	}
}

func TestMarkSeenIsOptimistic(t *testing.T) {
	c := newTestCache(t, "acc1")
	c.Merge("acc1", []model.Message{msg("m1", time.Now())})

	release := make(chan struct{})
	remoteStarted := make(chan struct{})
	done := make(chan error, 1)

	go func() {
		done <- c.MarkSeen(context.Background(), "m1", func(ctx context.Context, id string) error {
			close(remoteStarted)
			<-release
			return nil
		})
	}()

	<-remoteStarted
	got, _ := c.Get("m1")
	if !got.Seen {
		t.Fatalf("expected local seen before remote completes")
	}
	if c.Unseen() != 0 {
		t.Fatalf("expected no unseen messages")
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("mark seen: %v", err)
	}
}

func TestMarkSeenRemoteFailureKeepsLocal(t *testing.T) {
	c := newTestCache(t, "acc1")
	c.Merge("acc1", []model.Message{msg("m1", time.Now())})

	boom := errors.New("boom")
	err := c.MarkSeen(context.Background(), "m1", func(context.Context, string) error { return boom })
	if !errors.Is(err, boom) {
		t.Fatalf("expected remote error, got %v", err)
	}
	got, _ := c.Get("m1")
	if !got.Seen {
		t.Fatalf("local seen must not roll back")
	}
}

func TestMarkSeenAlreadySeenSkipsRemote(t *testing.T) {
	c := newTestCache(t, "acc1")
	m := msg("m1", time.Now())
	m.Seen = true
	c.Merge("acc1", []model.Message{m})

	calls := 0
	if err := c.MarkSeen(context.Background(), "m1", func(context.Context, string) error {
		calls++
		return nil
	}); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no remote call, got %d", calls)
	}
}

func TestMarkSeenUnknown(t *testing.T) {
	c := newTestCache(t, "acc1")
	err := c.MarkSeen(context.Background(), "nope", nil)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestResetClearsAndRebinds(t *testing.T) {
	c := newTestCache(t, "acc1")
	c.Merge("acc1", []model.Message{msg("m1", time.Now())})

	var lastAccount string
	calls := 0
	cancel := c.Subscribe(func(accountID string, _ []model.Message) {
		lastAccount = accountID
		calls++
	})
	c.Reset("acc2")

	if c.AccountID() != "acc2" || len(c.Messages()) != 0 {
		t.Fatalf("expected empty cache bound to acc2")
	}
	if lastAccount != "acc2" {
		t.Fatalf("expected reset notification for acc2, got %q", lastAccount)
	}

	cancel()
	c.Merge("acc2", []model.Message{msg("m2", time.Now())})
	if calls != 1 {
		t.Fatalf("cancelled listener must not be called")
	}
}
