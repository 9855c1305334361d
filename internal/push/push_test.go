package push

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nhle/tempmail/internal/mailbox"
)

func TestBackoffDelay(t *testing.T) {
	b := Backoff{Initial: 5 * time.Second, Max: time.Minute, Factor: 2}

	tests := []struct {
		attempt int
		want    time.Duration
	}{
		{1, 5 * time.Second},
		{2, 10 * time.Second},
		{3, 20 * time.Second},
		{4, 40 * time.Second},
		{5, time.Minute},
		{10, time.Minute},
	}
	for _, tt := range tests {
		if got := b.Delay(tt.attempt); got != tt.want {
			t.Errorf("Delay(%d) = %v, want %v", tt.attempt, got, tt.want)
		}
	}
}

func TestBackoffFixedAndExhausted(t *testing.T) {
	b := Backoff{Initial: 5 * time.Second, MaxAttempts: 3}
	if got := b.Delay(4); got != 5*time.Second {
		t.Errorf("factor 0 should keep the delay fixed, got %v", got)
	}
	if b.Exhausted(3) {
		t.Errorf("attempt 3 is within budget")
	}
	if !b.Exhausted(4) {
		t.Errorf("attempt 4 exceeds budget")
	}
	if (Backoff{}).Exhausted(1000) {
		t.Errorf("zero MaxAttempts never exhausts")
	}
}

func TestReadEvents(t *testing.T) {
	stream := ": keepalive\n" +
		"id: 1\n" +
		"data: {\"a\":1}\n" +
		"\n" +
		"event: update\n" +
		"data: line1\n" +
		"data: line2\n" +
		"\n" +
		"id: 3\n" +
		"\n" +
		"data:tight\n" +
		"\n"

	var got []Event
	if err := ReadEvents(strings.NewReader(stream), func(ev Event) { got = append(got, ev) }); err != nil {
		t.Fatalf("read events: %v", err)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 events, got %d: %+v", len(got), got)
	}
	if got[0].ID != "1" || string(got[0].Data) != `{"a":1}` {
		t.Errorf("unexpected first event %+v", got[0])
	}
	if got[1].Type != "update" || string(got[1].Data) != "line1\nline2" {
		t.Errorf("unexpected second event %+v", got[1])
	}
	if got[1].ID != "1" {
		t.Errorf("last event id should carry over, got %q", got[1].ID)
	}
	if got[2].ID != "3" || string(got[2].Data) != "tight" {
		t.Errorf("unexpected third event %+v", got[2])
	}
}

func TestMercureDeliversAndReconnects(t *testing.T) {
	var (
		connections atomic.Int32
		mu          sync.Mutex
		lastIDs     []string
		auth        []string
	)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := connections.Add(1)

		mu.Lock()
		lastIDs = append(lastIDs, r.Header.Get("Last-Event-ID"))
		auth = append(auth, r.Header.Get("Authorization"))
		mu.Unlock()

		if r.URL.Query().Get("topic") != "/accounts/acc1" {
			t.Errorf("unexpected topic %q", r.URL.Query().Get("topic"))
		}

		w.Header().Set("Content-Type", "text/event-stream")
		w.WriteHeader(http.StatusOK)
		_, _ = fmt.Fprintf(w, "id: ev%d\ndata: {\"n\":%d}\n\n", n, n)
		if f, ok := w.(http.Flusher); ok {
			f.Flush()
		}
		// Returning ends the stream and forces a reconnect.
	}))
	t.Cleanup(srv.Close)

	sub := NewMercure(srv.URL, Backoff{Initial: 10 * time.Millisecond, Max: 20 * time.Millisecond, Factor: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	events := make(chan Event, 16)
	if err := sub.Open(context.Background(), Request{Topic: "/accounts/acc1", Token: "tok"}, func(ev Event) {
		select {
		case events <- ev:
		default:
		}
	}); err != nil {
		t.Fatalf("open: %v", err)
	}

	for i := 0; i < 2; i++ {
		select {
		case <-events:
		case <-time.After(2 * time.Second):
			t.Fatalf("timed out waiting for event %d", i+1)
		}
	}

	if err := sub.Open(context.Background(), Request{Topic: "/accounts/acc1"}, func(Event) {}); err != ErrAlreadyOpen {
		t.Errorf("expected ErrAlreadyOpen, got %v", err)
	}

	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("second close: %v", err)
	}

	after := connections.Load()
	time.Sleep(50 * time.Millisecond)
	if connections.Load() != after {
		t.Errorf("subscription reconnected after Close")
	}

	mu.Lock()
	defer mu.Unlock()
	if len(lastIDs) < 2 || lastIDs[0] != "" || lastIDs[1] != "ev1" {
		t.Errorf("expected Last-Event-ID to resume from ev1, got %v", lastIDs)
	}
	if auth[0] != "Bearer tok" {
		t.Errorf("expected bearer token, got %q", auth[0])
	}
}

func TestMercureGivesUpAfterMaxAttempts(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connections.Add(1)
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	t.Cleanup(srv.Close)

	sub := NewMercure(srv.URL, Backoff{Initial: time.Millisecond, MaxAttempts: 2}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := sub.Open(context.Background(), Request{Topic: "/accounts/acc1"}, func(Event) {}); err != nil {
		t.Fatalf("open: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for connections.Load() < 3 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	time.Sleep(30 * time.Millisecond)

	// One initial connection plus two reconnects.
	if got := connections.Load(); got != 3 {
		t.Errorf("expected 3 connections, got %d", got)
	}
	_ = sub.Close()
}

func TestMercureStopsOnRejectedToken(t *testing.T) {
	var connections atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		connections.Add(1)
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(srv.Close)

	rejected := make(chan error, 4)
	sub := NewMercure(srv.URL, Backoff{Initial: time.Millisecond}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	req := Request{
		Topic:      "/accounts/acc1",
		Token:      "revoked",
		OnRejected: func(err error) { rejected <- err },
	}
	if err := sub.Open(context.Background(), req, func(Event) {}); err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() { _ = sub.Close() })

	select {
	case err := <-rejected:
		if !mailbox.IsCredentialInvalid(err) {
			t.Errorf("expected credential error, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("rejection was not reported")
	}

	time.Sleep(50 * time.Millisecond)
	if got := connections.Load(); got != 1 {
		t.Errorf("rejected token must not reconnect, got %d connections", got)
	}
	if len(rejected) != 0 {
		t.Errorf("rejection reported %d extra times", len(rejected))
	}
}

func TestPollingIsInert(t *testing.T) {
	var sub Subscription = Polling{}
	if err := sub.Open(context.Background(), Request{Topic: "/accounts/x"}, func(Event) {
		t.Errorf("polling subscription must not deliver events")
	}); err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := sub.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
}
