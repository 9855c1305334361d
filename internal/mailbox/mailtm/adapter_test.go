package mailtm

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nhle/tempmail/internal/mailbox"
)

func newTestAdapter(t *testing.T, handler http.HandlerFunc) *Adapter {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewAdapter(srv.URL, 5*time.Second)
}

func TestListDomains(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/domains" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "" {
			t.Errorf("domains must be unauthenticated")
		}
		_, _ = io.WriteString(w, `{"hydra:member":[{"id":"d1","domain":"example.test","isActive":true,"isPrivate":false}],"hydra:totalItems":1}`)
	})

	domains, err := a.ListDomains(context.Background())
	if err != nil {
		t.Fatalf("list domains: %v", err)
	}
	if len(domains) != 1 || domains[0].Domain != "example.test" || !domains[0].IsActive {
		t.Fatalf("unexpected domains: %+v", domains)
	}
}

func TestCreateAccountTaken(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"hydra:title":"An error occurred","hydra:description":"address: This value is already used."}`)
	})

	_, err := a.CreateAccount(context.Background(), "user@example.test", "password123")
	if err == nil {
		t.Fatalf("expected error")
	}
	if !errors.Is(err, mailbox.ErrAddressTaken) {
		t.Fatalf("expected taken error, got %v", err)
	}
	var createErr *mailbox.AccountCreationError
	if !errors.As(err, &createErr) || createErr.Address != "user@example.test" {
		t.Fatalf("expected AccountCreationError, got %T", err)
	}
}

func TestCreateAccountSendsCredentials(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/accounts" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var body credentials
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body.Address != "user@example.test" || body.Password != "password123" {
			t.Errorf("unexpected credentials %+v", body)
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":"acc1","address":"user@example.test","quota":40000000,"used":0,"createdAt":"2024-01-02T03:04:05+00:00","updatedAt":"2024-01-02T03:04:05+00:00"}`)
	})

	acct, err := a.CreateAccount(context.Background(), "user@example.test", "password123")
	if err != nil {
		t.Fatalf("create account: %v", err)
	}
	if acct.ID != "acc1" || acct.Quota != 40000000 || acct.Password != "password123" {
		t.Fatalf("unexpected account %+v", acct)
	}
	if acct.CreatedAt.IsZero() {
		t.Fatalf("expected createdAt to be parsed")
	}
}

func TestTokenBadCredentials(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = io.WriteString(w, `{"code":401,"message":"Invalid credentials."}`)
	})

	_, err := a.Token(context.Background(), "user@example.test", "wrong-password")
	var authErr *mailbox.AuthenticationError
	if !errors.As(err, &authErr) {
		t.Fatalf("expected AuthenticationError, got %v", err)
	}
	if mailbox.IsCredentialInvalid(err) {
		t.Fatalf("bad login credentials must not look like a stale token")
	}
}

func TestListMessagesCredentialRejected(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer stale" {
			t.Errorf("missing bearer token")
		}
		w.WriteHeader(http.StatusUnauthorized)
	})

	_, err := a.ListMessages(context.Background(), "stale", 1)
	if !mailbox.IsCredentialInvalid(err) {
		t.Fatalf("expected credential error, got %v", err)
	}
}

func TestListMessagesMapsSummaries(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("page") != "2" {
			t.Errorf("expected page 2, got %q", r.URL.Query().Get("page"))
		}
		_, _ = io.WriteString(w, `{"hydra:member":[
			{"id":"m1","accountId":"acc1","from":{"address":"a@example.test","name":"A"},"to":[{"address":"abc123@example.test","name":""}],"subject":"Hi","intro":"hello","seen":false,"createdAt":"2024-01-02T03:04:05+00:00","updatedAt":"2024-01-02T03:04:05+00:00"},
			{"id":"m2","accountId":"acc1","subject":"gone","isDeleted":true,"createdAt":"2024-01-02T03:04:05+00:00","updatedAt":"2024-01-02T03:04:05+00:00"}
		]}`)
	})

	messages, err := a.ListMessages(context.Background(), "tok", 2)
	if err != nil {
		t.Fatalf("list messages: %v", err)
	}
	if len(messages) != 1 {
		t.Fatalf("expected deleted message to be skipped, got %d", len(messages))
	}
	m := messages[0]
	if m.ID != "m1" || m.Subject != "Hi" || m.Seen || m.From.Name != "A" || len(m.To) != 1 {
		t.Fatalf("unexpected message %+v", m)
	}
}

func TestGetMessageJoinsHTMLAndResolvesAttachments(t *testing.T) {
	var base string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"id":"m1","subject":"Hi","text":"plain","html":["<p>a</p>","<p>b</p>"],
			"attachments":[{"id":"ATTACH000001","filename":"f.txt","contentType":"text/plain","size":3,"downloadUrl":"/messages/m1/attachment/ATTACH000001"}],
			"createdAt":"2024-01-02T03:04:05+00:00","updatedAt":"2024-01-02T03:04:05+00:00"}`)
	}))
	t.Cleanup(srv.Close)
	base = srv.URL
	a := NewAdapter(base, time.Second)

	m, err := a.GetMessage(context.Background(), "tok", "m1")
	if err != nil {
		t.Fatalf("get message: %v", err)
	}
	if m.HTML != "<p>a</p>\n<p>b</p>" {
		t.Errorf("unexpected html %q", m.HTML)
	}
	if len(m.Attachments) != 1 || m.Attachments[0].DownloadURL != base+"/messages/m1/attachment/ATTACH000001" {
		t.Errorf("unexpected attachments %+v", m.Attachments)
	}
}

func TestMarkSeenUsesMergePatch(t *testing.T) {
	called := false
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		called = true
		if r.Method != http.MethodPatch || r.URL.Path != "/messages/m1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/merge-patch+json" {
			t.Errorf("unexpected content type %q", ct)
		}
		var body seenPatch
		_ = json.NewDecoder(r.Body).Decode(&body)
		if !body.Seen {
			t.Errorf("expected seen=true")
		}
		_, _ = io.WriteString(w, `{"seen":true}`)
	})

	if err := a.MarkSeen(context.Background(), "tok", "m1"); err != nil {
		t.Fatalf("mark seen: %v", err)
	}
	if !called {
		t.Fatalf("server not called")
	}
}

func TestDeleteAccountNoContent(t *testing.T) {
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete || r.URL.Path != "/accounts/acc1" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		w.WriteHeader(http.StatusNoContent)
	})

	if err := a.DeleteAccount(context.Background(), "tok", "acc1"); err != nil {
		t.Fatalf("delete account: %v", err)
	}
}

func TestRetriesOnRateLimit(t *testing.T) {
	attempts := 0
	a := newTestAdapter(t, func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.Header().Set("Retry-After", "0")
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = io.WriteString(w, `{"id":"acc1","address":"abc123@example.test","quota":1,"used":0}`)
	})

	acct, err := a.Me(context.Background(), "tok")
	if err != nil {
		t.Fatalf("me: %v", err)
	}
	if attempts != 2 {
		t.Fatalf("expected 2 attempts, got %d", attempts)
	}
	if acct.Token != "tok" || acct.Address != "abc123@example.test" {
		t.Fatalf("unexpected account %+v", acct)
	}
}

func TestNetworkErrorIsTyped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	a := NewAdapter(url, time.Second)
	_, err := a.ListMessages(context.Background(), "tok", 1)
	if !mailbox.IsNetwork(err) {
		t.Fatalf("expected network error, got %v", err)
	}
}

func TestDecodePush(t *testing.T) {
	a := NewAdapter("https://api.example.test", time.Second)

	update, err := a.DecodePush([]byte(`{"@type":"Message","id":"m9","subject":"pushed","createdAt":"2024-01-02T03:04:05+00:00"}`))
	if err != nil {
		t.Fatalf("decode message: %v", err)
	}
	if update.Message == nil || update.Message.ID != "m9" {
		t.Fatalf("expected message update, got %+v", update)
	}

	update, err = a.DecodePush([]byte(`{"@type":"Account","id":"acc1","quota":100,"used":42}`))
	if err != nil {
		t.Fatalf("decode account: %v", err)
	}
	if update.Account == nil || update.Account.Used != 42 {
		t.Fatalf("expected account update, got %+v", update)
	}

	if _, err := a.DecodePush([]byte(`not json`)); err == nil {
		t.Fatalf("expected decode error")
	}
}
