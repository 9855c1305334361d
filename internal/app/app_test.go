package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/session"
	"github.com/nhle/tempmail/internal/ui/command"
	"github.com/nhle/tempmail/internal/ui/forms"
	"github.com/nhle/tempmail/internal/ui/inbox"
	"github.com/nhle/tempmail/internal/ui/reader"
	"github.com/nhle/tempmail/tests/testutil"
)

func newTestModel(t *testing.T, fake *testutil.FakeMailbox) Model {
	t.Helper()
	mgr := session.NewManager(fake, testutil.NewTestStore(t), session.Options{
		PollInterval:           time.Hour,
		AccountRefreshInterval: time.Hour,
		Logger:                 testutil.DiscardLogger(),
		LocalPart:              func() string { return "abc123" },
		Password:               func() string { return "generated-password" },
	})
	t.Cleanup(mgr.Close)

	m := New(context.Background(), mgr, testutil.DiscardLogger())
	t.Cleanup(m.Close)

	mdl, _ := m.Update(tea.WindowSizeMsg{Width: 120, Height: 30})
	return mdl.(Model)
}

func step(t *testing.T, m Model, msg tea.Msg) Model {
	t.Helper()
	mdl, _ := m.Update(msg)
	return mdl.(Model)
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestInitializeShowsAddress(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)

	m = step(t, m, m.initialize()())

	out := m.View()
	if !strings.Contains(out, "abc123@example.test") {
		t.Errorf("header missing address:\n%s", out)
	}
	if m.view.State != session.StateActive {
		t.Errorf("state = %v", m.view.State)
	}
}

func TestSessionUpdateRefreshesInbox(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)
	m = step(t, m, m.initialize()())

	fake.AddMessage(m.view.AccountID, model.Message{
		ID:        "m1",
		Subject:   "Verify your email",
		From:      model.EmailAddress{Address: "noreply@service.test"},
		CreatedAt: time.Now(),
	})
	m = step(t, m, m.refresh()())

	if m.inbox.Len() != 1 {
		t.Fatalf("inbox has %d messages, want 1", m.inbox.Len())
	}
	if m.view.Unseen != 1 {
		t.Errorf("Unseen = %d", m.view.Unseen)
	}
}

func TestOpenMessageRoutesToReader(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)
	m = step(t, m, m.initialize()())
	fake.AddMessage(m.view.AccountID, model.Message{ID: "m1", Subject: "Hello", Text: "body text"})

	m = step(t, m, inbox.SelectedMessageMsg{MessageID: "m1"})
	if m.currentView != ViewReader {
		t.Fatalf("view = %v, want reader", m.currentView)
	}

	m = step(t, m, m.openMessage("m1")())
	if !strings.Contains(m.View(), "body text") {
		t.Errorf("reader missing body:\n%s", m.View())
	}

	got, _ := fake.Message(m.view.AccountID, "m1")
	if !got.Seen {
		t.Error("opened message should be marked seen remotely")
	}

	m = step(t, m, reader.BackMsg{})
	if m.currentView != ViewInbox {
		t.Errorf("view = %v, want inbox", m.currentView)
	}
}

func TestLoginFailureShowsError(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)
	m = step(t, m, m.initialize()())

	m = step(t, m, forms.LoginSubmittedMsg{Address: "nobody@example.test", Password: "wrong-password"})
	if m.busy == "" {
		t.Error("busy indicator not set")
	}

	m = step(t, m, m.login("nobody@example.test", "wrong-password")())
	if !m.noticeErr || !strings.Contains(m.notice, "login failed") {
		t.Errorf("notice = %q (err %v)", m.notice, m.noticeErr)
	}
	if m.view.Address != "abc123@example.test" {
		t.Errorf("address = %q, previous session should be kept", m.view.Address)
	}
}

func TestKeysOpenForms(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)

	m = step(t, m, keyMsg("D"))
	if m.currentView != ViewInbox || !m.noticeErr {
		t.Errorf("delete without session: view %v notice %q", m.currentView, m.notice)
	}

	m = step(t, m, m.initialize()())
	m = step(t, m, keyMsg("l"))
	if m.currentView != ViewForm || m.forms.Kind() != forms.KindLogin {
		t.Fatalf("view %v kind %v, want login form", m.currentView, m.forms.Kind())
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.currentView != ViewInbox {
		t.Errorf("esc should close the form, view = %v", m.currentView)
	}

	m = step(t, m, keyMsg("?"))
	if m.currentView != ViewHelp {
		t.Errorf("view = %v, want help", m.currentView)
	}
	m = step(t, m, keyMsg("?"))
	if m.currentView != ViewInbox {
		t.Errorf("view = %v, want inbox", m.currentView)
	}
}

func TestCommandPalette(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)
	m = step(t, m, m.initialize()())

	m = step(t, m, keyMsg(":"))
	if m.currentView != ViewCommand {
		t.Fatalf("view = %v, want command palette", m.currentView)
	}
	m = step(t, m, keyMsg("q"))
	if m.currentView != ViewCommand {
		t.Errorf("typing in the palette should not quit, view = %v", m.currentView)
	}
	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	if m.currentView != ViewInbox {
		t.Errorf("esc should close the palette, view = %v", m.currentView)
	}

	m = step(t, m, command.CommandMsg{Name: command.Login, Args: []string{"other@example.test"}})
	if m.currentView != ViewForm || m.forms.Kind() != forms.KindLogin {
		t.Errorf("view %v kind %v, want login form", m.currentView, m.forms.Kind())
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = step(t, m, command.CommandMsg{Name: command.Delete})
	if m.forms.Kind() != forms.KindDelete {
		t.Errorf("kind = %v, want delete confirmation", m.forms.Kind())
	}

	m = step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	m = step(t, m, command.UnknownCommandMsg{Input: "bogus"})
	if !m.noticeErr || !strings.Contains(m.notice, "bogus") {
		t.Errorf("notice = %q", m.notice)
	}
}

func TestCustomFormNeedsDomains(t *testing.T) {
	fake := testutil.NewFakeMailbox("example.test")
	m := newTestModel(t, fake)

	m = step(t, m, domainsLoadedMsg{})
	if m.currentView == ViewForm || !strings.Contains(m.notice, "no domain") {
		t.Errorf("view %v notice %q", m.currentView, m.notice)
	}

	m = step(t, m, domainsLoadedMsg{domains: []model.Domain{{Domain: "example.test", IsActive: true}}})
	if m.currentView != ViewForm || m.forms.Kind() != forms.KindCustom {
		t.Errorf("view %v kind %v, want custom form", m.currentView, m.forms.Kind())
	}
}

func TestDescribeError(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{&mailbox.SessionExpiredError{Address: "me@example.test"}, "session for me@example.test expired"},
		{&mailbox.ValidationError{Field: "password", Message: "too short"}, "invalid password"},
		{&mailbox.AuthenticationError{Address: "me@example.test"}, "login failed"},
		{&mailbox.AccountCreationError{Err: mailbox.ErrAddressTaken, Taken: true}, "already taken"},
		{&mailbox.NetworkError{Err: errors.New("dial")}, "network unavailable"},
		{errors.New("other"), "other"},
	}
	for _, tt := range tests {
		if got := describeError(tt.err); !strings.Contains(got, tt.want) {
			t.Errorf("describeError(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
