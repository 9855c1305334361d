package app

import (
	"context"
	"time"

	"github.com/atotto/clipboard"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/session"
	"github.com/nhle/tempmail/internal/ui/reader"
)

// opTimeout bounds a single user-triggered session operation.
const opTimeout = time.Minute

// sessionUpdateMsg carries an update published by the session manager.
type sessionUpdateMsg struct {
	update session.Update
}

// actionDoneMsg is sent when a session operation finishes.
type actionDoneMsg struct {
	action string
	err    error
}

// domainsLoadedMsg carries the domains for the custom address form.
type domainsLoadedMsg struct {
	domains []model.Domain
	err     error
}

// copiedMsg reports the result of copying the address to the clipboard.
type copiedMsg struct {
	address string
	err     error
}

// waitForUpdate blocks until the manager publishes the next update.
// It is re-issued after every sessionUpdateMsg.
func (m Model) waitForUpdate() tea.Cmd {
	ch := m.updates
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return sessionUpdateMsg{update: u}
	}
}

// run executes fn against the manager with a bounded context.
func (m Model) run(action string, fn func(ctx context.Context, s *session.Manager) error) tea.Cmd {
	base, s := m.ctx, m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, opTimeout)
		defer cancel()
		return actionDoneMsg{action: action, err: fn(ctx, s)}
	}
}

func (m Model) initialize() tea.Cmd {
	return m.run("initialize", func(ctx context.Context, s *session.Manager) error {
		return s.Initialize(ctx)
	})
}

func (m Model) generate() tea.Cmd {
	return m.run("new address", func(ctx context.Context, s *session.Manager) error {
		return s.GenerateNewEmail(ctx)
	})
}

func (m Model) createCustom(username, domain, password string) tea.Cmd {
	return m.run("custom address", func(ctx context.Context, s *session.Manager) error {
		return s.CreateCustomEmail(ctx, username, domain, password)
	})
}

func (m Model) login(address, password string) tea.Cmd {
	return m.run("log in", func(ctx context.Context, s *session.Manager) error {
		return s.LoginWithCredentials(ctx, address, password)
	})
}

func (m Model) deleteAccount() tea.Cmd {
	return m.run("delete account", func(ctx context.Context, s *session.Manager) error {
		return s.DeleteAccount(ctx)
	})
}

func (m Model) refresh() tea.Cmd {
	return m.run("refresh", func(ctx context.Context, s *session.Manager) error {
		if err := s.RefreshInbox(ctx); err != nil {
			return err
		}
		return s.RefreshAccountInfo(ctx)
	})
}

// openMessage fetches the full message and marks it seen.
func (m Model) openMessage(id string) tea.Cmd {
	base, s := m.ctx, m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, opTimeout)
		defer cancel()
		msg, err := s.OpenMessage(ctx, id)
		return reader.MessageLoadedMsg{Message: msg, Err: err}
	}
}

func (m Model) loadDomains() tea.Cmd {
	base, s := m.ctx, m.session
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(base, opTimeout)
		defer cancel()
		domains, err := s.ListDomains(ctx)
		return domainsLoadedMsg{domains: domains, err: err}
	}
}

func copyAddress(address string) tea.Cmd {
	return func() tea.Msg {
		return copiedMsg{address: address, err: clipboard.WriteAll(address)}
	}
}
