package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/session"
	"github.com/nhle/tempmail/internal/theme"
	"github.com/nhle/tempmail/internal/ui"
	"github.com/nhle/tempmail/internal/ui/command"
	"github.com/nhle/tempmail/internal/ui/forms"
	helpview "github.com/nhle/tempmail/internal/ui/help"
	"github.com/nhle/tempmail/internal/ui/inbox"
	"github.com/nhle/tempmail/internal/ui/reader"
)

// updateBuffer is how many manager updates may queue before older ones
// are dropped. Every update carries the full view, so only Err is lost.
const updateBuffer = 16

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewReader
	ViewForm
	ViewHelp
	ViewCommand
)

// Model is the root Bubble Tea model that routes between views and
// drives the session manager.
type Model struct {
	ctx     context.Context
	session *session.Manager
	logger  *slog.Logger

	updates     chan session.Update
	unsubscribe func()

	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	inbox        inbox.Model
	reader       reader.Model
	forms        forms.Model
	helpView     helpview.Model
	commandView  command.Model

	view      session.View
	busy      string
	notice    string
	noticeErr bool
	ready     bool
}

// New creates the root model. Close must be called once the program
// exits.
func New(ctx context.Context, s *session.Manager, logger *slog.Logger) Model {
	if logger == nil {
		logger = slog.Default()
	}
	k := keys.DefaultKeyMap()

	m := Model{
		ctx:         ctx,
		session:     s,
		logger:      logger,
		updates:     make(chan session.Update, updateBuffer),
		currentView: ViewInbox,
		keys:        k,
		inbox:       inbox.New(k, 80, 24),
		reader:      reader.New(k, 80, 24),
		forms:       forms.New(80, 24),
		helpView:    helpview.New(k, 80, 24),
		commandView: command.New(80, 24),
		view:        s.View(),
	}

	ch := m.updates
	m.unsubscribe = s.Subscribe(func(u session.Update) {
		select {
		case ch <- u:
			return
		default:
		}
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- u:
		default:
		}
	})
	return m
}

// Close detaches the model from the manager.
func (m Model) Close() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// Init restores or creates a session and starts listening for updates.
func (m Model) Init() tea.Cmd {
	return tea.Batch(
		m.initialize(),
		m.waitForUpdate(),
	)
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		width, height := msg.Width, m.layout.ContentHeight()
		m.inbox.SetSize(width, height)
		m.reader.SetSize(width, height)
		m.forms.SetSize(width, height)
		m.helpView.SetSize(width, height)
		m.commandView.SetSize(width, height)
		// Forward to active view so huh forms can calculate their layout.
		return m.updateActiveView(msg)

	case sessionUpdateMsg:
		cmd := m.applyView(msg.update.View)
		if msg.update.Err != nil {
			m.setError(msg.update.Err)
		}
		return m, tea.Batch(cmd, m.waitForUpdate())

	case actionDoneMsg:
		m.busy = ""
		cmd := m.applyView(m.session.View())
		if msg.err != nil {
			m.logger.Warn("action failed", "action", msg.action, "error", msg.err)
			m.setError(msg.err)
		} else if msg.action != "initialize" && msg.action != "refresh" {
			m.setNotice(msg.action + " done")
		}
		return m, cmd

	case domainsLoadedMsg:
		m.busy = ""
		if msg.err != nil {
			m.setError(msg.err)
			return m, nil
		}
		if len(msg.domains) == 0 {
			m.setError(mailbox.ErrNoDomain)
			return m, nil
		}
		m.forms.SetDomains(msg.domains)
		m.previousView = m.currentView
		m.currentView = ViewForm
		return m, m.forms.StartCustom()

	case copiedMsg:
		if msg.err != nil {
			m.setNotice("address: " + msg.address)
		} else {
			m.setNotice("copied " + msg.address)
		}
		return m, nil

	case inbox.SelectedMessageMsg:
		m.previousView = m.currentView
		m.currentView = ViewReader
		m.reader.SetLoading(true)
		return m, m.openMessage(msg.MessageID)

	case reader.MessageLoadedMsg:
		var cmd tea.Cmd
		m.reader, cmd = m.reader.Update(msg)
		return m, cmd

	case reader.BackMsg:
		m.currentView = ViewInbox
		return m, nil

	case forms.LoginSubmittedMsg:
		m.currentView = ViewInbox
		m.busy = "logging in"
		return m, m.login(msg.Address, msg.Password)

	case forms.CustomSubmittedMsg:
		m.currentView = ViewInbox
		m.busy = "creating address"
		return m, m.createCustom(msg.Username, msg.Domain, msg.Password)

	case forms.DeleteConfirmedMsg:
		m.currentView = ViewInbox
		m.busy = "deleting account"
		return m, m.deleteAccount()

	case forms.CancelMsg:
		m.currentView = ViewInbox
		return m, nil

	case command.CommandMsg:
		m.currentView = ViewInbox
		return m, m.dispatch(msg.Name, msg.Args)

	case command.UnknownCommandMsg:
		m.currentView = ViewInbox
		m.setError(fmt.Errorf("unknown command %q", msg.Input))
		return m, nil

	case tea.KeyMsg:
		if cmd, handled := m.handleGlobalKey(msg); handled {
			return m, cmd
		}
		if m.currentView == ViewInbox {
			if cmd, handled := m.handleInboxKey(msg); handled {
				return m, cmd
			}
		}
	}

	// Delegate to active sub-view
	return m.updateActiveView(msg)
}

// handleGlobalKey processes keys that work in every view. Everything is
// passed through to an open form except ctrl+c and esc.
func (m *Model) handleGlobalKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	if msg.String() == "ctrl+c" {
		return tea.Quit, true
	}

	if m.currentView == ViewForm || m.currentView == ViewCommand {
		if key.Matches(msg, m.keys.Back) {
			m.currentView = ViewInbox
			return nil, true
		}
		return nil, false
	}

	switch {
	case key.Matches(msg, m.keys.Help):
		if m.currentView == ViewHelp {
			m.currentView = m.previousView
			return nil, true
		}
		m.previousView = m.currentView
		m.currentView = ViewHelp
		return nil, true

	case key.Matches(msg, m.keys.Command):
		m.previousView = m.currentView
		m.currentView = ViewCommand
		return m.commandView.Focus(), true

	case m.currentView == ViewHelp && key.Matches(msg, m.keys.Back):
		m.currentView = m.previousView
		return nil, true

	case key.Matches(msg, m.keys.Quit) && m.currentView == ViewInbox:
		return tea.Quit, true
	}
	return nil, false
}

// handleInboxKey maps the inbox action keys onto commands.
func (m *Model) handleInboxKey(msg tea.KeyMsg) (tea.Cmd, bool) {
	var name string
	switch {
	case key.Matches(msg, m.keys.Refresh):
		name = command.Refresh
	case key.Matches(msg, m.keys.NewAddress):
		name = command.NewAddress
	case key.Matches(msg, m.keys.CustomAddress):
		name = command.Custom
	case key.Matches(msg, m.keys.Login):
		name = command.Login
	case key.Matches(msg, m.keys.Delete):
		name = command.Delete
	case key.Matches(msg, m.keys.Address):
		name = command.Copy
	default:
		return nil, false
	}
	return m.dispatch(name, nil), true
}

// dispatch runs a named session action from a key or the palette.
func (m *Model) dispatch(name string, args []string) tea.Cmd {
	switch name {
	case command.Refresh:
		m.busy = "refreshing"
		return m.refresh()

	case command.NewAddress:
		m.busy = "creating address"
		return m.generate()

	case command.Custom:
		m.busy = "loading domains"
		return m.loadDomains()

	case command.Login:
		address := ""
		if len(args) > 0 {
			address = args[0]
		}
		m.previousView = ViewInbox
		m.currentView = ViewForm
		return m.forms.StartLogin(address)

	case command.Delete:
		if m.view.State != session.StateActive {
			m.setError(session.ErrNoSession)
			return nil
		}
		m.previousView = ViewInbox
		m.currentView = ViewForm
		return m.forms.StartDelete(m.view.Address)

	case command.Copy:
		if m.view.Address == "" {
			return nil
		}
		return copyAddress(m.view.Address)

	case command.Help:
		m.previousView = ViewInbox
		m.currentView = ViewHelp
		return nil

	case command.Quit:
		return tea.Quit
	}
	return nil
}

// applyView stores the latest manager view and refreshes the inbox. A
// switch to another account closes the reader.
func (m *Model) applyView(v session.View) tea.Cmd {
	switched := v.AccountID != m.view.AccountID
	m.view = v
	m.helpView.SetSession(v.Address, m.stateLabel())

	if switched && m.currentView == ViewReader {
		m.currentView = ViewInbox
	}

	m.inbox.SetLoading(v.Loading)
	m.inbox.SetTitle(v.Unseen)
	return m.inbox.SetMessages(v.Messages)
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewReader:
		m.reader, cmd = m.reader.Update(msg)
	case ViewForm:
		m.forms, cmd = m.forms.Update(msg)
	case ViewHelp:
		m.helpView, cmd = m.helpView.Update(msg)
	case ViewCommand:
		m.commandView, cmd = m.commandView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.headerAddress(), m.headerQuota(), m.stateLabel())
	content := m.renderContent()
	statusBar := m.layout.RenderStatusBar(m.statusText())

	return m.layout.RenderWithFrame(header, content, statusBar)
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewReader:
		return m.reader.View()
	case ViewForm:
		return m.forms.View()
	case ViewHelp:
		return m.helpView.View()
	case ViewCommand:
		return m.commandView.View()
	default:
		return ""
	}
}

func (m Model) headerAddress() string {
	if m.view.Address == "" {
		return "tempmail"
	}
	return m.view.Address
}

func (m Model) headerQuota() string {
	if m.view.State != session.StateActive || m.view.Quota == 0 {
		return ""
	}
	return theme.QuotaStyle(m.view.Used, m.view.Quota).Render(ui.FormatQuota(m.view.Used, m.view.Quota))
}

// stateLabel returns a short string describing the session state.
func (m Model) stateLabel() string {
	switch {
	case m.view.Expired:
		return "expired"
	case m.view.State == session.StateAuthenticating:
		return "authenticating"
	case m.view.Refreshing:
		return "syncing"
	default:
		return m.view.State.String()
	}
}

// statusText returns the busy indicator, the latest notice, or keyboard
// hints for the status bar.
func (m Model) statusText() string {
	if m.busy != "" {
		return m.busy + "..."
	}
	if m.notice != "" {
		if m.noticeErr {
			return theme.ErrorStyle.Render(m.notice)
		}
		return m.notice
	}

	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewReader:
		return "esc back | j/k scroll"
	case ViewForm:
		return "enter submit | esc cancel"
	case ViewCommand:
		return "enter execute | tab complete | esc back"
	default:
		if m.view.Expired {
			return "session expired | l log in | n new address | q quit"
		}
		return "q quit | ? help | : command | r refresh | n new | c custom | l log in | y copy"
	}
}

func (m *Model) setNotice(s string) {
	m.notice = s
	m.noticeErr = false
}

func (m *Model) setError(err error) {
	m.notice = describeError(err)
	m.noticeErr = true
}

// describeError turns a session error into a status bar line.
func describeError(err error) string {
	var expired *mailbox.SessionExpiredError
	var validation *mailbox.ValidationError
	var auth *mailbox.AuthenticationError

	switch {
	case errors.As(err, &expired):
		return fmt.Sprintf("session for %s expired: log in again or create a new address", expired.Address)
	case errors.As(err, &validation):
		return validation.Error()
	case errors.As(err, &auth):
		return "login failed: wrong address or password"
	case errors.Is(err, mailbox.ErrAddressTaken):
		return "that address is already taken"
	case errors.Is(err, mailbox.ErrNoDomain):
		return "no domain is available right now"
	case errors.Is(err, session.ErrNoSession):
		return "no active address"
	case mailbox.IsNetwork(err):
		return "network unavailable, retrying in the background"
	default:
		return err.Error()
	}
}
