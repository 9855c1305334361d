package inbox

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// SelectedMessageMsg is sent when the user opens a message.
type SelectedMessageMsg struct {
	MessageID string
}

// Model is the inbox list view.
type Model struct {
	list    list.Model
	keys    *keys.KeyMap
	loading bool
	width   int
	height  int
}

// New creates a new inbox model.
func New(k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, MessageDelegate{}, width, height-2)
	l.Title = "Inbox"
	l.SetShowStatusBar(true)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.SetStatusBarItemName("message", "messages")
	l.Styles.Title = theme.HeaderStyle

	return Model{
		list:   l,
		keys:   k,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, m.keys.Select) {
		item, ok := m.list.SelectedItem().(MessageItem)
		if !ok {
			return m, nil
		}
		id := item.Message.ID
		return m, func() tea.Msg {
			return SelectedMessageMsg{MessageID: id}
		}
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

// View renders the inbox.
func (m Model) View() string {
	if len(m.list.Items()) == 0 {
		return m.renderEmptyState()
	}
	return m.list.View()
}

func (m Model) renderEmptyState() string {
	style := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	if m.loading {
		return style.Render("Loading inbox...")
	}
	return style.Render("Waiting for incoming emails...\n\nNew mail shows up here automatically.")
}

// SetMessages replaces the listed messages, keeping the cursor on the
// same message when it is still present.
func (m *Model) SetMessages(msgs []model.Message) tea.Cmd {
	selected := ""
	if item, ok := m.list.SelectedItem().(MessageItem); ok {
		selected = item.Message.ID
	}

	items := make([]list.Item, len(msgs))
	cursor := 0
	for i, msg := range msgs {
		items[i] = MessageItem{Message: msg}
		if msg.ID == selected {
			cursor = i
		}
	}
	cmd := m.list.SetItems(items)
	m.list.Select(cursor)
	return cmd
}

// SetLoading toggles the loading placeholder for an empty inbox.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
}

// SetTitle shows the unseen count next to the list title.
func (m *Model) SetTitle(unseen int) {
	if unseen == 0 {
		m.list.Title = "Inbox"
		return
	}
	m.list.Title = fmt.Sprintf("Inbox (%d new)", unseen)
}

// Len returns the number of listed messages.
func (m Model) Len() int {
	return len(m.list.Items())
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
