package help

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/theme"
)

// paletteHelp lists what can be typed after ":".
var paletteHelp = [][2]string{
	{"refresh, sync, r", "fetch the inbox and quota now"},
	{"new, generate", "replace the address with a random one"},
	{"custom", "pick a name and domain"},
	{"login [address]", "sign in to an existing address"},
	{"delete", "delete the current account"},
	{"copy", "copy the address to the clipboard"},
	{"quit, exit, q", "leave tempmail"},
}

// Model is the help overlay view. Besides the key bindings it shows the
// palette commands and which mailbox the session is on.
type Model struct {
	keys    *keys.KeyMap
	help    help.Model
	address string
	state   string
	width   int
	height  int
}

// New creates a new help view model.
func New(keys *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{
		keys:   keys,
		help:   h,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the help view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	return m, nil
}

// SetSession records the mailbox shown at the top of the overlay.
func (m *Model) SetSession(address, state string) {
	m.address = address
	m.state = state
}

// View renders the help overlay.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)
	sectionStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorBlue).
		MarginTop(1)

	m.help.Width = m.width - 4
	m.help.ShowAll = true

	content := lipgloss.JoinVertical(lipgloss.Left,
		titleStyle.Render("Keyboard Shortcuts"),
		m.sessionLine(),
		m.help.View(m.keys),
		sectionStyle.Render("Commands"),
		m.paletteView(),
	)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Height(m.height - 4).
		Render(content)
}

func (m Model) sessionLine() string {
	if m.address == "" {
		return theme.DimmedStyle.Render("No address yet")
	}
	return fmt.Sprintf("%s %s", m.address, theme.StateStyle(m.state).Render(m.state))
}

func (m Model) paletteView() string {
	width := 0
	for _, row := range paletteHelp {
		width = max(width, len(row[0]))
	}

	var b strings.Builder
	for i, row := range paletteHelp {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, ":%-*s  %s", width, row[0], theme.DimmedStyle.Render(row[1]))
	}
	return b.String()
}

// SetSize updates the help view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = width - 4
}
