package command

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/theme"
)

// Names of the commands understood by the palette.
const (
	Refresh    = "refresh"
	NewAddress = "new"
	Custom     = "custom"
	Login      = "login"
	Delete     = "delete"
	Copy       = "copy"
	Help       = "help"
	Quit       = "quit"
)

// aliases maps shorthand to command names.
var aliases = map[string]string{
	"sync":     Refresh,
	"r":        Refresh,
	"generate": NewAddress,
	"q":        Quit,
	"exit":     Quit,
	"?":        Help,
}

var names = []string{Refresh, NewAddress, Custom, Login, Delete, Copy, Help, Quit}

// CommandMsg is emitted when the user executes a known command. Args holds
// any words after the command name.
type CommandMsg struct {
	Name string
	Args []string
}

// UnknownCommandMsg is emitted for input that names no command.
type UnknownCommandMsg struct {
	Input string
}

// Model is the command palette view.
type Model struct {
	input  textinput.Model
	width  int
	height int
}

// New creates a new command palette model.
func New(width, height int) Model {
	ti := textinput.New()
	ti.Placeholder = "refresh, new, custom, login, delete, copy, help, quit"
	ti.Prompt = ": "
	ti.ShowSuggestions = true
	ti.SetSuggestions(names)
	ti.Width = width - 6

	return Model{
		input:  ti,
		width:  width,
		height: height,
	}
}

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

// Update handles messages for the command palette.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && msg.String() == "enter" {
		input := strings.TrimSpace(m.input.Value())
		m.input.Reset()
		if input == "" {
			return m, nil
		}
		parsed, ok := Parse(input)
		if !ok {
			return m, func() tea.Msg { return UnknownCommandMsg{Input: input} }
		}
		return m, func() tea.Msg { return parsed }
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// Parse splits input into a command name and arguments. ok is false when
// the first word names no command.
func Parse(input string) (CommandMsg, bool) {
	fields := strings.Fields(input)
	if len(fields) == 0 {
		return CommandMsg{}, false
	}

	name := strings.ToLower(strings.TrimPrefix(fields[0], ":"))
	if alias, ok := aliases[name]; ok {
		name = alias
	}
	for _, n := range names {
		if n == name {
			return CommandMsg{Name: name, Args: fields[1:]}, true
		}
	}
	return CommandMsg{}, false
}

// View renders the command palette.
func (m Model) View() string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1)

	title := titleStyle.Render("Command Palette")
	hint := theme.HelpStyle.Render(fmt.Sprintf("tab completes | %s", strings.Join(names, " ")))

	content := lipgloss.JoinVertical(lipgloss.Left, title, m.input.View(), "", hint)

	return theme.DetailPanelStyle.
		Width(m.width - 4).
		Render(content)
}

// SetSize updates the command palette dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.input.Width = width - 6
}

// Focus gives keyboard focus to the text input.
func (m *Model) Focus() tea.Cmd {
	m.input.Reset()
	return m.input.Focus()
}
