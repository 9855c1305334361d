package reader

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/keys"
	"github.com/nhle/tempmail/internal/links"
	"github.com/nhle/tempmail/internal/mailbox"
	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
	"github.com/nhle/tempmail/internal/ui"
)

// BackMsg signals the parent to navigate back to the inbox.
type BackMsg struct{}

// MessageLoadedMsg carries the fully fetched message, or the error that
// prevented loading it.
type MessageLoadedMsg struct {
	Message model.Message
	Err     error
}

// Model is the message reader view.
type Model struct {
	msg      *model.Message
	err      error
	viewport viewport.Model
	keys     *keys.KeyMap
	width    int
	height   int
	loading  bool
}

// New creates a new reader model.
func New(k *keys.KeyMap, width, height int) Model {
	vp := viewport.New(width, height-2)
	vp.Style = lipgloss.NewStyle()

	return Model{
		viewport: vp,
		keys:     k,
		width:    width,
		height:   height,
	}
}

// Init returns the initial command for the reader.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the reader.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case MessageLoadedMsg:
		m.loading = false
		m.err = msg.Err
		if msg.Err == nil {
			loaded := msg.Message
			m.msg = &loaded
		}
		m.viewport.SetContent(m.renderContent())
		m.viewport.GotoTop()
		return m, nil

	case tea.KeyMsg:
		if key.Matches(msg, m.keys.Back) {
			return m, func() tea.Msg { return BackMsg{} }
		}
	}

	// Delegate to viewport for scrolling (j/k, up/down, pgup/pgdn)
	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

// View renders the reader.
func (m Model) View() string {
	centered := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.loading:
		return centered.Render("Loading message...")
	case m.err != nil:
		return centered.Foreground(theme.ColorRed).Render("Could not load message:\n" + m.err.Error())
	case m.msg == nil:
		return centered.Render("No message selected")
	}
	return m.viewport.View()
}

// renderContent builds the header block, body and attachment list.
func (m Model) renderContent() string {
	if m.msg == nil {
		return ""
	}
	msg := m.msg
	var sections []string

	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)
	subject := msg.Subject
	if strings.TrimSpace(subject) == "" {
		subject = "(no subject)"
	}
	sections = append(sections, titleStyle.Render(subject), "")

	metaStyle := lipgloss.NewStyle().Foreground(theme.ColorGray)
	valStyle := lipgloss.NewStyle().Foreground(theme.ColorWhite)
	meta := func(label, value string) {
		if value == "" {
			return
		}
		sections = append(sections, fmt.Sprintf("%s %s",
			metaStyle.Render(fmt.Sprintf("%-6s", label)),
			valStyle.Render(value),
		))
	}

	meta("From:", msg.From.String())
	meta("To:", joinAddresses(msg.To))
	if !msg.CreatedAt.IsZero() {
		meta("Date:", msg.CreatedAt.Local().Format("2006-01-02 15:04"))
	}
	if msg.Size > 0 {
		meta("Size:", ui.FormatBytes(msg.Size))
	}

	sepStyle := lipgloss.NewStyle().Foreground(theme.ColorSubtle)
	separator := sepStyle.Render(strings.Repeat("─", max(min(m.width-4, 80), 1)))
	sections = append(sections, "", separator, "")

	body := mailbox.PlainText(*msg)
	if body == "" {
		body = lipgloss.NewStyle().
			Foreground(theme.ColorGray).
			Italic(true).
			Render("This message has no body")
	}
	sections = append(sections, lipgloss.NewStyle().Width(max(m.width-2, 10)).Render(body))

	headerStyle := lipgloss.NewStyle().Bold(true).Foreground(theme.ColorWhite)

	if found := links.FromBodies(msg.Text, msg.HTML); len(found) > 0 {
		sections = append(sections, "", separator, "",
			headerStyle.Render(fmt.Sprintf("Links (%d)", len(found))), "")
		for i, l := range found {
			sections = append(sections, fmt.Sprintf("%s %s", metaStyle.Render(fmt.Sprintf("[%d]", i+1)), l))
		}
	}

	if len(msg.Attachments) > 0 {
		sections = append(sections, "", separator, "",
			headerStyle.Render(fmt.Sprintf("Attachments (%d)", len(msg.Attachments))), "")

		for _, a := range msg.Attachments {
			line := fmt.Sprintf("%s  %s  %s",
				theme.AttachmentStyle.Render(displayName(a)),
				metaStyle.Render(a.ContentType),
				metaStyle.Render(ui.FormatBytes(a.Size)),
			)
			sections = append(sections, line)
			if a.DownloadURL != "" {
				sections = append(sections, metaStyle.Render("  "+a.DownloadURL))
			}
		}
	}

	return lipgloss.JoinVertical(lipgloss.Left, sections...)
}

// SetLoading clears the current message and shows the loading state.
func (m *Model) SetLoading(loading bool) {
	m.loading = loading
	if loading {
		m.msg = nil
		m.err = nil
	}
}

// MessageID returns the id of the displayed message, or "".
func (m Model) MessageID() string {
	if m.msg == nil {
		return ""
	}
	return m.msg.ID
}

// SetSize updates the reader dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 2
	m.viewport.SetContent(m.renderContent())
}

func joinAddresses(addrs []model.EmailAddress) string {
	parts := make([]string, len(addrs))
	for i, a := range addrs {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

func displayName(a model.Attachment) string {
	if a.Filename != "" {
		return a.Filename
	}
	return a.ID
}
