package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/tempmail/internal/model"
	"github.com/nhle/tempmail/internal/theme"
)

// MessageItem wraps a model.Message so it can be used in a bubbles/list.
type MessageItem struct {
	Message model.Message
}

// FilterValue returns the string used for fuzzy filtering.
func (i MessageItem) FilterValue() string {
	return i.Message.Subject + " " + i.Message.From.String()
}

// Title returns the subject line for the list.
func (i MessageItem) Title() string { return subject(i.Message) }

// Description returns a short summary line for the list.
func (i MessageItem) Description() string {
	parts := []string{
		sender(i.Message),
		relativeTime(i.Message.CreatedAt),
	}
	return strings.Join(parts, " | ")
}

// MessageDelegate implements list.ItemDelegate for rendering inbox rows.
type MessageDelegate struct{}

// Height returns the number of lines each item takes.
func (d MessageDelegate) Height() int { return 2 }

// Spacing returns the number of blank lines between items.
func (d MessageDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d MessageDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a message as a header line plus a dimmed preview line.
func (d MessageDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	mi, ok := item.(MessageItem)
	if !ok {
		return
	}
	fmt.Fprint(w, renderRow(mi.Message, index == m.Index(), m.Width()))
}

func renderRow(msg model.Message, selected bool, width int) string {
	marker := " "
	textStyle := theme.SeenStyle
	if !msg.Seen {
		marker = "●"
		textStyle = theme.UnseenStyle
	}

	clip := "   "
	if msg.HasAttachments {
		clip = theme.AttachmentStyle.Render(" @ ")
	}

	timeStr := theme.DimmedStyle.Render(relativeTime(msg.CreatedAt))

	head := fmt.Sprintf(
		"%s%s%s  %s",
		textStyle.Render(marker+" "+truncate(sender(msg), 28)),
		clip,
		textStyle.Render(truncate(subject(msg), max(width-50, 10))),
		timeStr,
	)

	preview := theme.DimmedStyle.Render("    " + truncate(oneLine(msg.Intro), max(width-8, 10)))

	row := lipgloss.JoinVertical(lipgloss.Left, head, preview)
	if selected {
		return selectedStyle.Render(row)
	}
	return itemStyle.Render(row)
}

var (
	itemStyle = lipgloss.NewStyle().
			PaddingLeft(2)

	selectedStyle = lipgloss.NewStyle().
			PaddingLeft(1).
			Foreground(theme.ColorBlue).
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(theme.ColorBlue)
)

func subject(m model.Message) string {
	if strings.TrimSpace(m.Subject) == "" {
		return "(no subject)"
	}
	return m.Subject
}

func sender(m model.Message) string {
	if m.From.Name != "" {
		return m.From.Name
	}
	if m.From.Address != "" {
		return m.From.Address
	}
	return "(unknown sender)"
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// truncate shortens s to at most n runes, marking the cut with an ellipsis.
func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	if n <= 1 {
		return string(r[:n])
	}
	return string(r[:n-1]) + "…"
}

// relativeTime returns a human-friendly relative time string.
func relativeTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := time.Since(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	default:
		return t.Format("Jan 02")
	}
}
