package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue   = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen  = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed    = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorGray   = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite  = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the address header and the application title.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorBlue).
	Padding(0, 1)

// StatusBarStyle is used for the bottom status bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps the reader and overlay content areas.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// HelpStyle is used for keyboard shortcut hints and help text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// DimmedStyle renders secondary text such as previews and timestamps.
var DimmedStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// UnseenStyle marks messages that have not been read yet.
var UnseenStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// SeenStyle is used for messages that were already read.
var SeenStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// ErrorStyle renders error notices in the status bar.
var ErrorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorRed)

// AttachmentStyle marks messages carrying attachments.
var AttachmentStyle = lipgloss.NewStyle().
	Foreground(ColorYellow)

// QuotaStyle returns a color-coded style for the given mailbox usage ratio.
func QuotaStyle(used, quota int64) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Background(ColorBlue)

	if quota <= 0 {
		return base.Foreground(ColorWhite)
	}
	ratio := float64(used) / float64(quota)
	switch {
	case ratio >= 0.9:
		return base.Foreground(ColorRed)
	case ratio >= 0.7:
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorGreen)
	}
}

// StateStyle returns a color-coded style for the session lifecycle state.
func StateStyle(state string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch state {
	case "active":
		return base.Foreground(ColorGreen)
	case "authenticating":
		return base.Foreground(ColorYellow)
	case "expired":
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}
