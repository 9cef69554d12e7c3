package theme

import "github.com/charmbracelet/lipgloss"

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FFA94D", Light: "#C05621"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title bar.
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

// ErrorBarStyle replaces StatusBarStyle while an error is shown.
var ErrorBarStyle = StatusBarStyle.
	Background(ColorRed)

// PanelStyle wraps detail and comment content.
var PanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SectionStyle titles a block inside a panel.
var SectionStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorBlue).
	MarginTop(1)

// UnreadStyle marks unread notifications.
var UnreadStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// ReadStyle dims notifications already read.
var ReadStyle = lipgloss.NewStyle().
	Foreground(ColorGray)

// SelectedStyle highlights the focused list row.
var SelectedStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorBlue).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorBlue)

// RowStyle is the base style of an unfocused list row.
var RowStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// HelpStyle is used for keyboard hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// AuthorStyle renders a comment author's name.
var AuthorStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorMagenta)

// PendingStyle marks a reaction still waiting for the server.
var PendingStyle = lipgloss.NewStyle().
	Foreground(ColorYellow).
	Italic(true)

// StatusStyle returns a color-coded style for a task status.
func StatusStyle(status string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch status {
	case "todo":
		return base.Foreground(ColorBlue)
	case "in_progress":
		return base.Foreground(ColorYellow)
	case "review":
		return base.Foreground(ColorMagenta)
	case "done":
		return base.Foreground(ColorGreen)
	default:
		return base.Foreground(ColorGray)
	}
}

// PriorityStyle returns a color-coded style for a notification or task
// priority.
func PriorityStyle(priority string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch priority {
	case "urgent":
		return base.Foreground(ColorRed)
	case "high":
		return base.Foreground(ColorOrange)
	case "normal", "medium":
		return base.Foreground(ColorYellow)
	case "low":
		return base.Foreground(ColorBlue)
	default:
		return base.Foreground(ColorGray)
	}
}

// CategoryStyle returns a color-coded label style for a notification
// category.
func CategoryStyle(category string) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)

	switch category {
	case "task":
		return base.Foreground(ColorBlue)
	case "project":
		return base.Foreground(ColorMagenta)
	case "facility":
		return base.Foreground(ColorGreen)
	case "system":
		return base.Foreground(ColorRed)
	case "communication":
		return base.Foreground(ColorOrange)
	default:
		return base.Foreground(ColorGray)
	}
}
