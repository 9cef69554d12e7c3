package inbox

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/theme"
)

// Item wraps a model.Notification so it can be used in a bubbles/list.
type Item struct {
	Notification model.Notification
}

// FilterValue returns the string used for fuzzy filtering.
func (i Item) FilterValue() string { return i.Notification.Title }

// Title returns the notification title for the list.
func (i Item) Title() string { return i.Notification.Title }

// Description returns a short summary line for the list.
func (i Item) Description() string {
	parts := []string{
		string(i.Notification.Category),
		string(i.Notification.Priority),
		RelativeTime(i.Notification.CreatedAt, time.Now()),
	}
	return strings.Join(parts, " | ")
}

// ItemDelegate implements list.ItemDelegate for notification rows.
type ItemDelegate struct{}

// Height returns the number of lines each item takes.
func (d ItemDelegate) Height() int { return 1 }

// Spacing returns the number of blank lines between items.
func (d ItemDelegate) Spacing() int { return 0 }

// Update handles per-item messages (unused).
func (d ItemDelegate) Update(_ tea.Msg, _ *list.Model) tea.Cmd {
	return nil
}

// Render draws a single notification line.
func (d ItemDelegate) Render(w io.Writer, m list.Model, index int, item list.Item) {
	it, ok := item.(Item)
	if !ok {
		return
	}
	fmt.Fprint(w, renderRow(it.Notification, index == m.Index(), time.Now()))
}

func renderRow(n model.Notification, selected bool, now time.Time) string {
	marker := "●"
	titleStyle := theme.UnreadStyle
	if n.Read {
		marker = " "
		titleStyle = theme.ReadStyle
	}

	category := theme.CategoryStyle(string(n.Category)).
		Render(categoryLabel(n.Category))
	priority := theme.PriorityStyle(string(n.Priority)).
		Render(priorityLabel(n.Priority))

	when := lipgloss.NewStyle().
		Foreground(theme.ColorGray).
		Render(RelativeTime(n.CreatedAt, now))

	line := fmt.Sprintf("%s %s %s %s  %s",
		marker, category, priority, titleStyle.Render(n.Title), when)

	if selected {
		return theme.SelectedStyle.Render(line)
	}
	return theme.RowStyle.Render(line)
}

func categoryLabel(c model.NotificationCategory) string {
	if c == "" {
		c = model.CategoryGeneral
	}
	s := strings.ToUpper(string(c))
	return s[:min(4, len(s))]
}

func priorityLabel(p model.NotificationPriority) string {
	switch p {
	case model.PriorityUrgent:
		return "!!"
	case model.PriorityHigh:
		return "! "
	default:
		return "  "
	}
}

// RelativeTime returns a human-friendly relative time string.
func RelativeTime(t, now time.Time) string {
	if t.IsZero() {
		return ""
	}

	d := now.Sub(t)
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
		return fmt.Sprintf("%dw ago", int(d.Hours()/24/7))
	}
}
