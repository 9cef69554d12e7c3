package ui

import (
	"fmt"

	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/theme"
)

// Layout manages the terminal layout dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height available for the main content area,
// accounting for the header and status bar.
func (l Layout) ContentHeight() int {
	return max(l.Height-l.HeaderHeight-l.StatusBarHeight, 0)
}

// Badge renders the unread counter shown next to the title. Zero renders
// as an empty string.
func Badge(unread int) string {
	switch {
	case unread <= 0:
		return ""
	case unread > 99:
		return "99+"
	default:
		return fmt.Sprintf("%d", unread)
	}
}

// RenderHeader renders the top bar: title, unread badge and the push
// connection status on the right.
func (l Layout) RenderHeader(title string, unread int, connStatus string) string {
	if b := Badge(unread); b != "" {
		title = fmt.Sprintf("%s (%s)", title, b)
	}
	titleRendered := theme.HeaderStyle.Render(title)
	statusRendered := theme.HeaderStyle.
		Align(lipgloss.Right).
		Render(connStatus)

	return l.fill(theme.HeaderStyle, titleRendered, statusRendered)
}

// RenderStatusBar renders the bottom bar. A non-empty errMsg takes the
// place of the hints.
func (l Layout) RenderStatusBar(hints, errMsg string) string {
	style := theme.StatusBarStyle
	text := hints
	if errMsg != "" {
		style = theme.ErrorBarStyle
		text = errMsg
	}
	return l.fill(style, style.Render(text), "")
}

func (l Layout) fill(style lipgloss.Style, left, right string) string {
	gap := max(l.Width-lipgloss.Width(left)-lipgloss.Width(right), 0)
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, left, filler, right)
}

// RenderWithFrame composes a full terminal view by vertically joining
// the header, content area, and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}
