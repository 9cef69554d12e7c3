package help

import (
	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/theme"
)

// Model lists the shortcuts of every screen.
type Model struct {
	keys   *keys.KeyMap
	help   help.Model
	width  int
	height int
}

func New(k *keys.KeyMap, width, height int) Model {
	h := help.New()
	h.Width = width
	return Model{keys: k, help: h, width: width, height: height}
}

func (m Model) Init() tea.Cmd { return nil }

func (m Model) Update(tea.Msg) (Model, tea.Cmd) { return m, nil }

// Hints renders the one-line shortcut summary of screen for the status
// bar. The help toggle is always appended.
func (m Model) Hints(screen string) string {
	bindings := append([]key.Binding{}, m.keys.Screen(screen)...)
	bindings = append(bindings, m.keys.Help)
	if screen == keys.ScreenInbox {
		bindings = append(bindings, m.keys.Quit)
	}
	h := m.help
	h.Width = m.width
	return h.ShortHelpView(bindings)
}

func (m Model) View() string {
	title := lipgloss.NewStyle().
		Bold(true).
		Foreground(theme.ColorWhite).
		MarginBottom(1).
		Render("Keyboard Shortcuts")

	blocks := []string{title}
	for _, s := range m.keys.Sections() {
		blocks = append(blocks,
			theme.SectionStyle.Render(s.Title),
			m.help.ShortHelpView(s.Bindings),
			"")
	}

	return theme.PanelStyle.
		Width(max(m.width-4, 0)).
		Height(max(m.height-4, 0)).
		Render(lipgloss.JoinVertical(lipgloss.Left, blocks...))
}

func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.help.Width = max(width-4, 0)
}
