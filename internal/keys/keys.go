package keys

import "github.com/charmbracelet/bubbles/key"

// KeyMap defines the global keybindings for the application.
type KeyMap struct {
	// Navigation
	Down key.Binding
	Up   key.Binding

	// Selection
	Select   key.Binding
	Comments key.Binding

	// Back / Quit
	Back key.Binding
	Quit key.Binding

	// Help toggle
	Help key.Binding

	// Manual refresh
	Refresh key.Binding

	// Notification actions
	MarkRead    key.Binding
	MarkAllRead key.Binding
	Delete      key.Binding

	// Comment reactions
	Like    key.Binding
	Dislike key.Binding
}

// DefaultKeyMap returns the default set of keybindings.
func DefaultKeyMap() *KeyMap {
	return &KeyMap{
		Down: key.NewBinding(
			key.WithKeys("j", "down"),
			key.WithHelp("j/↓", "down"),
		),
		Up: key.NewBinding(
			key.WithKeys("k", "up"),
			key.WithHelp("k/↑", "up"),
		),
		Select: key.NewBinding(
			key.WithKeys("enter"),
			key.WithHelp("enter", "open task"),
		),
		Comments: key.NewBinding(
			key.WithKeys("c"),
			key.WithHelp("c", "comments"),
		),
		Back: key.NewBinding(
			key.WithKeys("esc"),
			key.WithHelp("esc", "back"),
		),
		Quit: key.NewBinding(
			key.WithKeys("q", "ctrl+c"),
			key.WithHelp("q", "quit"),
		),
		Help: key.NewBinding(
			key.WithKeys("?"),
			key.WithHelp("?", "toggle help"),
		),
		Refresh: key.NewBinding(
			key.WithKeys("r"),
			key.WithHelp("r", "refresh"),
		),
		MarkRead: key.NewBinding(
			key.WithKeys("m"),
			key.WithHelp("m", "mark read"),
		),
		MarkAllRead: key.NewBinding(
			key.WithKeys("M"),
			key.WithHelp("M", "mark all read"),
		),
		Delete: key.NewBinding(
			key.WithKeys("d"),
			key.WithHelp("d", "delete"),
		),
		Like: key.NewBinding(
			key.WithKeys("l"),
			key.WithHelp("l", "like"),
		),
		Dislike: key.NewBinding(
			key.WithKeys("x"),
			key.WithHelp("x", "dislike"),
		),
	}
}

// ShortHelp returns the most essential keybindings for the compact help view.
func (k *KeyMap) ShortHelp() []key.Binding {
	return []key.Binding{
		k.Up, k.Down, k.Select, k.Back,
		k.Quit, k.Help,
	}
}

// FullHelp returns all keybindings grouped by category for the expanded
// help view.
func (k *KeyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.Up, k.Down, k.Select, k.Comments, k.Back, k.Quit},
		{k.Help, k.Refresh},
		{k.MarkRead, k.MarkAllRead, k.Delete},
		{k.Like, k.Dislike},
	}
}

// Screen names used to group bindings.
const (
	ScreenInbox  = "Inbox"
	ScreenTask   = "Task"
	ScreenThread = "Comments"
)

// Section is a titled group of bindings active on one screen.
type Section struct {
	Title    string
	Bindings []key.Binding
}

// Sections returns the bindings of every screen, in display order.
func (k *KeyMap) Sections() []Section {
	return []Section{
		{ScreenInbox, []key.Binding{k.Up, k.Down, k.Select, k.MarkRead, k.MarkAllRead, k.Delete, k.Refresh}},
		{ScreenTask, []key.Binding{k.Up, k.Down, k.Comments, k.Refresh, k.Back}},
		{ScreenThread, []key.Binding{k.Up, k.Down, k.Like, k.Dislike, k.Refresh, k.Back}},
		{"General", []key.Binding{k.Help, k.Quit}},
	}
}

// Screen returns the bindings of the named screen.
func (k *KeyMap) Screen(name string) []key.Binding {
	for _, s := range k.Sections() {
		if s.Title == name {
			return s.Bindings
		}
	}
	return nil
}
