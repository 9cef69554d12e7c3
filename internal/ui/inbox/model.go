package inbox

import (
	"context"
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/sync"
	"github.com/nhle/taskhub/internal/theme"
)

// Feed is the notification feed the inbox renders and mutates.
type Feed interface {
	Snapshot() sync.NotificationState
	Updates() <-chan sync.NotificationState
	Refresh(ctx context.Context)
	MarkAsRead(ctx context.Context, id string) error
	MarkAllAsRead(ctx context.Context) error
	DeleteNotification(ctx context.Context, id string) error
}

// StateMsg carries a new feed state.
type StateMsg struct {
	State sync.NotificationState
}

// SelectedTaskMsg is sent when the user opens the task a notification
// points to.
type SelectedTaskMsg struct {
	TaskID string
}

// actionDoneMsg ends a mutation. Failures are already reflected in the
// feed state's Error.
type actionDoneMsg struct{}

// Model is the notification list view component.
type Model struct {
	list   list.Model
	feed   Feed
	keys   *keys.KeyMap
	state  sync.NotificationState
	width  int
	height int
}

// New creates an inbox bound to feed.
func New(feed Feed, k *keys.KeyMap, width, height int) Model {
	l := list.New([]list.Item{}, ItemDelegate{}, width, height-2)
	l.Title = "Notifications"
	l.SetShowStatusBar(false)
	l.SetShowHelp(false)
	l.SetFilteringEnabled(false)
	l.Styles.Title = theme.HeaderStyle

	m := Model{
		list:   l,
		feed:   feed,
		keys:   k,
		width:  width,
		height: height,
	}
	if feed != nil {
		m.setState(feed.Snapshot())
	}
	return m
}

// Init starts listening for feed updates.
func (m Model) Init() tea.Cmd {
	if m.feed == nil {
		return nil
	}
	return WaitForUpdate(m.feed)
}

// WaitForUpdate blocks until the feed publishes a new state.
func WaitForUpdate(feed Feed) tea.Cmd {
	return func() tea.Msg {
		s, ok := <-feed.Updates()
		if !ok {
			return nil
		}
		return StateMsg{State: s}
	}
}

// Update handles messages for the inbox view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.setState(msg.State)
		return m, WaitForUpdate(m.feed)

	case actionDoneMsg:
		return m, nil

	case tea.KeyMsg:
		return m.handleKeys(msg)
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) handleKeys(msg tea.KeyMsg) (Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Refresh):
		return m, m.run(func(ctx context.Context) error {
			m.feed.Refresh(ctx)
			return nil
		})

	case key.Matches(msg, m.keys.MarkAllRead):
		return m, m.run(m.feed.MarkAllAsRead)
	}

	n, ok := m.Selected()
	if !ok {
		var cmd tea.Cmd
		m.list, cmd = m.list.Update(msg)
		return m, cmd
	}

	switch {
	case key.Matches(msg, m.keys.Select):
		var cmds []tea.Cmd
		if !n.Read {
			cmds = append(cmds, m.markRead(n.ID))
		}
		if n.TaskID != "" {
			cmds = append(cmds, func() tea.Msg {
				return SelectedTaskMsg{TaskID: n.TaskID}
			})
		}
		return m, tea.Batch(cmds...)

	case key.Matches(msg, m.keys.MarkRead):
		if n.Read {
			return m, nil
		}
		return m, m.markRead(n.ID)

	case key.Matches(msg, m.keys.Delete):
		id := n.ID
		return m, m.run(func(ctx context.Context) error {
			return m.feed.DeleteNotification(ctx, id)
		})
	}

	var cmd tea.Cmd
	m.list, cmd = m.list.Update(msg)
	return m, cmd
}

func (m Model) markRead(id string) tea.Cmd {
	return m.run(func(ctx context.Context) error {
		return m.feed.MarkAsRead(ctx, id)
	})
}

func (m Model) run(fn func(ctx context.Context) error) tea.Cmd {
	return func() tea.Msg {
		_ = fn(context.Background())
		return actionDoneMsg{}
	}
}

func (m *Model) setState(s sync.NotificationState) {
	m.state = s
	items := make([]list.Item, len(s.Notifications))
	for i, n := range s.Notifications {
		items[i] = Item{Notification: n}
	}
	m.list.SetItems(items)
	m.list.Title = fmt.Sprintf("Notifications (%d unread)", s.UnreadCount)
}

// Selected returns the focused notification.
func (m Model) Selected() (model.Notification, bool) {
	it, ok := m.list.SelectedItem().(Item)
	if !ok {
		return model.Notification{}, false
	}
	return it.Notification, true
}

// State returns the last rendered feed state.
func (m Model) State() sync.NotificationState {
	return m.state
}

// View renders the inbox.
func (m Model) View() string {
	if len(m.state.Notifications) == 0 {
		style := lipgloss.NewStyle().
			Width(m.width).
			Height(m.height).
			Align(lipgloss.Center, lipgloss.Center).
			Foreground(theme.ColorGray)
		if m.state.Loading {
			return style.Render("Loading notifications...")
		}
		return style.Render("No notifications.")
	}
	return m.list.View()
}

// SetSize updates the list dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.list.SetSize(width, height-2)
}
