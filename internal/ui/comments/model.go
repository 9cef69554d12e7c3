package comments

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/sync"
	"github.com/nhle/taskhub/internal/theme"
	"github.com/nhle/taskhub/internal/ui/inbox"
)

// Feed is the comment feed of one task.
type Feed interface {
	Start(ctx context.Context, taskID string, currentUser *model.User) error
	Stop()
	Reload(ctx context.Context)
	Snapshot() sync.CommentState
	Updates() <-chan sync.CommentState
}

// Reactor toggles likes and dislikes.
type Reactor interface {
	Toggle(ctx context.Context, c model.TaskComment, userID string, kind sync.ReactionKind) (model.TaskComment, error)
	Status(commentID string) (sync.Reaction, bool)
}

// StateMsg carries a new comment feed state.
type StateMsg struct {
	State sync.CommentState
}

// BackMsg signals the parent to leave the thread.
type BackMsg struct{}

// reactedMsg ends a reaction toggle.
type reactedMsg struct {
	err error
}

// Model renders the comment thread of a task and lets the user react.
type Model struct {
	feed    Feed
	reactor Reactor
	user    *model.User
	keys    *keys.KeyMap
	state   sync.CommentState
	cursor  int
	notice  string
	// listening is set once a WaitForUpdate is outstanding; every
	// StateMsg re-arms it.
	listening bool
	viewport  viewport.Model
	width     int
	height    int
}

// New creates a thread view. reactor may be nil for a read-only thread.
func New(feed Feed, reactor Reactor, user *model.User, k *keys.KeyMap, width, height int) Model {
	return Model{
		feed:     feed,
		reactor:  reactor,
		user:     user,
		keys:     k,
		viewport: viewport.New(width, height-1),
		width:    width,
		height:   height,
	}
}

// Open starts the feed on taskID and begins listening for updates.
func (m *Model) Open(taskID string) tea.Cmd {
	m.cursor = 0
	m.notice = ""
	if err := m.feed.Start(context.Background(), taskID, m.user); err != nil {
		m.notice = err.Error()
		return nil
	}
	m.setState(m.feed.Snapshot())
	if m.listening {
		return nil
	}
	m.listening = true
	return WaitForUpdate(m.feed)
}

// Close detaches the feed.
func (m *Model) Close() {
	if m.feed != nil {
		m.feed.Stop()
	}
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

// Init returns the initial command.
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages for the thread view.
func (m Model) Update(msg tea.Msg) (Model, tea.Cmd) {
	switch msg := msg.(type) {
	case StateMsg:
		m.setState(msg.State)
		return m, WaitForUpdate(m.feed)

	case reactedMsg:
		m.notice = ""
		if msg.err != nil && !errors.Is(msg.err, sync.ErrReactionPending) {
			m.notice = api.Message(msg.err, "Failed to update reaction")
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(msg, m.keys.Back):
			return m, func() tea.Msg { return BackMsg{} }

		case key.Matches(msg, m.keys.Down):
			if m.cursor < len(m.state.Comments)-1 {
				m.cursor++
				m.render()
			}
			return m, nil

		case key.Matches(msg, m.keys.Up):
			if m.cursor > 0 {
				m.cursor--
				m.render()
			}
			return m, nil

		case key.Matches(msg, m.keys.Refresh):
			feed := m.feed
			return m, func() tea.Msg {
				feed.Reload(context.Background())
				return nil
			}

		case key.Matches(msg, m.keys.Like):
			return m, m.react(sync.Like)

		case key.Matches(msg, m.keys.Dislike):
			return m, m.react(sync.Dislike)
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m Model) react(kind sync.ReactionKind) tea.Cmd {
	c, ok := m.Selected()
	if !ok || m.reactor == nil || m.user == nil {
		return nil
	}
	reactor, userID := m.reactor, m.user.ID
	feed := m.feed
	return func() tea.Msg {
		_, err := reactor.Toggle(context.Background(), c, userID, kind)
		if err == nil {
			// Committed reactions come back through the feed.
			feed.Reload(context.Background())
		}
		return reactedMsg{err: err}
	}
}

func (m *Model) setState(s sync.CommentState) {
	m.state = s
	if m.cursor >= len(s.Comments) {
		m.cursor = max(len(s.Comments)-1, 0)
	}
	m.render()
}

// Selected returns the focused comment.
func (m Model) Selected() (model.TaskComment, bool) {
	if m.cursor < 0 || m.cursor >= len(m.state.Comments) {
		return model.TaskComment{}, false
	}
	return m.state.Comments[m.cursor], true
}

// State returns the last rendered feed state.
func (m Model) State() sync.CommentState {
	return m.state
}

// Notice returns the last reaction error, if any.
func (m Model) Notice() string {
	if m.notice != "" {
		return m.notice
	}
	return m.state.Error
}

func (m *Model) render() {
	var (
		blocks []string
		line   int
		offset int
	)
	userID := ""
	if m.user != nil {
		userID = m.user.ID
	}
	now := time.Now()
	for i, c := range m.state.Comments {
		var status *sync.Reaction
		if m.reactor != nil {
			if r, ok := m.reactor.Status(c.ID); ok {
				status = &r
			}
		}
		block := RenderComment(c, userID, status, now)
		if i == m.cursor {
			offset = line
			block = theme.SelectedStyle.Render(block)
		} else {
			block = theme.RowStyle.Render(block)
		}
		blocks = append(blocks, block)
		line += lipgloss.Height(block)
	}
	m.viewport.SetContent(strings.Join(blocks, "\n"))
	if offset < m.viewport.YOffset || offset >= m.viewport.YOffset+m.viewport.Height {
		m.viewport.SetYOffset(offset)
	}
}

// RenderComment formats one comment with its author, age and reaction
// counters.
func RenderComment(c model.TaskComment, userID string, status *sync.Reaction, now time.Time) string {
	author := "…"
	if c.UserProfile != nil {
		author = c.UserProfile.DisplayName()
	}
	header := fmt.Sprintf("%s  %s",
		theme.AuthorStyle.Render(author),
		theme.HelpStyle.Render(inbox.RelativeTime(c.CreatedAt, now)))

	like, dislike := "▲", "▼"
	if slices.Contains(c.Likes, userID) {
		like = theme.PriorityStyle("low").Render(like)
	}
	if slices.Contains(c.Dislikes, userID) {
		dislike = theme.PriorityStyle("urgent").Render(dislike)
	}
	footer := fmt.Sprintf("%s %d  %s %d", like, len(c.Likes), dislike, len(c.Dislikes))
	if status != nil && status.State == sync.Pending {
		footer += "  " + theme.PendingStyle.Render("saving…")
	}

	body := c.Content
	if c.ParentCommentID != "" {
		body = theme.HelpStyle.Render("↳ reply") + "\n" + body
	}
	return lipgloss.JoinVertical(lipgloss.Left, header, body, footer, "")
}

// View renders the thread.
func (m Model) View() string {
	center := lipgloss.NewStyle().
		Width(m.width).
		Height(m.height).
		Align(lipgloss.Center, lipgloss.Center).
		Foreground(theme.ColorGray)

	switch {
	case m.state.Loading && len(m.state.Comments) == 0:
		return center.Render("Loading comments...")
	case m.state.Error != "" && len(m.state.Comments) == 0:
		return center.Foreground(theme.ColorRed).Render(m.state.Error)
	case len(m.state.Comments) == 0:
		return center.Render("No comments yet.")
	}
	return m.viewport.View()
}

// SetSize updates the thread view dimensions.
func (m *Model) SetSize(width, height int) {
	m.width = width
	m.height = height
	m.viewport.Width = width
	m.viewport.Height = height - 1
	m.render()
}
