package app

import (
	"github.com/charmbracelet/bubbles/key"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/ui"
	"github.com/nhle/taskhub/internal/ui/comments"
	"github.com/nhle/taskhub/internal/ui/detail"
	helpview "github.com/nhle/taskhub/internal/ui/help"
	"github.com/nhle/taskhub/internal/ui/inbox"
)

// ViewState represents the current active view in the application.
type ViewState int

const (
	ViewInbox ViewState = iota
	ViewDetail
	ViewComments
	ViewHelp
)

// Deps are the feeds and loaders the TUI renders.
type Deps struct {
	User      *model.User
	Inbox     inbox.Feed
	Details   detail.Loader
	Comments  comments.Feed
	Reactions comments.Reactor

	// Live reports whether the push channel is connected.
	Live bool
}

// Model is the root Bubble Tea model that manages view routing and
// layout.
type Model struct {
	currentView  ViewState
	previousView ViewState
	layout       ui.Layout
	keys         *keys.KeyMap
	live         bool
	user         *model.User
	inbox        inbox.Model
	detail       detail.Model
	comments     comments.Model
	helpView     helpview.Model
	threadOnly   bool
	startCmd     tea.Cmd
	ready        bool
}

// New creates the root model.
func New(d Deps) Model {
	k := keys.DefaultKeyMap()
	return Model{
		currentView: ViewInbox,
		keys:        k,
		live:        d.Live,
		user:        d.User,
		inbox:       inbox.New(d.Inbox, k, 80, 24),
		detail:      detail.New(d.Details, k, 80, 24),
		comments:    comments.New(d.Comments, d.Reactions, d.User, k, 80, 24),
		helpView:    helpview.New(k, 80, 24),
	}
}

// NewThread creates a root model that opens straight into the comment
// thread of taskID. Leaving the thread quits.
func NewThread(d Deps, taskID string) Model {
	m := New(d)
	m.currentView = ViewComments
	m.previousView = ViewComments
	m.threadOnly = true
	m.startCmd = m.comments.Open(taskID)
	return m
}

// Init starts listening for feed updates.
func (m Model) Init() tea.Cmd {
	if m.threadOnly {
		return m.startCmd
	}
	return m.inbox.Init()
}

// Update handles messages and dispatches to the active view.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.layout = ui.NewLayout(msg.Width, msg.Height)
		m.ready = true
		w, h := m.layout.ContentWidth(), m.layout.ContentHeight()
		m.inbox.SetSize(w, h)
		m.detail.SetSize(w, h)
		m.comments.SetSize(w, h)
		m.helpView.SetSize(w, h)
		return m, nil

	// Feed updates go to their view whichever view is active, so each
	// listener keeps re-arming.
	case inbox.StateMsg:
		var cmd tea.Cmd
		m.inbox, cmd = m.inbox.Update(msg)
		return m, cmd

	case comments.StateMsg:
		var cmd tea.Cmd
		m.comments, cmd = m.comments.Update(msg)
		return m, cmd

	case inbox.SelectedTaskMsg:
		m.currentView = ViewDetail
		return m, m.detail.Load(msg.TaskID)

	case detail.DetailLoadedMsg:
		var cmd tea.Cmd
		m.detail, cmd = m.detail.Update(msg)
		return m, cmd

	case detail.BackMsg:
		m.currentView = ViewInbox
		return m, nil

	case detail.OpenCommentsMsg:
		m.currentView = ViewComments
		return m, m.comments.Open(msg.TaskID)

	case comments.BackMsg:
		if m.threadOnly {
			return m.quit()
		}
		m.comments.Close()
		if m.detail.TaskID() == "" {
			m.currentView = ViewInbox
		} else {
			m.currentView = ViewDetail
		}
		return m, nil

	case tea.KeyMsg:
		switch {
		case msg.String() == "ctrl+c":
			return m.quit()

		case key.Matches(msg, m.keys.Quit):
			if m.currentView == ViewInbox || m.threadOnly {
				return m.quit()
			}

		case key.Matches(msg, m.keys.Help):
			if m.currentView == ViewHelp {
				m.currentView = m.previousView
				return m, nil
			}
			m.previousView = m.currentView
			m.currentView = ViewHelp
			return m, nil
		}
	}

	return m.updateActiveView(msg)
}

func (m Model) quit() (tea.Model, tea.Cmd) {
	m.comments.Close()
	return m, tea.Quit
}

// updateActiveView dispatches the message to the currently active view.
func (m Model) updateActiveView(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmd tea.Cmd

	switch m.currentView {
	case ViewInbox:
		m.inbox, cmd = m.inbox.Update(msg)
	case ViewDetail:
		m.detail, cmd = m.detail.Update(msg)
	case ViewComments:
		m.comments, cmd = m.comments.Update(msg)
	case ViewHelp:
		if km, ok := msg.(tea.KeyMsg); ok && key.Matches(km, m.keys.Back) {
			m.currentView = m.previousView
			return m, nil
		}
		m.helpView, cmd = m.helpView.Update(msg)
	}

	return m, cmd
}

// View renders the full terminal UI using the layout manager.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}

	header := m.layout.RenderHeader(m.title(), m.inbox.State().UnreadCount, m.connStatus())
	statusBar := m.layout.RenderStatusBar(m.keyHints(), m.errorText())
	return m.layout.RenderWithFrame(header, m.renderContent(), statusBar)
}

func (m Model) title() string {
	if m.user != nil && m.user.FirstName != "" {
		return "taskhub · " + m.user.FirstName
	}
	return "taskhub"
}

func (m Model) connStatus() string {
	if m.live {
		return "● live"
	}
	return "○ polling"
}

// renderContent returns the rendered string for the current active view.
func (m Model) renderContent() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.View()
	case ViewDetail:
		return m.detail.View()
	case ViewComments:
		return m.comments.View()
	case ViewHelp:
		return m.helpView.View()
	default:
		return ""
	}
}

// errorText returns the error of the active view, if any.
func (m Model) errorText() string {
	switch m.currentView {
	case ViewInbox:
		return m.inbox.State().Error
	case ViewComments:
		return m.comments.Notice()
	}
	return ""
}

// keyHints returns keyboard shortcut hints for the status bar.
func (m Model) keyHints() string {
	switch m.currentView {
	case ViewHelp:
		return "? close help | esc back"
	case ViewDetail:
		return m.helpView.Hints(keys.ScreenTask)
	case ViewComments:
		return m.helpView.Hints(keys.ScreenThread)
	default:
		return m.helpView.Hints(keys.ScreenInbox)
	}
}

// CurrentView reports the active view.
func (m Model) CurrentView() ViewState {
	return m.currentView
}
