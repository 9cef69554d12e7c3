package app

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/sync"
	"github.com/nhle/taskhub/internal/ui/comments"
	"github.com/nhle/taskhub/internal/ui/detail"
	"github.com/nhle/taskhub/internal/ui/inbox"
)

type stubInbox struct {
	state   sync.NotificationState
	updates chan sync.NotificationState
}

func (s *stubInbox) Snapshot() sync.NotificationState       { return s.state }
func (s *stubInbox) Updates() <-chan sync.NotificationState { return s.updates }
func (s *stubInbox) Refresh(context.Context)                {}
func (s *stubInbox) MarkAsRead(context.Context, string) error {
	return nil
}
func (s *stubInbox) MarkAllAsRead(context.Context) error              { return nil }
func (s *stubInbox) DeleteNotification(context.Context, string) error { return nil }

type stubLoader struct{}

func (stubLoader) GetTaskDetails(_ context.Context, taskID string) (*model.TaskDetails, error) {
	return &model.TaskDetails{Task: model.Task{ID: taskID, Title: "Write report", Status: model.StatusTodo}}, nil
}

type stubComments struct {
	started []string
	stopped int
	updates chan sync.CommentState
}

func (s *stubComments) Start(_ context.Context, taskID string, _ *model.User) error {
	s.started = append(s.started, taskID)
	return nil
}
func (s *stubComments) Stop()                             { s.stopped++ }
func (s *stubComments) Reload(context.Context)            {}
func (s *stubComments) Snapshot() sync.CommentState       { return sync.CommentState{} }
func (s *stubComments) Updates() <-chan sync.CommentState { return s.updates }

func newTestModel() (Model, *stubComments) {
	c := &stubComments{updates: make(chan sync.CommentState, 1)}
	m := New(Deps{
		User: &model.User{ID: "u1", FirstName: "Ada"},
		Inbox: &stubInbox{
			state: sync.NotificationState{
				UnreadCount: 3,
				Notifications: []model.Notification{
					{ID: "n1", Title: "Assigned to you", TaskID: "T1"},
				},
			},
			updates: make(chan sync.NotificationState, 1),
		},
		Details:  stubLoader{},
		Comments: c,
	})
	next, _ := m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	return next.(Model), c
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func TestSelectingNotificationOpensTaskDetail(t *testing.T) {
	m, _ := newTestModel()

	m, cmd := update(t, m, inbox.SelectedTaskMsg{TaskID: "T1"})
	if m.CurrentView() != ViewDetail {
		t.Fatalf("expected detail view, got %v", m.CurrentView())
	}
	if cmd == nil {
		t.Fatal("expected a load command")
	}

	m, _ = update(t, m, cmd())
	if !strings.Contains(m.View(), "Write report") {
		t.Error("detail view does not show the loaded task")
	}

	m, _ = update(t, m, detail.BackMsg{})
	if m.CurrentView() != ViewInbox {
		t.Errorf("expected inbox after back, got %v", m.CurrentView())
	}
}

func TestCommentsOpenFromDetailAndStopOnBack(t *testing.T) {
	m, c := newTestModel()
	m, _ = update(t, m, inbox.SelectedTaskMsg{TaskID: "T1"})

	m, _ = update(t, m, detail.OpenCommentsMsg{TaskID: "T1"})
	if m.CurrentView() != ViewComments {
		t.Fatalf("expected comments view, got %v", m.CurrentView())
	}
	if len(c.started) != 1 || c.started[0] != "T1" {
		t.Errorf("expected feed started on T1, got %v", c.started)
	}

	m, _ = update(t, m, comments.BackMsg{})
	if m.CurrentView() != ViewDetail {
		t.Errorf("expected detail after leaving comments, got %v", m.CurrentView())
	}
	if c.stopped == 0 {
		t.Error("comment feed was not stopped")
	}
}

func TestHelpToggle(t *testing.T) {
	m, _ := newTestModel()
	help := tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'?'}}

	m, _ = update(t, m, help)
	if m.CurrentView() != ViewHelp {
		t.Fatalf("expected help view, got %v", m.CurrentView())
	}
	m, _ = update(t, m, help)
	if m.CurrentView() != ViewInbox {
		t.Errorf("expected inbox after closing help, got %v", m.CurrentView())
	}
}

func TestHeaderShowsUnreadBadge(t *testing.T) {
	m, _ := newTestModel()
	view := m.View()
	if !strings.Contains(view, "taskhub · Ada (3)") {
		t.Errorf("header missing unread badge:\n%s", view)
	}
	if !strings.Contains(view, "polling") {
		t.Error("header missing connection status")
	}
}

func TestThreadModeQuitsOnBack(t *testing.T) {
	c := &stubComments{updates: make(chan sync.CommentState, 1)}
	m := NewThread(Deps{Comments: c}, "T9")
	if m.CurrentView() != ViewComments || len(c.started) != 1 {
		t.Fatalf("expected thread opened on T9, view=%v started=%v", m.CurrentView(), c.started)
	}
	if m.Init() == nil {
		t.Error("expected Init to listen for comment updates")
	}

	_, cmd := update(t, m, comments.BackMsg{})
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Error("leaving the thread should quit")
	}
}
