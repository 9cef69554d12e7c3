package inbox

import (
	"context"
	"strings"
	gosync "sync"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/nhle/taskhub/internal/keys"
	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/sync"
)

type fakeFeed struct {
	mu      gosync.Mutex
	state   sync.NotificationState
	updates chan sync.NotificationState
	calls   []string
}

func (f *fakeFeed) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeFeed) Snapshot() sync.NotificationState       { return f.state }
func (f *fakeFeed) Updates() <-chan sync.NotificationState { return f.updates }
func (f *fakeFeed) Refresh(context.Context)                { f.record("refresh") }
func (f *fakeFeed) MarkAsRead(_ context.Context, id string) error {
	f.record("read " + id)
	return nil
}
func (f *fakeFeed) MarkAllAsRead(context.Context) error {
	f.record("read-all")
	return nil
}
func (f *fakeFeed) DeleteNotification(_ context.Context, id string) error {
	f.record("delete " + id)
	return nil
}

func newFeed() *fakeFeed {
	return &fakeFeed{
		updates: make(chan sync.NotificationState, 1),
		state: sync.NotificationState{
			UnreadCount: 1,
			Notifications: []model.Notification{
				{ID: "n1", Title: "Assigned", TaskID: "T1"},
				{ID: "n2", Title: "Announcement", Read: true},
			},
		},
	}
}

func runes(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

// drain runs cmd and every command it batches, collecting messages.
func drain(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		var out []tea.Msg
		for _, c := range batch {
			out = append(out, drain(c)...)
		}
		return out
	}
	return []tea.Msg{msg}
}

func TestEnterMarksReadAndOpensTask(t *testing.T) {
	f := newFeed()
	m := New(f, keys.DefaultKeyMap(), 80, 20)

	_, cmd := m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	msgs := drain(cmd)

	var opened string
	for _, msg := range msgs {
		if sel, ok := msg.(SelectedTaskMsg); ok {
			opened = sel.TaskID
		}
	}
	if opened != "T1" {
		t.Errorf("expected T1 to open, got %q", opened)
	}
	if len(f.calls) != 1 || f.calls[0] != "read n1" {
		t.Errorf("expected n1 marked read, got %v", f.calls)
	}
}

func TestReadNotificationIsNotMarkedAgain(t *testing.T) {
	f := newFeed()
	m := New(f, keys.DefaultKeyMap(), 80, 20)

	m, _ = m.Update(tea.KeyMsg{Type: tea.KeyDown})
	if n, _ := m.Selected(); n.ID != "n2" {
		t.Fatalf("expected n2 selected, got %s", n.ID)
	}
	_, cmd := m.Update(runes("m"))
	drain(cmd)
	if len(f.calls) != 0 {
		t.Errorf("expected no call, got %v", f.calls)
	}
}

func TestDeleteAndMarkAll(t *testing.T) {
	f := newFeed()
	m := New(f, keys.DefaultKeyMap(), 80, 20)

	_, cmd := m.Update(runes("d"))
	drain(cmd)
	_, cmd = m.Update(runes("M"))
	drain(cmd)

	want := []string{"delete n1", "read-all"}
	if strings.Join(f.calls, ",") != strings.Join(want, ",") {
		t.Errorf("expected %v, got %v", want, f.calls)
	}
}

func TestStateMsgReplacesListAndRearms(t *testing.T) {
	f := newFeed()
	m := New(f, keys.DefaultKeyMap(), 80, 20)

	m, cmd := m.Update(StateMsg{State: sync.NotificationState{UnreadCount: 0}})
	if len(m.State().Notifications) != 0 {
		t.Error("state was not replaced")
	}
	if !strings.Contains(m.View(), "No notifications.") {
		t.Errorf("expected empty state, got %q", m.View())
	}
	if cmd == nil {
		t.Fatal("expected the listener to be re-armed")
	}

	f.updates <- sync.NotificationState{UnreadCount: 4}
	if msg, ok := cmd().(StateMsg); !ok || msg.State.UnreadCount != 4 {
		t.Errorf("unexpected message %#v", msg)
	}
}

func TestRelativeTime(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	tests := []struct {
		ago  time.Duration
		want string
	}{
		{10 * time.Second, "just now"},
		{5 * time.Minute, "5m ago"},
		{3 * time.Hour, "3h ago"},
		{2 * 24 * time.Hour, "2d ago"},
		{15 * 24 * time.Hour, "2w ago"},
	}
	for _, tt := range tests {
		if got := RelativeTime(now.Add(-tt.ago), now); got != tt.want {
			t.Errorf("RelativeTime(-%v) = %q, want %q", tt.ago, got, tt.want)
		}
	}
	if RelativeTime(time.Time{}, now) != "" {
		t.Error("zero time should render empty")
	}
}

func TestRenderRowMarksUnread(t *testing.T) {
	now := time.Now()
	unread := renderRow(model.Notification{Title: "Hello", Category: model.CategoryTask, CreatedAt: now}, false, now)
	read := renderRow(model.Notification{Title: "Hello", Read: true, CreatedAt: now}, false, now)

	if !strings.Contains(unread, "●") || strings.Contains(read, "●") {
		t.Errorf("unread marker wrong:\n%q\n%q", unread, read)
	}
	if !strings.Contains(unread, "TASK") || !strings.Contains(read, "GENE") {
		t.Errorf("category labels missing:\n%q\n%q", unread, read)
	}
}
