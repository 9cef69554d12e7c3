package store_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/nhle/taskhub/internal/model"
	"github.com/nhle/taskhub/internal/store"
	"github.com/nhle/taskhub/tests/testutil"
)

func notifications(n int) []model.Notification {
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	out := make([]model.Notification, n)
	for i := range out {
		out[i] = model.Notification{
			ID:        fmt.Sprintf("n%d", i),
			UserID:    "u1",
			Type:      model.NotificationCommentMention,
			Title:     fmt.Sprintf("Mention %d", i),
			Read:      i%2 == 0,
			Priority:  model.PriorityHigh,
			Category:  model.CategoryCommunication,
			TaskID:    "T1",
			CreatedAt: base.Add(-time.Duration(i) * time.Hour),
		}
	}
	return out
}

func TestSaveAndLoadNotifications(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if err := s.SaveNotifications(ctx, "u1", notifications(3), 1); err != nil {
		t.Fatalf("SaveNotifications: %v", err)
	}

	snap, err := s.LoadNotifications(ctx, "u1")
	if err != nil {
		t.Fatalf("LoadNotifications: %v", err)
	}
	if snap.UnreadCount != 1 || len(snap.Notifications) != 3 {
		t.Fatalf("unexpected snapshot: %d unread, %d items", snap.UnreadCount, len(snap.Notifications))
	}
	for i, n := range snap.Notifications {
		if n.ID != fmt.Sprintf("n%d", i) {
			t.Errorf("order not preserved at %d: %s", i, n.ID)
		}
	}
	if snap.Notifications[0].TaskID != "T1" || snap.Notifications[0].Priority != model.PriorityHigh {
		t.Errorf("payload not round-tripped: %+v", snap.Notifications[0])
	}
	if snap.SyncedAt.IsZero() {
		t.Error("expected sync time")
	}
}

func TestSaveNotificationsReplacesPreviousList(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	_ = s.SaveNotifications(ctx, "u1", notifications(5), 3)
	_ = s.SaveNotifications(ctx, "u2", notifications(2), 2)
	if err := s.SaveNotifications(ctx, "u1", notifications(1), 0); err != nil {
		t.Fatal(err)
	}

	snap, err := s.LoadNotifications(ctx, "u1")
	if err != nil {
		t.Fatal(err)
	}
	if len(snap.Notifications) != 1 || snap.UnreadCount != 0 {
		t.Errorf("expected replaced list, got %d items, %d unread", len(snap.Notifications), snap.UnreadCount)
	}

	other, err := s.LoadNotifications(ctx, "u2")
	if err != nil {
		t.Fatal(err)
	}
	if len(other.Notifications) != 2 {
		t.Errorf("other user's list changed: %d", len(other.Notifications))
	}
}

func TestLoadNotificationsUnknownUser(t *testing.T) {
	s := testutil.NewTestStore(t)
	if _, err := s.LoadNotifications(context.Background(), "nobody"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestLastUserAndForget(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, err := s.LastUser(ctx); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	_ = s.SaveUser(ctx, model.User{ID: "u1", Email: "a@example.com", FirstName: "Ada"})
	time.Sleep(2 * time.Millisecond)
	_ = s.SaveUser(ctx, model.User{ID: "u2", Email: "b@example.com", FirstName: "Bo"})

	u, err := s.LastUser(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if u.ID != "u2" || u.FirstName != "Bo" {
		t.Errorf("expected u2, got %+v", u)
	}

	_ = s.SaveNotifications(ctx, "u2", notifications(2), 1)
	if err := s.ForgetUser(ctx, "u2"); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadNotifications(ctx, "u2"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("notifications survived ForgetUser: %v", err)
	}
	u, err = s.LastUser(ctx)
	if err != nil || u.ID != "u1" {
		t.Errorf("expected u1 after forgetting u2, got %+v (%v)", u, err)
	}
}

func TestProfileCache(t *testing.T) {
	s := testutil.NewTestStore(t)
	ctx := context.Background()

	if _, ok, err := s.Get(ctx, "u1"); ok || err != nil {
		t.Fatalf("expected miss, got ok=%v err=%v", ok, err)
	}

	_ = s.Set(ctx, "u1", model.Profile{FirstName: "Ada", LastName: "Lovelace"})
	_ = s.Set(ctx, "u2", model.Profile{FirstName: "Bo", ProfilePicture: "https://cdn.example.com/bo.png"})
	_ = s.Set(ctx, "u1", model.Profile{FirstName: "Ada", LastName: "King"})

	got, err := s.GetMany(ctx, []string{"u1", "u2", "u3"})
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 profiles, got %d", len(got))
	}
	if got["u1"].LastName != "King" {
		t.Errorf("Set should overwrite, got %+v", got["u1"])
	}
	if got["u2"].ProfilePicture == "" {
		t.Error("profile picture not stored")
	}

	if err := s.Clear(ctx); err != nil {
		t.Fatal(err)
	}
	if got, _ := s.GetMany(ctx, []string{"u1", "u2"}); len(got) != 0 {
		t.Errorf("expected empty cache after Clear, got %d", len(got))
	}
}

func TestMigrationsAreIdempotent(t *testing.T) {
	path := t.TempDir() + "/mirror.db"
	s, err := store.NewSQLiteStore(path)
	if err != nil {
		t.Fatal(err)
	}
	_ = s.SaveUser(context.Background(), model.User{ID: "u1"})
	_ = s.Close()

	s, err = store.NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopening: %v", err)
	}
	defer s.Close()
	if u, err := s.LastUser(context.Background()); err != nil || u.ID != "u1" {
		t.Errorf("data lost across reopen: %+v (%v)", u, err)
	}
}

var _ store.Mirror = (*store.SQLiteStore)(nil)
