package store

import (
	"context"
	"errors"
	"time"

	"github.com/nhle/taskhub/internal/model"
)

// ErrNotFound is returned when the mirror holds no data for a key.
var ErrNotFound = errors.New("not found in local store")

// NotificationSnapshot is the last committed notification state of a user.
type NotificationSnapshot struct {
	UserID        string
	Notifications []model.Notification
	UnreadCount   int
	SyncedAt      time.Time
}

// Mirror keeps the last known server state on disk so the CLI can show it
// without a connection.
type Mirror interface {
	// === Notifications ===

	SaveNotifications(ctx context.Context, userID string, list []model.Notification, unread int) error
	LoadNotifications(ctx context.Context, userID string) (*NotificationSnapshot, error)

	// === Account ===

	SaveUser(ctx context.Context, u model.User) error
	LastUser(ctx context.Context) (*model.User, error)
	ForgetUser(ctx context.Context, userID string) error

	// === Profiles ===

	Get(ctx context.Context, userID string) (model.Profile, bool, error)
	GetMany(ctx context.Context, userIDs []string) (map[string]model.Profile, error)
	Set(ctx context.Context, userID string, p model.Profile) error
	Clear(ctx context.Context) error

	Close() error
}
