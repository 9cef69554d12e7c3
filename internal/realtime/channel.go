// Package realtime subscribes to the push channel of the managed realtime
// database. Every delivery is a full snapshot of the subscribed path.
package realtime

import (
	"context"
	"sync"
	"sync/atomic"

	"github.com/goccy/go-json"
)

// Well-known subscription paths.
const (
	PathTaskComments = "taskComments"
)

// UserNotificationsPath is the per-user notification list.
func UserNotificationsPath(userID string) string {
	return "userNotifications/" + userID
}

// UserNotificationCountsPath is the per-user unread counter.
func UserNotificationCountsPath(userID string) string {
	return "userNotificationCounts/" + userID
}

// Snapshot is the full current value of a path. Exists is false when the
// path holds no data.
type Snapshot struct {
	Path   string
	Data   json.RawMessage
	Exists bool
}

// Decode unmarshals the snapshot data into v.
func (s Snapshot) Decode(v any) error {
	if !s.Exists {
		return nil
	}
	return json.Unmarshal(s.Data, v)
}

// Handler receives snapshots. Calls for one subscription are serialized
// and arrive in transport order.
type Handler func(Snapshot)

// Subscription is a live listener on one path.
type Subscription interface {
	// Close detaches the listener. No handler call starts after Close
	// returns.
	Close()
}

// Channel opens subscriptions on the push channel.
type Channel interface {
	Subscribe(ctx context.Context, path string, h Handler) (Subscription, error)
}

// listener serializes deliveries for one subscription and drops them once
// closed.
type listener struct {
	path    string
	handler Handler
	mu      sync.Mutex
	closed  atomic.Bool
}

func (l *listener) deliver(s Snapshot) {
	if l.closed.Load() {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed.Load() {
		return
	}
	l.handler(s)
}

// makeSnapshot builds a Snapshot, treating JSON null as absent.
func makeSnapshot(path string, data json.RawMessage) Snapshot {
	exists := len(data) > 0 && string(data) != "null"
	return Snapshot{Path: path, Data: data, Exists: exists}
}
