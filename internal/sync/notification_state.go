package sync

import (
	"sort"

	"github.com/nhle/taskhub/internal/model"
)

// NotificationState is what a NotificationFeed presents: the newest
// notifications first and a single unread counter.
type NotificationState struct {
	UserID        string
	Notifications []model.Notification
	UnreadCount   int
	Loading       bool
	Error         string
}

// Clone returns a copy that shares no slices with s.
func (s NotificationState) Clone() NotificationState {
	out := s
	out.Notifications = append([]model.Notification(nil), s.Notifications...)
	return out
}

// NotificationEvent is an input to reduceNotifications.
type NotificationEvent interface {
	notificationEvent()
}

// RestSnapshotReceived carries a completed REST fetch of list and counter.
type RestSnapshotReceived struct {
	Notifications []model.Notification
	Unread        int
}

// PushSnapshotReceived carries the full list from the push channel.
type PushSnapshotReceived struct {
	Notifications []model.Notification
}

// CountReceived carries the unread counter from the push channel.
type CountReceived struct {
	Unread int
}

// Marked records a notification the server accepted as read.
type Marked struct {
	ID string
}

// AllMarked records that the server marked every notification read.
type AllMarked struct{}

// Deleted records a notification the server deleted.
type Deleted struct {
	ID string
}

// FetchFailed records a failed REST fetch.
type FetchFailed struct {
	Message string
}

// MutationFailed records a rejected mark or delete. Local state is left
// as it was.
type MutationFailed struct {
	Message string
}

func (RestSnapshotReceived) notificationEvent() {}
func (PushSnapshotReceived) notificationEvent() {}
func (CountReceived) notificationEvent()        {}
func (Marked) notificationEvent()               {}
func (AllMarked) notificationEvent()            {}
func (Deleted) notificationEvent()              {}
func (FetchFailed) notificationEvent()          {}
func (MutationFailed) notificationEvent()       {}

// reduceNotifications folds one event into s. REST results are the
// baseline; a push replaces the list only when it carries notifications.
// Mutations adjust the counter by their exact delta and never below zero.
func reduceNotifications(s NotificationState, ev NotificationEvent) NotificationState {
	switch ev := ev.(type) {
	case RestSnapshotReceived:
		s.Notifications = sortNewestFirst(ev.Notifications)
		s.UnreadCount = max(ev.Unread, 0)
		s.Loading = false
		s.Error = ""

	case PushSnapshotReceived:
		if len(ev.Notifications) > 0 {
			s.Notifications = sortNewestFirst(ev.Notifications)
			s.Loading = false
		}

	case CountReceived:
		s.UnreadCount = max(ev.Unread, 0)

	case Marked:
		list := append([]model.Notification(nil), s.Notifications...)
		for i := range list {
			if list[i].ID == ev.ID && !list[i].Read {
				list[i].Read = true
				s.UnreadCount = max(s.UnreadCount-1, 0)
				break
			}
		}
		s.Notifications = list

	case AllMarked:
		list := append([]model.Notification(nil), s.Notifications...)
		for i := range list {
			list[i].Read = true
		}
		s.Notifications = list
		s.UnreadCount = 0

	case Deleted:
		list := make([]model.Notification, 0, len(s.Notifications))
		for _, n := range s.Notifications {
			if n.ID == ev.ID {
				if !n.Read {
					s.UnreadCount = max(s.UnreadCount-1, 0)
				}
				continue
			}
			list = append(list, n)
		}
		s.Notifications = list

	case FetchFailed:
		s.Loading = false
		s.Error = ev.Message

	case MutationFailed:
		s.Error = ev.Message
	}
	return s
}

func sortNewestFirst(in []model.Notification) []model.Notification {
	out := append([]model.Notification(nil), in...)
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}
