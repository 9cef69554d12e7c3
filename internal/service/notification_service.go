package service

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nhle/taskhub/internal/api"
	"github.com/nhle/taskhub/internal/model"
)

// DefaultNotificationLimit is how many recent notifications a feed loads.
const DefaultNotificationLimit = 20

// NotificationService wraps the /notifications resource family.
type NotificationService struct {
	client *api.Client
}

// NewNotificationService creates a NotificationService.
func NewNotificationService(client *api.Client) *NotificationService {
	return &NotificationService{client: client}
}

// List returns up to limit of the most recent notifications.
func (s *NotificationService) List(ctx context.Context, limit int) ([]model.Notification, error) {
	if limit <= 0 {
		limit = DefaultNotificationLimit
	}
	page, err := api.GetList[model.Notification](ctx, s.client, "/notifications",
		api.ListOptions{Limit: limit}, nil)
	if err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return page.Items, nil
}

// UnreadCount returns the number of unread notifications.
func (s *NotificationService) UnreadCount(ctx context.Context) (int, error) {
	var body struct {
		Unread *int `json:"unread"`
		Count  *int `json:"count"`
	}
	if err := s.client.Get(ctx, "/notifications/unread-count", nil, &body); err != nil {
		return 0, fmt.Errorf("fetching unread count: %w", err)
	}
	switch {
	case body.Unread != nil:
		return *body.Unread, nil
	case body.Count != nil:
		return *body.Count, nil
	}
	return 0, nil
}

// MarkRead marks one notification as read.
func (s *NotificationService) MarkRead(ctx context.Context, id string) error {
	if err := s.client.Patch(ctx, notificationPath(id)+"/read", nil, nil); err != nil {
		return fmt.Errorf("marking notification %s read: %w", id, err)
	}
	return nil
}

// MarkAllRead marks every notification of the current user as read.
func (s *NotificationService) MarkAllRead(ctx context.Context) error {
	if err := s.client.Patch(ctx, "/notifications/read-all", nil, nil); err != nil {
		return fmt.Errorf("marking all notifications read: %w", err)
	}
	return nil
}

// Delete removes a notification.
func (s *NotificationService) Delete(ctx context.Context, id string) error {
	if err := s.client.Delete(ctx, notificationPath(id), nil); err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return nil
}

func notificationPath(id string) string {
	return "/notifications/" + url.PathEscape(id)
}
