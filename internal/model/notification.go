package model

import "time"

// NotificationType identifies the domain event that produced a notification.
type NotificationType string

const (
	NotificationTaskAssigned       NotificationType = "task_assigned"
	NotificationTaskUpdated        NotificationType = "task_updated"
	NotificationProjectUpdated     NotificationType = "project_updated"
	NotificationFacilityInvite     NotificationType = "facility_invite"
	NotificationCommentMention     NotificationType = "comment_mention"
	NotificationDueDateReminder    NotificationType = "due_date_reminder"
	NotificationSystemAnnouncement NotificationType = "system_announcement"
)

// NotificationPriority ranks how prominently a notification is surfaced.
type NotificationPriority string

const (
	PriorityLow    NotificationPriority = "low"
	PriorityNormal NotificationPriority = "normal"
	PriorityHigh   NotificationPriority = "high"
	PriorityUrgent NotificationPriority = "urgent"
)

// NotificationCategory groups notifications for filtering.
type NotificationCategory string

const (
	CategoryTask          NotificationCategory = "task"
	CategoryProject       NotificationCategory = "project"
	CategoryFacility      NotificationCategory = "facility"
	CategorySystem        NotificationCategory = "system"
	CategoryCommunication NotificationCategory = "communication"
	CategoryGeneral       NotificationCategory = "general"
)

// Notification is an alert delivered to a single user. The server owns it;
// clients hold a cached projection that they may toggle read or delete.
type Notification struct {
	ID       string               `json:"id"`
	UserID   string               `json:"userId"`
	Type     NotificationType     `json:"type"`
	Title    string               `json:"title"`
	Message  string               `json:"message"`
	Data     map[string]any       `json:"data,omitempty"`
	Read     bool                 `json:"read"`
	Priority NotificationPriority `json:"priority"`
	Category NotificationCategory `json:"category"`

	// Optional links back to the entity the notification is about.
	SourceID   string `json:"sourceId,omitempty"`
	FacilityID string `json:"facilityId,omitempty"`
	ProjectID  string `json:"projectId,omitempty"`
	TaskID     string `json:"taskId,omitempty"`
	ActionURL  string `json:"actionUrl,omitempty"`

	ExpiresAt *time.Time `json:"expiresAt,omitempty"`
	CreatedAt time.Time  `json:"createdAt"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// IsExpired reports whether the notification has an expiry in the past.
func (n Notification) IsExpired(now time.Time) bool {
	return n.ExpiresAt != nil && n.ExpiresAt.Before(now)
}

// NotificationCounts is the payload of the per-user unread counter.
type NotificationCounts struct {
	Unread int `json:"unread"`
	Total  int `json:"total,omitempty"`
}
