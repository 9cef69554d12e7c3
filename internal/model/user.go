package model

import "time"

// User is the authenticated account returned by the auth endpoints.
type User struct {
	ID             string    `json:"id"`
	Email          string    `json:"email"`
	FirstName      string    `json:"firstName"`
	LastName       string    `json:"lastName"`
	ProfilePicture string    `json:"profilePicture,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// Profile projects the user onto the display identity used by comments.
func (u User) Profile() Profile {
	return Profile{
		FirstName:      u.FirstName,
		LastName:       u.LastName,
		ProfilePicture: u.ProfilePicture,
	}
}

// Settings holds per-user preferences stored server-side.
type Settings struct {
	Theme              string `json:"theme"`
	Language           string `json:"language,omitempty"`
	EmailNotifications bool   `json:"emailNotifications"`
	PushNotifications  bool   `json:"pushNotifications"`
	DefaultFacilityID  string `json:"defaultFacilityId,omitempty"`
	NotificationDigest string `json:"notificationDigest,omitempty"`
}

// Pagination describes the page returned by a list endpoint.
type Pagination struct {
	Page  int `json:"page"`
	Limit int `json:"limit"`
	Total int `json:"total"`
	Pages int `json:"pages"`
}
