package model

import "time"

// Profile is the display identity attached to comments. It is a
// denormalized projection of a user, never written back to the server.
type Profile struct {
	FirstName      string `json:"firstName"`
	LastName       string `json:"lastName"`
	ProfilePicture string `json:"profilePicture,omitempty"`
}

// UnknownProfile is the placeholder used when a creator cannot be resolved.
func UnknownProfile() Profile {
	return Profile{FirstName: "Unknown"}
}

// IsUnknown reports whether p is the unresolved placeholder.
func (p Profile) IsUnknown() bool {
	return p.FirstName == "Unknown" && p.LastName == "" && p.ProfilePicture == ""
}

// DisplayName joins first and last name.
func (p Profile) DisplayName() string {
	if p.LastName == "" {
		return p.FirstName
	}
	return p.FirstName + " " + p.LastName
}

// TaskComment is a single comment on a task, optionally threaded under
// another comment.
type TaskComment struct {
	ID              string         `json:"id"`
	TaskID          string         `json:"taskId,omitempty"`
	Content         string         `json:"content"`
	CreatorID       string         `json:"creatorId"`
	ParentCommentID string         `json:"parentCommentId,omitempty"`
	Likes           []string       `json:"likes"`
	Dislikes        []string       `json:"dislikes"`
	Formatting      map[string]any `json:"formatting,omitempty"`
	CreatedAt       time.Time      `json:"createdAt"`
	UpdatedAt       time.Time      `json:"updatedAt"`

	// UserProfile is populated client-side from the profile cache.
	UserProfile *Profile `json:"userProfile,omitempty"`
}

// Clone returns a copy of c whose slices and profile are not shared.
func (c TaskComment) Clone() TaskComment {
	out := c
	out.Likes = append([]string(nil), c.Likes...)
	out.Dislikes = append([]string(nil), c.Dislikes...)
	if c.UserProfile != nil {
		p := *c.UserProfile
		out.UserProfile = &p
	}
	return out
}
