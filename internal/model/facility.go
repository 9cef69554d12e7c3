package model

import "time"

// Share roles granted on a facility.
const (
	ShareRoleViewer = "viewer"
	ShareRoleEditor = "editor"
	ShareRoleAdmin  = "admin"
)

// Facility is the top-level organizational unit that owns projects.
type Facility struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	OwnerID     string    `json:"ownerId"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// FacilityShare grants another user access to a facility.
type FacilityShare struct {
	ID         string    `json:"id"`
	FacilityID string    `json:"facilityId"`
	UserID     string    `json:"userId,omitempty"`
	Email      string    `json:"email"`
	Role       string    `json:"role"`
	Accepted   bool      `json:"accepted"`
	CreatedAt  time.Time `json:"createdAt"`
}
