package model

import "time"

// Project is a grouping container for tasks inside a facility.
type Project struct {
	ID          string    `json:"id"`
	FacilityID  string    `json:"facilityId"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	Color       string    `json:"color,omitempty"`
	Archived    bool      `json:"archived"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}
