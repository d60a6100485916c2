package models

import "time"

// Competition is the stored row behind a competition lifecycle.
// Running implies Active; the schema enforces it with a check constraint.
type Competition struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	ScheduledAt *time.Time `json:"scheduled_at,omitempty"`
	Active      bool       `json:"active"`
	Running     bool       `json:"running"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	// bumped by the database on every update
	Version int64 `json:"version"`
}
