package models

import "time"

// Judge is an authenticated operator bound to a single competition.
type Judge struct {
	ID            int64     `json:"id"`
	CompetitionID int64     `json:"competition_id"`
	Username      string    `json:"username"`
	PasswordHash  string    `json:"-"`
	FirstName     string    `json:"first_name"`
	LastName      string    `json:"last_name"`
	Email         string    `json:"email"`
	Active        bool      `json:"active"`
	CreatedAt     time.Time `json:"created_at"`
}

// FullName returns the judge's display name.
func (j Judge) FullName() string {
	switch {
	case j.FirstName == "" && j.LastName == "":
		return j.Username
	case j.LastName == "":
		return j.FirstName
	case j.FirstName == "":
		return j.LastName
	}
	return j.FirstName + " " + j.LastName
}
