package models

import (
	"time"

	"github.com/google/uuid"
)

// TimeRecord is one elapsed-time measurement for a team. ElapsedMs is
// canonical; the split fields are always derived from it.
type TimeRecord struct {
	ID           uuid.UUID `json:"id"`
	TeamID       int64     `json:"team_id"`
	ElapsedMs    int64     `json:"elapsed_ms"`
	Hours        int64     `json:"hours"`
	Minutes      int64     `json:"minutes"`
	Seconds      int64     `json:"seconds"`
	Milliseconds int64     `json:"milliseconds"`
	Timestamp    time.Time `json:"timestamp"`
	CreatedAt    time.Time `json:"created_at"`
}
