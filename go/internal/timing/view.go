package timing

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/racetime/go/internal/models"
)

// RecordView is the wire form of a stored time record.
type RecordView struct {
	ID         uuid.UUID `json:"id"`
	TeamID     int64     `json:"teamId"`
	TeamName   string    `json:"teamName,omitempty"`
	TeamNumber int       `json:"teamNumber,omitempty"`
	ElapsedMs  int64     `json:"elapsedMs"`
	Hours      int64     `json:"h"`
	Minutes    int64     `json:"m"`
	Seconds    int64     `json:"s"`
	Ms         int64     `json:"ms"`
	Formatted  string    `json:"formatted"`
	Timestamp  time.Time `json:"timestamp"`
	Duplicate  bool      `json:"duplicate,omitempty"`
}

// NewRecordView renders rec; team may be nil.
func NewRecordView(rec models.TimeRecord, team *models.Team) RecordView {
	v := RecordView{
		ID:        rec.ID,
		TeamID:    rec.TeamID,
		ElapsedMs: rec.ElapsedMs,
		Hours:     rec.Hours,
		Minutes:   rec.Minutes,
		Seconds:   rec.Seconds,
		Ms:        rec.Milliseconds,
		Formatted: Decompose(rec.ElapsedMs).String(),
		Timestamp: rec.Timestamp,
	}
	if team != nil {
		v.TeamName = team.Name
		v.TeamNumber = team.Number
	}
	return v
}

func (r Receipt) View() RecordView {
	v := NewRecordView(r.Record, &r.Team)
	v.Duplicate = r.Duplicate
	return v
}

// TeamView is the wire form of a team assigned to a judge.
type TeamView struct {
	ID       int64               `json:"id"`
	Name     string              `json:"name"`
	Number   int                 `json:"number"`
	Category models.TeamCategory `json:"category"`
}

func NewTeamView(t models.Team) TeamView {
	return TeamView{ID: t.ID, Name: t.Name, Number: t.Number, Category: t.Category}
}
