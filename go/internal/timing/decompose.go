package timing

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/racetime/go/internal/models"
)

const (
	msPerSecond = 1_000
	msPerMinute = 60_000
	msPerHour   = 3_600_000
)

// Split is an elapsed time broken into clock components.
type Split struct {
	Hours        int64
	Minutes      int64
	Seconds      int64
	Milliseconds int64
}

// Decompose splits a non-negative millisecond count. Hours are unbounded.
func Decompose(elapsedMs int64) Split {
	return Split{
		Hours:        elapsedMs / msPerHour,
		Minutes:      (elapsedMs / msPerMinute) % 60,
		Seconds:      (elapsedMs / msPerSecond) % 60,
		Milliseconds: elapsedMs % msPerSecond,
	}
}

// ElapsedMs recombines the components.
func (s Split) ElapsedMs() int64 {
	return s.Hours*msPerHour + s.Minutes*msPerMinute + s.Seconds*msPerSecond + s.Milliseconds
}

func (s Split) String() string {
	return fmt.Sprintf("%d:%02d:%02d.%03d", s.Hours, s.Minutes, s.Seconds, s.Milliseconds)
}

// NewTimeRecord builds a record whose split fields are derived from elapsedMs.
func NewTimeRecord(id uuid.UUID, teamID, elapsedMs int64, timestamp, createdAt time.Time) models.TimeRecord {
	split := Decompose(elapsedMs)
	return models.TimeRecord{
		ID:           id,
		TeamID:       teamID,
		ElapsedMs:    elapsedMs,
		Hours:        split.Hours,
		Minutes:      split.Minutes,
		Seconds:      split.Seconds,
		Milliseconds: split.Milliseconds,
		Timestamp:    timestamp,
		CreatedAt:    createdAt,
	}
}
