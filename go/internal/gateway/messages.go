package gateway

import (
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/timing"
)

// Message types on the judge connection.
const (
	TypeConnectionEstablished = "connection_established"
	TypeCompetitionStarted    = "competition_started"
	TypeCompetitionStopped    = "competition_stopped"
	TypeSubmitTime            = "submit_time"
	TypeTimeRecorded          = "time_recorded"
	TypePing                  = "ping"
	TypePong                  = "pong"
	TypeError                 = "error"
)

// Event is a server-initiated message carrying a competition snapshot.
type Event struct {
	Type        string           `json:"type"`
	Message     string           `json:"message"`
	Competition competition.View `json:"competition"`
}

func establishedEvent(snap competition.Snapshot) Event {
	msg := "Connected. The competition has not started yet."
	switch snap.Lifecycle {
	case competition.LifecycleRunning:
		msg = "Connected. The competition is in progress."
	case competition.LifecycleFinished:
		msg = "Connected. The competition has finished."
	}
	return Event{Type: TypeConnectionEstablished, Message: msg, Competition: snap.View()}
}

// TransitionEvent renders a lifecycle transition for broadcast.
func TransitionEvent(t competition.Transition) Event {
	if t.Kind == competition.TransitionStopped {
		return Event{
			Type:        TypeCompetitionStopped,
			Message:     "The competition has finished. Time records are no longer accepted.",
			Competition: t.Snapshot.View(),
		}
	}
	return Event{
		Type:        TypeCompetitionStarted,
		Message:     "The competition has started. You can now record times.",
		Competition: t.Snapshot.View(),
	}
}

// clientMessage is any message a judge sends. Decomposed fields sent by the
// client are ignored; the server derives them from elapsedMs.
type clientMessage struct {
	Type      string     `json:"type"`
	TeamID    int64      `json:"teamId"`
	ElapsedMs *int64     `json:"elapsedMs"`
	RecordID  *uuid.UUID `json:"recordId"`
	Timestamp *time.Time `json:"timestamp"`
}

type recordedMessage struct {
	Type   string            `json:"type"`
	Record timing.RecordView `json:"record"`
}

type errorMessage struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Code    timing.Kind `json:"code,omitempty"`
}

type pongMessage struct {
	Type    string    `json:"type"`
	Message string    `json:"message"`
	Time    time.Time `json:"serverTime"`
}
