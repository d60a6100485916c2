package events

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/mcdev12/racetime/go/internal/competition"
)

const (
	EventTypeCompetitionStarted = "CompetitionStarted"
	EventTypeCompetitionStopped = "CompetitionStopped"
)

// Envelope is the JetStream message body for a lifecycle transition.
type Envelope struct {
	EventID       string           `json:"eventId"`
	EventType     string           `json:"eventType"`
	CompetitionID int64            `json:"competitionId"`
	Timestamp     time.Time        `json:"timestamp"`
	Payload       competition.View `json:"payload"`
}

// NewEnvelope wraps a committed transition.
func NewEnvelope(t competition.Transition, now time.Time) (Envelope, error) {
	eventType, err := eventTypeOf(t.Kind)
	if err != nil {
		return Envelope{}, err
	}
	return Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		CompetitionID: t.Snapshot.ID,
		Timestamp:     now.UTC(),
		Payload:       t.Snapshot.View(),
	}, nil
}

// MsgID is the JetStream deduplication key: one per transition, so a retried
// publish of the same transition is dropped by the server.
func MsgID(t competition.Transition) string {
	return fmt.Sprintf("%s-%d-%d", t.Kind, t.Snapshot.ID, t.At().UnixNano())
}

// Transition rebuilds the transition carried by the envelope.
func (e Envelope) Transition() (competition.Transition, error) {
	var kind competition.TransitionKind
	switch e.EventType {
	case EventTypeCompetitionStarted:
		kind = competition.TransitionStarted
	case EventTypeCompetitionStopped:
		kind = competition.TransitionStopped
	default:
		return competition.Transition{}, fmt.Errorf("unknown event type: %s", e.EventType)
	}

	v := e.Payload
	lc, err := competition.LifecycleOf(v.Active, v.InProgress, v.FinishedAt)
	if err != nil {
		return competition.Transition{}, fmt.Errorf("competition %d: %w", v.ID, err)
	}
	snap := competition.Snapshot{ID: v.ID, Name: v.Name, Lifecycle: lc}
	if v.StartedAt != nil {
		snap.StartedAt = v.StartedAt.UTC()
	}
	if v.FinishedAt != nil {
		snap.FinishedAt = v.FinishedAt.UTC()
	}
	return competition.Transition{Kind: kind, Snapshot: snap}, nil
}

// Decode parses a message body.
func Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, fmt.Errorf("unmarshal event envelope: %w", err)
	}
	return env, nil
}

func eventTypeOf(kind competition.TransitionKind) (string, error) {
	switch kind {
	case competition.TransitionStarted:
		return EventTypeCompetitionStarted, nil
	case competition.TransitionStopped:
		return EventTypeCompetitionStopped, nil
	}
	return "", fmt.Errorf("unknown transition kind: %s", kind)
}
