package competition

import (
	"fmt"
	"time"

	"github.com/mcdev12/racetime/go/internal/models"
)

// Lifecycle is the state of a competition. The stored flags (active,
// running) map onto it; running without active has no Lifecycle value.
type Lifecycle uint8

const (
	LifecycleInactive Lifecycle = iota
	LifecycleReady
	LifecycleRunning
	LifecycleFinished
)

func (l Lifecycle) String() string {
	switch l {
	case LifecycleInactive:
		return "inactive"
	case LifecycleReady:
		return "scheduled"
	case LifecycleRunning:
		return "running"
	case LifecycleFinished:
		return "finished"
	}
	return fmt.Sprintf("lifecycle(%d)", uint8(l))
}

// Valid reports whether l is one of the declared lifecycle values.
func (l Lifecycle) Valid() bool {
	return l <= LifecycleFinished
}

// Active reports whether the competition is usable at all.
func (l Lifecycle) Active() bool {
	return l.Valid() && l != LifecycleInactive
}

// InProgress reports whether time submissions are accepted.
func (l Lifecycle) InProgress() bool {
	return l == LifecycleRunning
}

// LifecycleOf derives the lifecycle from the stored flags.
func LifecycleOf(active, running bool, finishedAt *time.Time) (Lifecycle, error) {
	switch {
	case running && !active:
		return LifecycleInactive, ErrInconsistentState
	case !active:
		return LifecycleInactive, nil
	case running:
		return LifecycleRunning, nil
	case finishedAt != nil:
		return LifecycleFinished, nil
	}
	return LifecycleReady, nil
}

// Snapshot is an immutable view of a competition's lifecycle at one read.
// Zero StartedAt/FinishedAt mean unset. Version orders snapshots of the same
// competition: a higher version reflects a later stored change.
type Snapshot struct {
	ID         int64
	Name       string
	Lifecycle  Lifecycle
	StartedAt  time.Time
	FinishedAt time.Time
	Version    int64
}

// SnapshotOf builds a snapshot from a stored competition.
func SnapshotOf(c *models.Competition) (Snapshot, error) {
	lc, err := LifecycleOf(c.Active, c.Running, c.FinishedAt)
	if err != nil {
		return Snapshot{}, fmt.Errorf("competition %d: %w", c.ID, err)
	}
	s := Snapshot{ID: c.ID, Name: c.Name, Lifecycle: lc, Version: c.Version}
	if c.StartedAt != nil {
		s.StartedAt = c.StartedAt.UTC()
	}
	if c.FinishedAt != nil {
		s.FinishedAt = c.FinishedAt.UTC()
	}
	return s, nil
}

func (s Snapshot) Active() bool     { return s.Lifecycle.Active() }
func (s Snapshot) InProgress() bool { return s.Lifecycle.InProgress() }
func (s Snapshot) Status() string   { return s.Lifecycle.String() }

// View is the JSON shape of a snapshot shared by HTTP and websocket payloads.
type View struct {
	ID         int64      `json:"id"`
	Name       string     `json:"name"`
	Active     bool       `json:"active"`
	InProgress bool       `json:"inProgress"`
	Status     string     `json:"status"`
	StartedAt  *time.Time `json:"startedAt,omitempty"`
	FinishedAt *time.Time `json:"finishedAt,omitempty"`
}

func (s Snapshot) View() View {
	v := View{
		ID:         s.ID,
		Name:       s.Name,
		Active:     s.Active(),
		InProgress: s.InProgress(),
		Status:     s.Status(),
	}
	if !s.StartedAt.IsZero() {
		t := s.StartedAt
		v.StartedAt = &t
	}
	if !s.FinishedAt.IsZero() {
		t := s.FinishedAt
		v.FinishedAt = &t
	}
	return v
}

// TransitionKind names a lifecycle change that is announced to judges.
type TransitionKind uint8

const (
	TransitionStarted TransitionKind = iota + 1
	TransitionStopped
)

func (k TransitionKind) String() string {
	switch k {
	case TransitionStarted:
		return "started"
	case TransitionStopped:
		return "stopped"
	}
	return fmt.Sprintf("transition(%d)", uint8(k))
}

// Transition is a committed lifecycle change together with the state it produced.
type Transition struct {
	Kind     TransitionKind
	Snapshot Snapshot
}

// At returns the timestamp that identifies this transition.
func (t Transition) At() time.Time {
	if t.Kind == TransitionStopped {
		return t.Snapshot.FinishedAt
	}
	return t.Snapshot.StartedAt
}
