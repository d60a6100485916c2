package competition

import (
	"context"
	"fmt"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog/log"
)

// Announcer receives committed transitions. The gateway broadcasts them
// locally; the JetStream publisher forwards them to every gateway instance.
type Announcer interface {
	Announce(ctx context.Context, t Transition) error
}

// App is the administrative side of the lifecycle: it validates and commits
// transitions, then announces each committed transition exactly once.
type App struct {
	store     *Store
	announcer Announcer
	clock     clockwork.Clock
}

// NewApp creates a new competition App
func NewApp(store *Store, announcer Announcer, clock clockwork.Clock) *App {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	return &App{store: store, announcer: announcer, clock: clock}
}

// Get returns the current snapshot of a competition.
func (a *App) Get(ctx context.Context, id int64) (Snapshot, error) {
	return a.store.Read(ctx, id)
}

// List returns every competition.
func (a *App) List(ctx context.Context) ([]Snapshot, error) {
	return a.store.List(ctx)
}

// Start opens a competition for time submissions.
func (a *App) Start(ctx context.Context, id int64) (Snapshot, error) {
	current, err := a.store.Read(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	switch {
	case current.InProgress():
		return Snapshot{}, ErrAlreadyRunning
	case !current.Active():
		return Snapshot{}, ErrNotActive
	}

	running, ok, err := a.store.Running(ctx)
	if err != nil {
		return Snapshot{}, err
	}
	if ok && running.ID != id {
		return Snapshot{}, fmt.Errorf("%w: %q must be stopped first", ErrAnotherRunning, running.Name)
	}

	snap, err := a.store.MarkStarted(ctx, id, a.clock.Now().UTC())
	if err != nil {
		return Snapshot{}, err
	}

	log.Info().
		Int64("competition_id", id).
		Str("name", snap.Name).
		Time("started_at", snap.StartedAt).
		Msg("competition started")

	a.announce(ctx, Transition{Kind: TransitionStarted, Snapshot: snap})
	return snap, nil
}

// Stop closes a running competition.
func (a *App) Stop(ctx context.Context, id int64) (Snapshot, error) {
	current, err := a.store.Read(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	if !current.InProgress() {
		return Snapshot{}, ErrNotRunning
	}

	snap, err := a.store.MarkStopped(ctx, id, a.clock.Now().UTC())
	if err != nil {
		return Snapshot{}, err
	}

	log.Info().
		Int64("competition_id", id).
		Str("name", snap.Name).
		Time("finished_at", snap.FinishedAt).
		Msg("competition stopped")

	a.announce(ctx, Transition{Kind: TransitionStopped, Snapshot: snap})
	return snap, nil
}

// SetActive enables or disables a competition. Disabling does not touch
// connected judges; they are refused on their next connection attempt.
func (a *App) SetActive(ctx context.Context, id int64, active bool) (Snapshot, error) {
	snap, err := a.store.SetActive(ctx, id, active, a.clock.Now().UTC())
	if err != nil {
		return Snapshot{}, err
	}
	log.Info().
		Int64("competition_id", id).
		Bool("active", active).
		Msg("competition activation changed")
	return snap, nil
}

// announce logs failures; the transition itself is already committed.
func (a *App) announce(ctx context.Context, t Transition) {
	if a.announcer == nil {
		return
	}
	if err := a.announcer.Announce(ctx, t); err != nil {
		log.Error().
			Err(err).
			Int64("competition_id", t.Snapshot.ID).
			Str("transition", t.Kind.String()).
			Msg("failed to announce transition")
	}
}
