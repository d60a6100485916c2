package competition

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/rs/zerolog/log"
)

// TransitionHandler turns a committed transition into a broadcast.
type TransitionHandler interface {
	TransitionStarted(ctx context.Context, competitionID int64) error
	TransitionStopped(ctx context.Context, competitionID int64) error
}

type WatcherConfig struct {
	DatabaseURL       string        // Postgres DSN for LISTEN/NOTIFY
	NotifyChannel     string        // Channel name to LISTEN on
	ReconcileInterval time.Duration // How often to compare stored state with what was announced
	PingInterval      time.Duration
	MinReconnect      time.Duration
	MaxReconnect      time.Duration
}

func DefaultWatcherConfig() WatcherConfig {
	return WatcherConfig{
		NotifyChannel:     "competition_transitions",
		ReconcileInterval: 15 * time.Second,
		PingInterval:      90 * time.Second,
		MinReconnect:      10 * time.Second,
		MaxReconnect:      time.Minute,
	}
}

// Watcher picks up lifecycle changes committed outside this process (for
// example by an operator editing the competitions table) and hands them to
// the gateway. A database trigger NOTIFYs on every is_running or is_active
// change; the periodic reconcile covers notifications lost while disconnected.
type Watcher struct {
	store    *Store
	handler  TransitionHandler
	listener *pq.Listener
	cfg      WatcherConfig

	known  map[int64]flags // competition id -> last seen flags
	primed bool
}

type flags struct {
	running bool
	active  bool
}

type transitionNote struct {
	ID      int64 `json:"id"`
	Running bool  `json:"running"`
	Active  *bool `json:"active"`
}

// NewWatcher creates a watcher and subscribes to the notify channel.
func NewWatcher(store *Store, handler TransitionHandler, cfg WatcherConfig) (*Watcher, error) {
	l := pq.NewListener(
		cfg.DatabaseURL,
		cfg.MinReconnect,
		cfg.MaxReconnect,
		func(ev pq.ListenerEventType, err error) {
			if err != nil {
				log.Error().Err(err).Msg("listener event")
			}
		},
	)
	if err := l.Listen(cfg.NotifyChannel); err != nil {
		l.Close()
		return nil, fmt.Errorf("failed to listen to channel: %w", err)
	}

	log.Info().
		Str("channel", cfg.NotifyChannel).
		Msg("listening for competition transitions")

	w := newWatcher(store, handler, cfg)
	w.listener = l
	return w, nil
}

func newWatcher(store *Store, handler TransitionHandler, cfg WatcherConfig) *Watcher {
	return &Watcher{
		store:   store,
		handler: handler,
		cfg:     cfg,
		known:   make(map[int64]flags),
	}
}

func (w *Watcher) Start(ctx context.Context) error {
	log.Info().
		Str("channel", w.cfg.NotifyChannel).
		Dur("ping_interval", w.cfg.PingInterval).
		Dur("reconcile_interval", w.cfg.ReconcileInterval).
		Msg("watcher started")

	if err := w.reconcile(ctx); err != nil {
		log.Error().Err(err).Msg("initial reconcile failed")
	}

	pingTicker := time.NewTicker(w.cfg.PingInterval)
	reconcileTicker := time.NewTicker(w.cfg.ReconcileInterval)
	defer pingTicker.Stop()
	defer reconcileTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("watcher shutting down")
			return w.Stop()
		case note := <-w.listener.Notify:
			if note == nil {
				// connection was re-established; anything sent meanwhile is lost
				if err := w.reconcile(ctx); err != nil {
					log.Error().Err(err).Msg("reconcile after reconnect failed")
				}
				continue
			}
			if err := w.handleNotification(ctx, note.Extra); err != nil {
				log.Error().Err(err).Msg("failed to handle notification")
			}
		case <-reconcileTicker.C:
			if err := w.reconcile(ctx); err != nil {
				log.Error().Err(err).Msg("failed to reconcile competition state")
			}
		case <-pingTicker.C:
			if err := w.listener.Ping(); err != nil {
				log.Error().Err(err).Msg("failed to ping listener")
			}
		}
	}
}

func (w *Watcher) Stop() error {
	if w.listener == nil {
		return nil
	}
	return w.listener.Close()
}

// handleNotification handles a pg notification whose payload is
// {"id": <competition id>, "running": <bool>, "active": <bool>}. Every
// notification refreshes the cached snapshot; only a change of the running
// flag is announced.
func (w *Watcher) handleNotification(ctx context.Context, extra string) error {
	var note transitionNote
	if err := json.Unmarshal([]byte(extra), &note); err != nil {
		return fmt.Errorf("invalid transition notification: %w", err)
	}

	w.invalidate(ctx, note.ID)

	prev, seen := w.known[note.ID]
	next := flags{running: note.Running, active: prev.active}
	if note.Active != nil {
		next.active = *note.Active
	}
	w.known[note.ID] = next
	if seen && prev.running == note.Running {
		return nil
	}
	return w.announce(ctx, note.ID, note.Running)
}

// reconcile compares stored state against the last state seen per
// competition, refreshes the cache for any difference and announces running
// flips. The first pass only records.
func (w *Watcher) reconcile(ctx context.Context) error {
	snaps, err := w.store.List(ctx)
	if err != nil {
		return fmt.Errorf("failed to list competitions: %w", err)
	}

	for _, snap := range snaps {
		next := flags{running: snap.InProgress(), active: snap.Active()}
		prev, seen := w.known[snap.ID]
		w.known[snap.ID] = next
		if !w.primed || (seen && prev == next) || (!seen && !next.running) {
			continue
		}

		w.invalidate(ctx, snap.ID)
		if seen && prev.running == next.running {
			continue
		}
		if err := w.announce(ctx, snap.ID, next.running); err != nil {
			log.Error().Err(err).Int64("competition_id", snap.ID).Msg("failed to dispatch reconciled transition")
		}
	}
	w.primed = true
	return nil
}

func (w *Watcher) invalidate(ctx context.Context, id int64) {
	if err := w.store.Invalidate(ctx, id); err != nil {
		log.Warn().Err(err).Int64("competition_id", id).Msg("failed to invalidate snapshot")
	}
}

func (w *Watcher) announce(ctx context.Context, id int64, running bool) error {
	log.Info().
		Int64("competition_id", id).
		Bool("running", running).
		Msg("external competition transition")

	if running {
		return w.handler.TransitionStarted(ctx, id)
	}
	return w.handler.TransitionStopped(ctx, id)
}
