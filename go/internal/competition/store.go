package competition

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/rs/zerolog/log"
)

// Backend is the storage collaborator behind the state store.
type Backend interface {
	GetCompetition(ctx context.Context, id int64) (*models.Competition, error)
	ListCompetitions(ctx context.Context) ([]models.Competition, error)
	FindRunning(ctx context.Context) (*models.Competition, error)
	MarkStarted(ctx context.Context, id int64, at time.Time) (*models.Competition, error)
	MarkStopped(ctx context.Context, id int64, at time.Time) (*models.Competition, error)
	SetActive(ctx context.Context, id int64, active bool, at time.Time) (*models.Competition, error)
}

// Cache holds recently read snapshots. Implementations must be safe for
// concurrent use.
type Cache interface {
	Get(ctx context.Context, id int64) (Snapshot, bool, error)
	// Set stores snap unless the entry already holds a higher Version, so
	// a reader that fetched a row before a write cannot replace the
	// snapshot that write stored.
	Set(ctx context.Context, snap Snapshot) error
	Delete(ctx context.Context, id int64) error
}

// Store is the single source of lifecycle state for the gateway and the
// command processor. Every write goes through the backend first and then
// refreshes the cache, so a Read that starts after a write returns has
// observed that write.
type Store struct {
	backend Backend
	cache   Cache

	// serializes writers in this process; the database serializes across processes
	mu sync.Mutex
}

// NewStore creates a state store. cache may be nil.
func NewStore(backend Backend, cache Cache) *Store {
	return &Store{backend: backend, cache: cache}
}

// Read returns the current snapshot for a competition.
func (s *Store) Read(ctx context.Context, id int64) (Snapshot, error) {
	if s.cache != nil {
		snap, ok, err := s.cache.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Int64("competition_id", id).Msg("snapshot cache read failed")
		} else if ok {
			return snap, nil
		}
	}

	c, err := s.backend.GetCompetition(ctx, id)
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := SnapshotOf(c)
	if err != nil {
		return Snapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			log.Warn().Err(err).Int64("competition_id", id).Msg("snapshot cache write failed")
		}
	}
	return snap, nil
}

// List returns fresh snapshots of every competition, bypassing the cache.
func (s *Store) List(ctx context.Context) ([]Snapshot, error) {
	rows, err := s.backend.ListCompetitions(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]Snapshot, 0, len(rows))
	for i := range rows {
		snap, err := SnapshotOf(&rows[i])
		if err != nil {
			return nil, err
		}
		out = append(out, snap)
	}
	return out, nil
}

// Running returns the running competition, if any.
func (s *Store) Running(ctx context.Context) (Snapshot, bool, error) {
	c, err := s.backend.FindRunning(ctx)
	if err != nil || c == nil {
		return Snapshot{}, false, err
	}
	snap, err := SnapshotOf(c)
	if err != nil {
		return Snapshot{}, false, err
	}
	return snap, true, nil
}

// MarkStarted commits the transition to running.
func (s *Store) MarkStarted(ctx context.Context, id int64, at time.Time) (Snapshot, error) {
	return s.write(ctx, id, func() (*models.Competition, error) {
		return s.backend.MarkStarted(ctx, id, at)
	})
}

// MarkStopped commits the transition to finished.
func (s *Store) MarkStopped(ctx context.Context, id int64, at time.Time) (Snapshot, error) {
	return s.write(ctx, id, func() (*models.Competition, error) {
		return s.backend.MarkStopped(ctx, id, at)
	})
}

// SetActive commits a change of the active flag.
func (s *Store) SetActive(ctx context.Context, id int64, active bool, at time.Time) (Snapshot, error) {
	return s.write(ctx, id, func() (*models.Competition, error) {
		return s.backend.SetActive(ctx, id, active, at)
	})
}

// Invalidate refreshes the cached snapshot from the backend after a change
// committed elsewhere. The entry is replaced rather than deleted so that a
// concurrent Read holding the older row cannot repopulate it.
func (s *Store) Invalidate(ctx context.Context, id int64) error {
	if s.cache == nil {
		return nil
	}

	c, err := s.backend.GetCompetition(ctx, id)
	if err == nil {
		var snap Snapshot
		if snap, err = SnapshotOf(c); err == nil {
			err = s.cache.Set(ctx, snap)
		}
	}
	if err == nil {
		return nil
	}

	if delErr := s.cache.Delete(ctx, id); delErr != nil {
		return fmt.Errorf("failed to invalidate competition %d: %w", id, delErr)
	}
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	return fmt.Errorf("failed to refresh competition %d: %w", id, err)
}

func (s *Store) write(ctx context.Context, id int64, commit func() (*models.Competition, error)) (Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	c, err := commit()
	if err != nil {
		return Snapshot{}, err
	}
	snap, err := SnapshotOf(c)
	if err != nil {
		return Snapshot{}, err
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, snap); err != nil {
			log.Error().Err(err).Int64("competition_id", id).Msg("failed to refresh cached snapshot, evicting")
			if delErr := s.cache.Delete(ctx, id); delErr != nil {
				log.Error().Err(delErr).Int64("competition_id", id).Msg("failed to evict cached snapshot")
			}
		}
	}
	return snap, nil
}
