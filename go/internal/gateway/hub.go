package gateway

import (
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// maxParallelSends bounds the goroutines used for members whose buffer is full.
const maxParallelSends = 32

// Hub is the connection registry: one group of live connections per
// competition. Lock order is Hub.mu before group.mu.
type Hub struct {
	mu     sync.Mutex
	groups map[int64]*group

	sendTimeout time.Duration
}

type group struct {
	mu      sync.Mutex
	members map[*Connection]struct{}
	// set once the group is removed from the hub; joiners must fetch a new one
	dead bool
}

// NewHub creates an empty registry. sendTimeout bounds how long a broadcast
// waits on one slow connection before dropping the message for it.
func NewHub(sendTimeout time.Duration) *Hub {
	return &Hub{
		groups:      make(map[int64]*group),
		sendTimeout: sendTimeout,
	}
}

// Join registers c under its competition group. onJoin runs while the group
// is locked, so no broadcast to the group can interleave between it and the
// registration: anything onJoin enqueues on c precedes every broadcast c
// receives. If onJoin fails, c is not registered.
func (h *Hub) Join(c *Connection, onJoin func() error) error {
	for {
		g := h.groupFor(c.CompetitionID)

		g.mu.Lock()
		if g.dead {
			g.mu.Unlock()
			continue
		}
		if onJoin != nil {
			if err := onJoin(); err != nil {
				empty := len(g.members) == 0
				g.mu.Unlock()
				if empty {
					h.prune(c.CompetitionID, g)
				}
				return err
			}
		}
		g.members[c] = struct{}{}
		size := len(g.members)
		g.mu.Unlock()

		log.Debug().
			Str("connection_id", c.ID).
			Int64("competition_id", c.CompetitionID).
			Int("group_size", size).
			Msg("connection registered")
		return nil
	}
}

// Leave removes c from its group. It is safe to call more than once and
// concurrently with a broadcast to the same group.
func (h *Hub) Leave(c *Connection) {
	h.mu.Lock()
	g := h.groups[c.CompetitionID]
	h.mu.Unlock()
	if g == nil {
		return
	}

	g.mu.Lock()
	_, ok := g.members[c]
	delete(g.members, c)
	empty := len(g.members) == 0
	g.mu.Unlock()

	if empty {
		h.prune(c.CompetitionID, g)
	}
	if ok {
		log.Debug().
			Str("connection_id", c.ID).
			Int64("competition_id", c.CompetitionID).
			Msg("connection unregistered")
	}
}

// Broadcast delivers data to every connection registered under the
// competition when the call starts and returns how many accepted it.
// A connection that is closed or stays full past the send timeout is
// skipped without affecting the others.
func (h *Hub) Broadcast(competitionID int64, data []byte) int {
	members := h.members(competitionID)
	if len(members) == 0 {
		return 0
	}

	var (
		delivered int
		slow      []*Connection
	)
	for _, c := range members {
		switch c.trySend(data) {
		case sendOK:
			delivered++
		case sendFull:
			slow = append(slow, c)
		}
	}

	if len(slow) > 0 {
		var (
			mu sync.Mutex
			eg errgroup.Group
		)
		eg.SetLimit(maxParallelSends)
		for _, c := range slow {
			c := c // per-iteration copy; module targets go 1.21 loop semantics
			eg.Go(func() error {
				if c.sendWithin(data, h.sendTimeout) {
					mu.Lock()
					delivered++
					mu.Unlock()
					return nil
				}
				log.Warn().
					Str("connection_id", c.ID).
					Int64("competition_id", competitionID).
					Msg("send timed out, message dropped for connection")
				return nil
			})
		}
		_ = eg.Wait()
	}

	log.Debug().
		Int64("competition_id", competitionID).
		Int("members", len(members)).
		Int("delivered", delivered).
		Msg("broadcast")
	return delivered
}

// CloseAll closes every registered connection with code.
func (h *Hub) CloseAll(code int, reason string) {
	h.mu.Lock()
	groups := make([]*group, 0, len(h.groups))
	for _, g := range h.groups {
		groups = append(groups, g)
	}
	h.mu.Unlock()

	for _, g := range groups {
		g.mu.Lock()
		members := make([]*Connection, 0, len(g.members))
		for c := range g.members {
			members = append(members, c)
		}
		g.mu.Unlock()
		for _, c := range members {
			c.closeWith(code, reason)
		}
	}
}

// Stats is a point-in-time count of registered connections.
type Stats struct {
	TotalConnections int           `json:"totalConnections"`
	Competitions     map[int64]int `json:"competitions"`
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()

	stats := Stats{Competitions: make(map[int64]int, len(h.groups))}
	for id, g := range h.groups {
		g.mu.Lock()
		n := len(g.members)
		g.mu.Unlock()
		stats.Competitions[id] = n
		stats.TotalConnections += n
	}
	return stats
}

func (h *Hub) groupFor(competitionID int64) *group {
	h.mu.Lock()
	defer h.mu.Unlock()
	g := h.groups[competitionID]
	if g == nil {
		g = &group{members: make(map[*Connection]struct{})}
		h.groups[competitionID] = g
	}
	return g
}

// members copies the group under its lock.
func (h *Hub) members(competitionID int64) []*Connection {
	h.mu.Lock()
	g := h.groups[competitionID]
	h.mu.Unlock()
	if g == nil {
		return nil
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*Connection, 0, len(g.members))
	for c := range g.members {
		out = append(out, c)
	}
	return out
}

// prune drops g from the hub if it is still empty.
func (h *Hub) prune(competitionID int64, g *group) {
	h.mu.Lock()
	defer h.mu.Unlock()
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.members) == 0 && h.groups[competitionID] == g {
		g.dead = true
		delete(h.groups, competitionID)
	}
}

// ConnectionCount returns the number of registered connections.
func (h *Hub) ConnectionCount() int {
	return h.Stats().TotalConnections
}
