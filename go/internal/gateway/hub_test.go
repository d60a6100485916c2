package gateway

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func testConn(competitionID int64, buffer int) *Connection {
	return &Connection{
		ID:            uuid.NewString(),
		CompetitionID: competitionID,
		cfg:           DefaultConfig(),
		send:          make(chan []byte, buffer),
		done:          make(chan struct{}),
	}
}

func pending(c *Connection) int { return len(c.send) }

func TestHub_BroadcastIsolatedByCompetition(t *testing.T) {
	hub := NewHub(50 * time.Millisecond)
	a1, a2, b1 := testConn(1, 4), testConn(1, 4), testConn(2, 4)
	for _, c := range []*Connection{a1, a2, b1} {
		require.NoError(t, hub.Join(c, nil))
	}

	assert.Equal(t, 2, hub.Broadcast(1, []byte(`{"type":"competition_started"}`)))
	assert.Equal(t, 1, pending(a1))
	assert.Equal(t, 1, pending(a2))
	assert.Equal(t, 0, pending(b1))

	assert.Equal(t, 0, hub.Broadcast(3, []byte(`{}`)))

	stats := hub.Stats()
	assert.Equal(t, 3, stats.TotalConnections)
	assert.Equal(t, map[int64]int{1: 2, 2: 1}, stats.Competitions)
}

func TestHub_LeaveStopsDelivery(t *testing.T) {
	hub := NewHub(50 * time.Millisecond)
	a, b := testConn(1, 4), testConn(1, 4)
	require.NoError(t, hub.Join(a, nil))
	require.NoError(t, hub.Join(b, nil))

	hub.Leave(a)
	hub.Leave(a)
	assert.Equal(t, 1, hub.Broadcast(1, []byte(`{}`)))
	assert.Equal(t, 0, pending(a))

	hub.Leave(b)
	assert.Equal(t, 0, hub.Stats().TotalConnections)
	assert.Empty(t, hub.Stats().Competitions)
}

func TestHub_ClosedAndSlowMembersDoNotBlockOthers(t *testing.T) {
	hub := NewHub(20 * time.Millisecond)
	healthy := testConn(1, 4)
	closed := testConn(1, 4)
	full := testConn(1, 1)
	for _, c := range []*Connection{healthy, closed, full} {
		require.NoError(t, hub.Join(c, nil))
	}
	closed.close()
	full.send <- []byte(`{}`)

	start := time.Now()
	delivered := hub.Broadcast(1, []byte(`{"type":"competition_stopped"}`))
	assert.Less(t, time.Since(start), time.Second)

	assert.Equal(t, 1, delivered)
	assert.Equal(t, 1, pending(healthy))
	assert.Equal(t, 0, pending(closed))
	assert.Equal(t, 1, pending(full))
}

func TestHub_JoinFailureDoesNotRegister(t *testing.T) {
	hub := NewHub(time.Second)
	c := testConn(1, 1)

	err := hub.Join(c, func() error { return errors.New("refused") })
	require.Error(t, err)
	assert.Equal(t, 0, hub.Stats().TotalConnections)
	assert.Equal(t, 0, hub.Broadcast(1, []byte(`{}`)))
}

func TestHub_JoinMessagePrecedesBroadcast(t *testing.T) {
	hub := NewHub(time.Second)
	c := testConn(1, 4)

	require.NoError(t, hub.Join(c, func() error {
		c.send <- []byte("established")
		return nil
	}))
	hub.Broadcast(1, []byte("started"))

	assert.Equal(t, "established", string(<-c.send))
	assert.Equal(t, "started", string(<-c.send))
}

func TestHub_ConcurrentMembershipAndBroadcast(t *testing.T) {
	hub := NewHub(10 * time.Millisecond)
	stable := testConn(1, 1024)
	require.NoError(t, hub.Join(stable, nil))

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				c := testConn(1, 1)
				_ = hub.Join(c, nil)
				c.close()
				hub.Leave(c)
			}
		}()
	}
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				hub.Broadcast(1, []byte(`{}`))
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, pending(stable))
	assert.Equal(t, 1, hub.Stats().TotalConnections)
}

func TestHub_BroadcastReachesExactlyCurrentMembers(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		hub := NewHub(10 * time.Millisecond)
		var live []*Connection

		ops := rapid.IntRange(1, 40).Draw(t, "ops")
		for i := 0; i < ops; i++ {
			if len(live) > 0 && rapid.Bool().Draw(t, "leave") {
				idx := rapid.IntRange(0, len(live)-1).Draw(t, "victim")
				hub.Leave(live[idx])
				live = append(live[:idx], live[idx+1:]...)
				continue
			}
			c := testConn(rapid.Int64Range(1, 3).Draw(t, "competition"), 8)
			if err := hub.Join(c, nil); err != nil {
				t.Fatalf("join: %v", err)
			}
			live = append(live, c)
		}

		target := rapid.Int64Range(1, 3).Draw(t, "target")
		want := 0
		for _, c := range live {
			if c.CompetitionID == target {
				want++
			}
		}
		if got := hub.Broadcast(target, []byte(`{}`)); got != want {
			t.Fatalf("delivered %d, want %d", got, want)
		}
		for _, c := range live {
			expected := 0
			if c.CompetitionID == target {
				expected = 1
			}
			if pending(c) != expected {
				t.Fatalf("connection in competition %d has %d pending, want %d", c.CompetitionID, pending(c), expected)
			}
		}
	})
}
