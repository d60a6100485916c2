package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingAnnouncer struct {
	got []competition.Transition
}

func (r *recordingAnnouncer) Announce(_ context.Context, t competition.Transition) error {
	r.got = append(r.got, t)
	return nil
}

func startedTransition() competition.Transition {
	return competition.Transition{
		Kind: competition.TransitionStarted,
		Snapshot: competition.Snapshot{
			ID:        10,
			Name:      "Regata 2025",
			Lifecycle: competition.LifecycleRunning,
			StartedAt: time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
		},
	}
}

func TestEnvelope_CarriesTransition(t *testing.T) {
	now := time.Date(2025, 5, 1, 9, 0, 1, 0, time.UTC)

	stopped := competition.Transition{
		Kind: competition.TransitionStopped,
		Snapshot: competition.Snapshot{
			ID:         10,
			Name:       "Regata 2025",
			Lifecycle:  competition.LifecycleFinished,
			StartedAt:  time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC),
			FinishedAt: time.Date(2025, 5, 1, 11, 30, 0, 0, time.UTC),
		},
	}

	for _, want := range []competition.Transition{startedTransition(), stopped} {
		env, err := NewEnvelope(want, now)
		require.NoError(t, err)
		assert.Equal(t, int64(10), env.CompetitionID)
		assert.NotEmpty(t, env.EventID)

		data, err := json.Marshal(env)
		require.NoError(t, err)
		decoded, err := Decode(data)
		require.NoError(t, err)

		got, err := decoded.Transition()
		require.NoError(t, err)
		assert.Equal(t, want.Kind, got.Kind)
		assert.Equal(t, want.Snapshot.Lifecycle, got.Snapshot.Lifecycle)
		assert.True(t, want.At().Equal(got.At()))
	}
}

func TestMsgID_StablePerTransition(t *testing.T) {
	a := startedTransition()
	b := startedTransition()
	assert.Equal(t, MsgID(a), MsgID(b))

	b.Snapshot.StartedAt = b.Snapshot.StartedAt.Add(time.Hour)
	assert.NotEqual(t, MsgID(a), MsgID(b))

	c := startedTransition()
	c.Kind = competition.TransitionStopped
	assert.NotEqual(t, MsgID(a), MsgID(c))
}

func TestConsumer_Handle(t *testing.T) {
	target := &recordingAnnouncer{}
	c := &Consumer{config: DefaultConfig(), name: "gateway-test", target: target}

	env, err := NewEnvelope(startedTransition(), time.Now())
	require.NoError(t, err)
	data, err := json.Marshal(env)
	require.NoError(t, err)

	require.NoError(t, c.handle(context.Background(), data))
	require.Len(t, target.got, 1)
	assert.Equal(t, competition.TransitionStarted, target.got[0].Kind)
	assert.Equal(t, int64(10), target.got[0].Snapshot.ID)

	assert.Error(t, c.handle(context.Background(), []byte(`{`)))
	assert.Error(t, c.handle(context.Background(), []byte(`{"eventType":"Unknown"}`)))
	assert.Len(t, target.got, 1)
}

func TestConfig_Subject(t *testing.T) {
	assert.Equal(t, "race.events.CompetitionStarted", DefaultConfig().Subject(EventTypeCompetitionStarted))
}
