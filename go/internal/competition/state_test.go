package competition_test

import (
	"testing"
	"time"

	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func TestLifecycleOf(t *testing.T) {
	finished := time.Date(2025, 5, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		active     bool
		running    bool
		finishedAt *time.Time
		want       competition.Lifecycle
		wantErr    error
	}{
		{"inactive", false, false, nil, competition.LifecycleInactive, nil},
		{"archived after finishing", false, false, &finished, competition.LifecycleInactive, nil},
		{"ready", true, false, nil, competition.LifecycleReady, nil},
		{"running", true, true, nil, competition.LifecycleRunning, nil},
		{"finished", true, false, &finished, competition.LifecycleFinished, nil},
		{"running but inactive", false, true, nil, competition.LifecycleInactive, competition.ErrInconsistentState},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := competition.LifecycleOf(tt.active, tt.running, tt.finishedAt)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLifecycle_InProgressImpliesActive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		active := rapid.Bool().Draw(t, "active")
		running := rapid.Bool().Draw(t, "running")
		var finishedAt *time.Time
		if rapid.Bool().Draw(t, "finished") {
			ts := time.Unix(rapid.Int64Range(0, 1<<32).Draw(t, "finishedAt"), 0)
			finishedAt = &ts
		}

		lc, err := competition.LifecycleOf(active, running, finishedAt)
		if running && !active {
			if err == nil {
				t.Fatalf("expected inconsistent state error")
			}
			return
		}
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !lc.Valid() {
			t.Fatalf("invalid lifecycle %d", lc)
		}
		if lc.InProgress() && !lc.Active() {
			t.Fatalf("%s is in progress but not active", lc)
		}
		if lc.InProgress() != running || lc.Active() != active {
			t.Fatalf("%s does not match active=%v running=%v", lc, active, running)
		}
	})
}

func TestSnapshotOf_View(t *testing.T) {
	started := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	snap, err := competition.SnapshotOf(&models.Competition{ID: 4, Name: "Regata", Active: true, Running: true, StartedAt: &started})
	require.NoError(t, err)

	v := snap.View()
	assert.Equal(t, int64(4), v.ID)
	assert.True(t, v.Active)
	assert.True(t, v.InProgress)
	assert.Equal(t, "running", v.Status)
	require.NotNil(t, v.StartedAt)
	assert.True(t, started.Equal(*v.StartedAt))
	assert.Nil(t, v.FinishedAt)

	_, err = competition.SnapshotOf(&models.Competition{ID: 5, Running: true})
	assert.ErrorIs(t, err, competition.ErrInconsistentState)
}

func TestTransition_At(t *testing.T) {
	started := time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC)
	finished := started.Add(2 * time.Hour)
	snap := competition.Snapshot{ID: 1, StartedAt: started, FinishedAt: finished}

	assert.Equal(t, started, competition.Transition{Kind: competition.TransitionStarted, Snapshot: snap}.At())
	assert.Equal(t, finished, competition.Transition{Kind: competition.TransitionStopped, Snapshot: snap}.At())
	assert.Equal(t, "started", competition.TransitionStarted.String())
}
