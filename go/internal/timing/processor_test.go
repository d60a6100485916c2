package timing_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/testutil"
	"github.com/mcdev12/racetime/go/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	ana  = timing.Principal{JudgeID: 1, CompetitionID: 10}
	luis = timing.Principal{JudgeID: 2, CompetitionID: 10}
)

type fixture struct {
	comps     *testutil.Competitions
	records   *testutil.Records
	store     *competition.Store
	processor *timing.Processor
	clock     *clockwork.FakeClock
}

func newFixture(t *testing.T, running bool) *fixture {
	t.Helper()
	clock := clockwork.NewFakeClockAt(time.Date(2025, 5, 1, 9, 0, 0, 0, time.UTC))

	row := models.Competition{ID: 10, Name: "Regata 2025", Active: true}
	if running {
		started := clock.Now()
		row.Running = true
		row.StartedAt = &started
	}
	comps := testutil.NewCompetitions(row)
	teams := testutil.NewTeams(
		models.Team{ID: 100, JudgeID: 1, CompetitionID: 10, Name: "Delfines", Number: 7, Category: models.TeamCategoryStudents},
		models.Team{ID: 200, JudgeID: 2, CompetitionID: 10, Name: "Tiburones", Number: 3, Category: models.TeamCategoryFaculty},
	)
	records := testutil.NewRecords()
	store := competition.NewStore(comps, nil)

	return &fixture{
		comps:     comps,
		records:   records,
		store:     store,
		processor: timing.NewProcessor(store, teams, records, clock, timing.DefaultConfig()),
		clock:     clock,
	}
}

func TestSubmitTime_Stored(t *testing.T) {
	f := newFixture(t, true)

	receipt, err := f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 100, ElapsedMs: 12_345})
	require.NoError(t, err)

	rec := receipt.Record
	assert.NotEqual(t, uuid.Nil, rec.ID)
	assert.Equal(t, int64(100), rec.TeamID)
	assert.Equal(t, int64(0), rec.Hours)
	assert.Equal(t, int64(0), rec.Minutes)
	assert.Equal(t, int64(12), rec.Seconds)
	assert.Equal(t, int64(345), rec.Milliseconds)
	assert.Equal(t, f.clock.Now(), rec.Timestamp)
	assert.False(t, receipt.Duplicate)
	assert.Equal(t, "Delfines", receipt.Team.Name)
	assert.Equal(t, 1, f.records.Count())

	view := receipt.View()
	assert.Equal(t, "0:00:12.345", view.Formatted)
	assert.Equal(t, 7, view.TeamNumber)
}

func TestSubmitTime_StateRejections(t *testing.T) {
	ctx := context.Background()

	t.Run("not started", func(t *testing.T) {
		f := newFixture(t, false)
		_, err := f.processor.SubmitTime(ctx, ana, timing.Submission{TeamID: 100, ElapsedMs: 1})
		assert.ErrorIs(t, err, timing.ErrState)
		assert.Equal(t, timing.KindState, timing.KindOf(err))
		assert.Zero(t, f.records.Count())
	})

	t.Run("finished", func(t *testing.T) {
		f := newFixture(t, true)
		_, err := f.store.MarkStopped(ctx, 10, f.clock.Now())
		require.NoError(t, err)

		_, err = f.processor.SubmitTime(ctx, ana, timing.Submission{TeamID: 100, ElapsedMs: 1})
		assert.ErrorIs(t, err, timing.ErrState)
		assert.Zero(t, f.records.Count())
	})

	t.Run("unknown competition", func(t *testing.T) {
		f := newFixture(t, true)
		who := timing.Principal{JudgeID: 1, CompetitionID: 99}
		_, err := f.processor.SubmitTime(ctx, who, timing.Submission{TeamID: 100, ElapsedMs: 1})
		assert.ErrorIs(t, err, timing.ErrState)
	})
}

func TestSubmitTime_OwnershipRegardlessOfState(t *testing.T) {
	for _, running := range []bool{true, false} {
		f := newFixture(t, running)

		_, err := f.processor.SubmitTime(context.Background(), luis, timing.Submission{TeamID: 100, ElapsedMs: 1})
		assert.ErrorIs(t, err, timing.ErrOwnership, "running=%v", running)

		_, err = f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 999, ElapsedMs: 1})
		assert.ErrorIs(t, err, timing.ErrOwnership, "running=%v", running)

		assert.Zero(t, f.records.Count())
	}
}

func TestSubmitTime_Validation(t *testing.T) {
	f := newFixture(t, true)

	_, err := f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 100, ElapsedMs: -1})
	assert.ErrorIs(t, err, timing.ErrValidation)

	_, err = f.processor.SubmitTime(context.Background(), ana, timing.Submission{ElapsedMs: 5})
	assert.ErrorIs(t, err, timing.ErrValidation)
}

func TestSubmitTime_StorageFailure(t *testing.T) {
	f := newFixture(t, true)
	f.records.FailInsert(0)

	_, err := f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 100, ElapsedMs: 1})
	assert.ErrorIs(t, err, timing.ErrStorage)
	assert.Equal(t, timing.KindStorage, timing.KindOf(err))

	f.comps.Fail(true)
	_, err = f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 100, ElapsedMs: 1})
	assert.ErrorIs(t, err, timing.ErrStorage)
}

func TestSubmitTime_DuplicateRecordID(t *testing.T) {
	f := newFixture(t, true)
	id := uuid.New()

	first, err := f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 100, ElapsedMs: 500, RecordID: id})
	require.NoError(t, err)
	assert.False(t, first.Duplicate)

	again, err := f.processor.SubmitTime(context.Background(), ana, timing.Submission{TeamID: 100, ElapsedMs: 900, RecordID: id})
	require.NoError(t, err)
	assert.True(t, again.Duplicate)
	assert.Equal(t, int64(500), again.Record.ElapsedMs)
	assert.Equal(t, 1, f.records.Count())
}

func TestSubmitTime_RecordLimit(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	for i := 0; i < timing.DefaultMaxRecordsPerTeam; i++ {
		_, err := f.processor.SubmitTime(ctx, ana, timing.Submission{TeamID: 100, ElapsedMs: int64(i)})
		require.NoError(t, err)
	}

	_, err := f.processor.SubmitTime(ctx, ana, timing.Submission{TeamID: 100, ElapsedMs: 1})
	assert.ErrorIs(t, err, timing.ErrRecordLimit)
	assert.Equal(t, timing.KindLimit, timing.KindOf(err))

	status, err := f.processor.TeamStatus(ctx, ana, 100)
	require.NoError(t, err)
	assert.Len(t, status.Records, timing.DefaultMaxRecordsPerTeam)
	assert.False(t, status.CanSubmit())
}

func TestTeamStatus(t *testing.T) {
	f := newFixture(t, true)
	ctx := context.Background()

	for _, ms := range []int64{900, 300, 600} {
		_, err := f.processor.SubmitTime(ctx, ana, timing.Submission{TeamID: 100, ElapsedMs: ms})
		require.NoError(t, err)
	}

	status, err := f.processor.TeamStatus(ctx, ana, 100)
	require.NoError(t, err)
	require.Len(t, status.Records, 3)
	assert.Equal(t, int64(300), status.Records[0].ElapsedMs)
	assert.True(t, status.CanSubmit())

	_, err = f.processor.TeamStatus(ctx, luis, 100)
	assert.ErrorIs(t, err, timing.ErrOwnership)
}
