package timing_test

import (
	"context"
	"testing"

	"github.com/mcdev12/racetime/go/internal/timing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func elapsed(ms int64) *int64 { return &ms }

func TestSubmitBatch_Truncates(t *testing.T) {
	f := newFixture(t, true)

	entries := make([]timing.BatchEntry, 20)
	for i := range entries {
		entries[i].ElapsedMs = elapsed(int64(1_000 * (i + 1)))
	}

	result := f.processor.SubmitBatch(context.Background(), ana, 100, entries)
	assert.Equal(t, 20, result.Received)
	assert.Len(t, result.Outcomes, timing.DefaultMaxBatchEntries)
	assert.Equal(t, timing.DefaultMaxBatchEntries, result.Saved())
	assert.LessOrEqual(t, f.records.Count(), timing.DefaultMaxBatchEntries)
}

func TestSubmitBatch_IndependentEntries(t *testing.T) {
	f := newFixture(t, true)
	f.records.FailInsert(1)

	entries := []timing.BatchEntry{
		{ElapsedMs: elapsed(100)},
		{ElapsedMs: elapsed(200)},
		{ElapsedMs: nil},
		{ElapsedMs: elapsed(-5)},
		{ElapsedMs: elapsed(400)},
	}

	result := f.processor.SubmitBatch(context.Background(), ana, 100, entries)
	require.Len(t, result.Outcomes, 5)

	for i, o := range result.Outcomes {
		assert.Equal(t, i, o.Index)
	}
	assert.True(t, result.Outcomes[0].OK())
	assert.ErrorIs(t, result.Outcomes[1].Err, timing.ErrStorage)
	assert.ErrorIs(t, result.Outcomes[2].Err, timing.ErrValidation)
	assert.ErrorIs(t, result.Outcomes[3].Err, timing.ErrValidation)
	assert.True(t, result.Outcomes[4].OK())

	assert.Equal(t, 2, result.Saved())
	assert.Equal(t, 3, result.Failed())
	assert.Equal(t, 2, f.records.Count())
}

func TestSubmitBatch_RejectedAsAWhole(t *testing.T) {
	f := newFixture(t, false)

	result := f.processor.SubmitBatch(context.Background(), ana, 100, []timing.BatchEntry{
		{ElapsedMs: elapsed(1)},
		{ElapsedMs: elapsed(2)},
	})
	for _, o := range result.Outcomes {
		assert.ErrorIs(t, o.Err, timing.ErrState)
	}
	assert.Zero(t, f.records.Count())
}
