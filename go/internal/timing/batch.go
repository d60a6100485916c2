package timing

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// BatchEntry is one buffered measurement uploaded by a judge.
type BatchEntry struct {
	RecordID  uuid.UUID
	Timestamp time.Time
	ElapsedMs *int64
}

// EntryOutcome reports what happened to one batch entry.
type EntryOutcome struct {
	Index   int
	Receipt Receipt
	Err     error
}

func (o EntryOutcome) OK() bool { return o.Err == nil }

// BatchResult holds one outcome per processed entry, in input order.
type BatchResult struct {
	TeamID   int64
	Received int
	Outcomes []EntryOutcome
}

func (r BatchResult) Saved() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

func (r BatchResult) Failed() int { return len(r.Outcomes) - r.Saved() }

// SubmitBatch processes at most MaxBatchEntries entries; the rest are
// dropped without an outcome. Each entry is checked and stored on its own,
// so a failure never undoes entries stored before it.
func (p *Processor) SubmitBatch(ctx context.Context, who Principal, teamID int64, entries []BatchEntry) BatchResult {
	result := BatchResult{TeamID: teamID, Received: len(entries)}

	if len(entries) > p.cfg.MaxBatchEntries {
		log.Debug().
			Int64("team_id", teamID).
			Int("received", len(entries)).
			Int("dropped", len(entries)-p.cfg.MaxBatchEntries).
			Msg("batch truncated")
		entries = entries[:p.cfg.MaxBatchEntries]
	}

	result.Outcomes = make([]EntryOutcome, 0, len(entries))
	for i, entry := range entries {
		outcome := EntryOutcome{Index: i}
		if entry.ElapsedMs == nil {
			outcome.Err = fmt.Errorf("%w: elapsedMs is required", ErrValidation)
		} else {
			outcome.Receipt, outcome.Err = p.SubmitTime(ctx, who, Submission{
				TeamID:    teamID,
				ElapsedMs: *entry.ElapsedMs,
				RecordID:  entry.RecordID,
				Timestamp: entry.Timestamp,
			})
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	log.Info().
		Int64("judge_id", who.JudgeID).
		Int64("team_id", teamID).
		Int("received", result.Received).
		Int("saved", result.Saved()).
		Int("failed", result.Failed()).
		Msg("batch processed")

	return result
}
