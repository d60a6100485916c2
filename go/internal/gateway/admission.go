package gateway

import (
	"context"
	"errors"
	"fmt"

	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/judges"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/timing"
)

// Close codes sent when a connection is refused.
const (
	CloseMalformedRequest = 4000
	CloseMissingToken     = 4001
	CloseInvalidToken     = 4002
	CloseJudgeMismatch    = 4003
	CloseNotActive        = 4004
	CloseInternalError    = 1011
)

// RejectError is an admission refusal. Err is timing.ErrAuth or
// timing.ErrState for client-side causes.
type RejectError struct {
	Code   int
	Reason string
	Err    error
}

func (e *RejectError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("connection rejected (%d): %s", e.Code, e.Reason)
	}
	return fmt.Sprintf("connection rejected (%d): %s: %v", e.Code, e.Reason, e.Err)
}

func (e *RejectError) Unwrap() error { return e.Err }

func reject(code int, reason string, err error) *RejectError {
	return &RejectError{Code: code, Reason: reason, Err: err}
}

// Admission is the outcome of a successful admission check.
type Admission struct {
	Judge    *models.Judge
	Snapshot competition.Snapshot
}

// Admit checks that credential is valid, belongs to judgeID, and that the
// judge's competition is active. Failures are *RejectError.
func (g *Gateway) Admit(ctx context.Context, credential string, judgeID int64) (Admission, error) {
	if credential == "" {
		return Admission{}, reject(CloseMissingToken, "missing token", timing.ErrAuth)
	}

	principal, err := g.verifier.Verify(ctx, credential)
	if err != nil {
		if auth.IsAuthError(err) {
			return Admission{}, reject(CloseInvalidToken, "invalid token", fmt.Errorf("%w: %w", timing.ErrAuth, err))
		}
		return Admission{}, reject(CloseInternalError, "internal error", err)
	}
	if principal.JudgeID != judgeID {
		return Admission{}, reject(CloseJudgeMismatch, "token does not belong to this judge", timing.ErrAuth)
	}

	judge, err := g.judges.GetJudge(ctx, judgeID)
	if err != nil {
		if errors.Is(err, judges.ErrNotFound) {
			return Admission{}, reject(CloseInvalidToken, "unknown judge", timing.ErrAuth)
		}
		return Admission{}, reject(CloseInternalError, "internal error", err)
	}
	if !judge.Active {
		return Admission{}, reject(CloseInvalidToken, "judge is inactive", timing.ErrAuth)
	}

	snap, err := g.activeSnapshot(ctx, judge.CompetitionID)
	if err != nil {
		return Admission{}, err
	}
	return Admission{Judge: judge, Snapshot: snap}, nil
}

// activeSnapshot reads the competition and refuses inactive ones.
func (g *Gateway) activeSnapshot(ctx context.Context, competitionID int64) (competition.Snapshot, error) {
	snap, err := g.state.Read(ctx, competitionID)
	if err != nil {
		if errors.Is(err, competition.ErrNotFound) {
			return competition.Snapshot{}, reject(CloseNotActive, "competition not found", timing.ErrState)
		}
		return competition.Snapshot{}, reject(CloseInternalError, "internal error", err)
	}
	if !snap.Active() {
		return competition.Snapshot{}, reject(CloseNotActive, "competition is not active", timing.ErrState)
	}
	return snap, nil
}
