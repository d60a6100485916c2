// Package testutil provides in-memory stand-ins for the Postgres
// repositories, with the same error contracts, for unit tests.
package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/judges"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/teams"
	"github.com/mcdev12/racetime/go/internal/timing"
)

// ErrInjected is returned by stores configured to fail.
var ErrInjected = errors.New("injected storage failure")

// Competitions is an in-memory competition.Backend.
type Competitions struct {
	mu   sync.Mutex
	rows map[int64]models.Competition
	fail bool
}

func NewCompetitions(rows ...models.Competition) *Competitions {
	c := &Competitions{rows: make(map[int64]models.Competition)}
	for _, r := range rows {
		c.store(r)
	}
	return c
}

// Put inserts or replaces a row, bypassing transition rules.
func (c *Competitions) Put(row models.Competition) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.store(row)
}

// store saves row with the next version, as the database trigger does.
func (c *Competitions) store(row models.Competition) models.Competition {
	row.Version = max(row.Version, 1)
	if prev, ok := c.rows[row.ID]; ok {
		row.Version = prev.Version + 1
	}
	c.rows[row.ID] = row
	return row
}

// Fail makes every subsequent call return ErrInjected.
func (c *Competitions) Fail(fail bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fail = fail
}

func (c *Competitions) GetCompetition(_ context.Context, id int64) (*models.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, ErrInjected
	}
	row, ok := c.rows[id]
	if !ok {
		return nil, competition.ErrNotFound
	}
	return &row, nil
}

func (c *Competitions) ListCompetitions(_ context.Context) ([]models.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, ErrInjected
	}
	out := make([]models.Competition, 0, len(c.rows))
	for _, r := range c.rows {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (c *Competitions) FindRunning(_ context.Context) (*models.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, ErrInjected
	}
	for _, r := range c.rows {
		if r.Running {
			row := r
			return &row, nil
		}
	}
	return nil, nil
}

func (c *Competitions) MarkStarted(_ context.Context, id int64, at time.Time) (*models.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, ErrInjected
	}
	row, ok := c.rows[id]
	switch {
	case !ok:
		return nil, competition.ErrNotFound
	case row.Running:
		return nil, competition.ErrAlreadyRunning
	case !row.Active:
		return nil, competition.ErrNotActive
	}
	for _, other := range c.rows {
		if other.Running {
			return nil, competition.ErrAnotherRunning
		}
	}
	row.Running = true
	row.StartedAt = &at
	row.FinishedAt = nil
	row.UpdatedAt = at
	row = c.store(row)
	return &row, nil
}

func (c *Competitions) MarkStopped(_ context.Context, id int64, at time.Time) (*models.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, ErrInjected
	}
	row, ok := c.rows[id]
	switch {
	case !ok:
		return nil, competition.ErrNotFound
	case !row.Running:
		return nil, competition.ErrNotRunning
	}
	row.Running = false
	row.FinishedAt = &at
	row.UpdatedAt = at
	row = c.store(row)
	return &row, nil
}

func (c *Competitions) SetActive(_ context.Context, id int64, active bool, at time.Time) (*models.Competition, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return nil, ErrInjected
	}
	row, ok := c.rows[id]
	switch {
	case !ok:
		return nil, competition.ErrNotFound
	case !active && row.Running:
		return nil, competition.ErrStillRunning
	}
	row.Active = active
	row.UpdatedAt = at
	row = c.store(row)
	return &row, nil
}

// Judges is an in-memory judge directory.
type Judges struct {
	mu   sync.Mutex
	rows map[int64]models.Judge
}

func NewJudges(rows ...models.Judge) *Judges {
	j := &Judges{rows: make(map[int64]models.Judge)}
	for _, r := range rows {
		j.rows[r.ID] = r
	}
	return j
}

func (j *Judges) Put(row models.Judge) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.rows[row.ID] = row
}

func (j *Judges) GetJudge(_ context.Context, id int64) (*models.Judge, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	row, ok := j.rows[id]
	if !ok {
		return nil, judges.ErrNotFound
	}
	return &row, nil
}

func (j *Judges) GetJudgeByUsername(_ context.Context, username string) (*models.Judge, error) {
	j.mu.Lock()
	defer j.mu.Unlock()
	for _, row := range j.rows {
		if row.Username == username {
			r := row
			return &r, nil
		}
	}
	return nil, judges.ErrNotFound
}

// Teams is an in-memory team directory.
type Teams struct {
	mu   sync.Mutex
	rows map[int64]models.Team
}

func NewTeams(rows ...models.Team) *Teams {
	t := &Teams{rows: make(map[int64]models.Team)}
	for _, r := range rows {
		t.rows[r.ID] = r
	}
	return t
}

func (t *Teams) GetTeam(_ context.Context, id int64) (*models.Team, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	row, ok := t.rows[id]
	if !ok {
		return nil, teams.ErrNotFound
	}
	return &row, nil
}

func (t *Teams) ListTeamsByJudge(_ context.Context, judgeID int64) ([]models.Team, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []models.Team
	for _, row := range t.rows {
		if row.JudgeID == judgeID {
			out = append(out, row)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// Records is an in-memory timing.RecordStore.
type Records struct {
	mu     sync.Mutex
	rows   []models.TimeRecord
	failAt map[int]bool // insert attempt numbers (0-based) that fail
	calls  int
}

func NewRecords() *Records {
	return &Records{failAt: make(map[int]bool)}
}

// FailInsert makes the n-th insert attempt (0-based) fail with ErrInjected.
func (r *Records) FailInsert(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failAt[n] = true
}

func (r *Records) InsertForTeam(_ context.Context, rec models.TimeRecord, limit int) (models.TimeRecord, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	attempt := r.calls
	r.calls++
	if r.failAt[attempt] {
		return models.TimeRecord{}, false, ErrInjected
	}

	count := 0
	for _, existing := range r.rows {
		if existing.ID == rec.ID {
			if existing.TeamID != rec.TeamID {
				return models.TimeRecord{}, false, timing.ErrValidation
			}
			return existing, true, nil
		}
		if existing.TeamID == rec.TeamID {
			count++
		}
	}
	if limit > 0 && count >= limit {
		return models.TimeRecord{}, false, timing.ErrRecordLimit
	}
	r.rows = append(r.rows, rec)
	return rec, false, nil
}

func (r *Records) ListByTeam(_ context.Context, teamID int64) ([]models.TimeRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.TimeRecord
	for _, rec := range r.rows {
		if rec.TeamID == teamID {
			out = append(out, rec)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].ElapsedMs < out[j].ElapsedMs })
	return out, nil
}

// Count returns the number of stored records across all teams.
func (r *Records) Count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}
