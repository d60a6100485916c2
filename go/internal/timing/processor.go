package timing

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"github.com/mcdev12/racetime/go/internal/competition"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/teams"
	"github.com/rs/zerolog/log"
)

const (
	DefaultMaxRecordsPerTeam = 15
	DefaultMaxBatchEntries   = 15
)

// Principal identifies the judge a command is executed for.
type Principal struct {
	JudgeID       int64
	CompetitionID int64
}

// StateReader is the read side of the competition state store.
type StateReader interface {
	Read(ctx context.Context, id int64) (competition.Snapshot, error)
}

// TeamFinder resolves teams.
type TeamFinder interface {
	GetTeam(ctx context.Context, id int64) (*models.Team, error)
}

// RecordStore persists time records.
type RecordStore interface {
	// InsertForTeam stores rec unless a record with the same ID exists, in
	// which case the stored record is returned with duplicate set. It fails
	// with ErrRecordLimit when the team already holds limit records.
	InsertForTeam(ctx context.Context, rec models.TimeRecord, limit int) (stored models.TimeRecord, duplicate bool, err error)
	ListByTeam(ctx context.Context, teamID int64) ([]models.TimeRecord, error)
}

// Submission is a single submit_time command.
type Submission struct {
	TeamID    int64
	ElapsedMs int64
	RecordID  uuid.UUID // optional; uuid.Nil assigns a new id
	Timestamp time.Time // optional; zero uses the server clock
}

// Receipt acknowledges a stored record.
type Receipt struct {
	Record    models.TimeRecord
	Team      models.Team
	Duplicate bool
}

type Config struct {
	MaxRecordsPerTeam int
	MaxBatchEntries   int
}

func DefaultConfig() Config {
	return Config{
		MaxRecordsPerTeam: DefaultMaxRecordsPerTeam,
		MaxBatchEntries:   DefaultMaxBatchEntries,
	}
}

// Processor validates and executes time submissions.
type Processor struct {
	state   StateReader
	teams   TeamFinder
	records RecordStore
	clock   clockwork.Clock
	cfg     Config
}

// NewProcessor creates a new command processor
func NewProcessor(state StateReader, teams TeamFinder, records RecordStore, clock clockwork.Clock, cfg Config) *Processor {
	if clock == nil {
		clock = clockwork.NewRealClock()
	}
	if cfg.MaxBatchEntries <= 0 {
		cfg.MaxBatchEntries = DefaultMaxBatchEntries
	}
	return &Processor{state: state, teams: teams, records: records, clock: clock, cfg: cfg}
}

// SubmitTime checks ownership and competition state, then persists one record.
// Ownership is checked first so that a foreign team is always refused with
// ErrOwnership, whatever the competition state.
func (p *Processor) SubmitTime(ctx context.Context, who Principal, sub Submission) (Receipt, error) {
	if sub.TeamID <= 0 {
		return Receipt{}, fmt.Errorf("%w: teamId is required", ErrValidation)
	}
	if sub.ElapsedMs < 0 {
		return Receipt{}, fmt.Errorf("%w: elapsedMs must not be negative", ErrValidation)
	}

	team, err := p.ownedTeam(ctx, who, sub.TeamID)
	if err != nil {
		return Receipt{}, err
	}

	snap, err := p.state.Read(ctx, who.CompetitionID)
	if err != nil {
		if errors.Is(err, competition.ErrNotFound) {
			return Receipt{}, ErrState
		}
		return Receipt{}, fmt.Errorf("%w: read competition state: %w", ErrStorage, err)
	}
	if !snap.InProgress() {
		return Receipt{}, ErrState
	}

	now := p.clock.Now().UTC()
	id := sub.RecordID
	if id == uuid.Nil {
		id = uuid.New()
	}
	ts := sub.Timestamp
	if ts.IsZero() {
		ts = now
	}

	rec := NewTimeRecord(id, team.ID, sub.ElapsedMs, ts.UTC(), now)
	stored, duplicate, err := p.records.InsertForTeam(ctx, rec, p.cfg.MaxRecordsPerTeam)
	if err != nil {
		if errors.Is(err, ErrRecordLimit) || errors.Is(err, ErrValidation) {
			return Receipt{}, err
		}
		return Receipt{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}

	log.Info().
		Int64("judge_id", who.JudgeID).
		Int64("team_id", team.ID).
		Str("record_id", stored.ID.String()).
		Int64("elapsed_ms", stored.ElapsedMs).
		Bool("duplicate", duplicate).
		Msg("time recorded")

	return Receipt{Record: stored, Team: *team, Duplicate: duplicate}, nil
}

// TeamStatus summarizes the records a judge has stored for one of their teams.
type TeamStatus struct {
	Team    models.Team
	Records []models.TimeRecord // ordered by elapsed time
	Max     int
}

func (s TeamStatus) CanSubmit() bool {
	return s.Max <= 0 || len(s.Records) < s.Max
}

// TeamStatus returns the stored records of a team owned by the judge.
func (p *Processor) TeamStatus(ctx context.Context, who Principal, teamID int64) (TeamStatus, error) {
	team, err := p.ownedTeam(ctx, who, teamID)
	if err != nil {
		return TeamStatus{}, err
	}
	records, err := p.records.ListByTeam(ctx, team.ID)
	if err != nil {
		return TeamStatus{}, fmt.Errorf("%w: %w", ErrStorage, err)
	}
	return TeamStatus{Team: *team, Records: records, Max: p.cfg.MaxRecordsPerTeam}, nil
}

func (p *Processor) ownedTeam(ctx context.Context, who Principal, teamID int64) (*models.Team, error) {
	team, err := p.teams.GetTeam(ctx, teamID)
	if err != nil {
		if errors.Is(err, teams.ErrNotFound) {
			return nil, fmt.Errorf("%w: team %d", ErrOwnership, teamID)
		}
		return nil, fmt.Errorf("%w: resolve team: %w", ErrStorage, err)
	}
	if team.JudgeID != who.JudgeID {
		return nil, fmt.Errorf("%w: team %d", ErrOwnership, teamID)
	}
	return team, nil
}
