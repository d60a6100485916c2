package competition

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/sqlutil"
)

const (
	competitionColumns = `id, name, description, scheduled_at, is_active, is_running, started_at, finished_at, created_at, updated_at, version`

	singleRunningIndex = "competitions_single_running"
)

// Repository implements competition data access on Postgres.
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new competition repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// GetCompetition retrieves a competition by ID
func (r *Repository) GetCompetition(ctx context.Context, id int64) (*models.Competition, error) {
	row := r.db.QueryRow(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE id = $1`, id)
	c, err := scanCompetition(row)
	if err != nil {
		if sqlutil.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get competition: %w", err)
	}
	return c, nil
}

// ListCompetitions retrieves all competitions ordered by ID
func (r *Repository) ListCompetitions(ctx context.Context) ([]models.Competition, error) {
	rows, err := r.db.Query(ctx, `SELECT `+competitionColumns+` FROM competitions ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	defer rows.Close()

	var out []models.Competition
	for rows.Next() {
		c, err := scanCompetition(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan competition: %w", err)
		}
		out = append(out, *c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list competitions: %w", err)
	}
	return out, nil
}

// FindRunning returns the running competition, or nil when none runs.
func (r *Repository) FindRunning(ctx context.Context) (*models.Competition, error) {
	row := r.db.QueryRow(ctx, `SELECT `+competitionColumns+` FROM competitions WHERE is_running LIMIT 1`)
	c, err := scanCompetition(row)
	if err != nil {
		if sqlutil.IsNoRows(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find running competition: %w", err)
	}
	return c, nil
}

// MarkStarted flips an active, stopped competition to running.
func (r *Repository) MarkStarted(ctx context.Context, id int64, at time.Time) (*models.Competition, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE competitions
		SET is_running = TRUE, started_at = $2, finished_at = NULL, updated_at = $2
		WHERE id = $1 AND is_active AND NOT is_running
		RETURNING `+competitionColumns, id, at)
	c, err := scanCompetition(row)
	switch {
	case err == nil:
		return c, nil
	case sqlutil.IsUniqueViolation(err, singleRunningIndex):
		return nil, ErrAnotherRunning
	case sqlutil.IsNoRows(err):
		return nil, r.explainStartConflict(ctx, id)
	}
	return nil, fmt.Errorf("failed to start competition: %w", err)
}

// MarkStopped flips a running competition to finished.
func (r *Repository) MarkStopped(ctx context.Context, id int64, at time.Time) (*models.Competition, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE competitions
		SET is_running = FALSE, finished_at = $2, updated_at = $2
		WHERE id = $1 AND is_running
		RETURNING `+competitionColumns, id, at)
	c, err := scanCompetition(row)
	if err == nil {
		return c, nil
	}
	if !sqlutil.IsNoRows(err) {
		return nil, fmt.Errorf("failed to stop competition: %w", err)
	}
	if _, err := r.GetCompetition(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrNotRunning
}

// SetActive toggles the active flag. A running competition cannot be deactivated.
func (r *Repository) SetActive(ctx context.Context, id int64, active bool, at time.Time) (*models.Competition, error) {
	row := r.db.QueryRow(ctx, `
		UPDATE competitions
		SET is_active = $2, updated_at = $3
		WHERE id = $1 AND ($2 OR NOT is_running)
		RETURNING `+competitionColumns, id, active, at)
	c, err := scanCompetition(row)
	if err == nil {
		return c, nil
	}
	if !sqlutil.IsNoRows(err) {
		return nil, fmt.Errorf("failed to update competition: %w", err)
	}
	if _, err := r.GetCompetition(ctx, id); err != nil {
		return nil, err
	}
	return nil, ErrStillRunning
}

func (r *Repository) explainStartConflict(ctx context.Context, id int64) error {
	c, err := r.GetCompetition(ctx, id)
	if err != nil {
		return err
	}
	if c.Running {
		return ErrAlreadyRunning
	}
	return ErrNotActive
}

func scanCompetition(row pgx.Row) (*models.Competition, error) {
	var (
		c           models.Competition
		description pgtype.Text
		scheduledAt pgtype.Timestamptz
		startedAt   pgtype.Timestamptz
		finishedAt  pgtype.Timestamptz
	)
	if err := row.Scan(
		&c.ID, &c.Name, &description, &scheduledAt, &c.Active, &c.Running,
		&startedAt, &finishedAt, &c.CreatedAt, &c.UpdatedAt, &c.Version,
	); err != nil {
		return nil, err
	}
	c.Description = sqlutil.FromText(description)
	c.ScheduledAt = sqlutil.FromTimestamptz(scheduledAt)
	c.StartedAt = sqlutil.FromTimestamptz(startedAt)
	c.FinishedAt = sqlutil.FromTimestamptz(finishedAt)
	return &c, nil
}
