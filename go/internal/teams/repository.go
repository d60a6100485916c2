package teams

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/sqlutil"
)

var ErrNotFound = errors.New("team not found")

// The competition is derived through the assigned judge.
const teamSelect = `
	SELECT t.id, t.judge_id, j.competition_id, t.name, t.number, t.category, t.created_at
	FROM teams t
	JOIN judges j ON j.id = t.judge_id`

// Repository implements team data access operations
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new teams repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// GetTeam retrieves a team by ID
func (r *Repository) GetTeam(ctx context.Context, id int64) (*models.Team, error) {
	row := r.db.QueryRow(ctx, teamSelect+` WHERE t.id = $1`, id)
	t, err := scanTeam(row)
	if err != nil {
		if sqlutil.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get team: %w", err)
	}
	return t, nil
}

// ListTeamsByJudge retrieves the teams assigned to a judge, ordered by number
func (r *Repository) ListTeamsByJudge(ctx context.Context, judgeID int64) ([]models.Team, error) {
	rows, err := r.db.Query(ctx, teamSelect+` WHERE t.judge_id = $1 ORDER BY t.number, t.id`, judgeID)
	if err != nil {
		return nil, fmt.Errorf("failed to list teams by judge: %w", err)
	}
	defer rows.Close()

	var teams []models.Team
	for rows.Next() {
		t, err := scanTeam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan team: %w", err)
		}
		teams = append(teams, *t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list teams by judge: %w", err)
	}
	return teams, nil
}

func scanTeam(row pgx.Row) (*models.Team, error) {
	var (
		t        models.Team
		category string
	)
	if err := row.Scan(&t.ID, &t.JudgeID, &t.CompetitionID, &t.Name, &t.Number, &category, &t.CreatedAt); err != nil {
		return nil, err
	}
	t.Category = models.TeamCategory(category)
	return &t, nil
}
