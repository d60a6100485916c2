package judges

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/sqlutil"
)

var ErrNotFound = errors.New("judge not found")

const judgeColumns = `id, competition_id, username, password_hash, first_name, last_name, email, is_active, created_at`

// Repository implements judge data access operations
type Repository struct {
	db sqlutil.DBTX
}

// NewRepository creates a new judges repository
func NewRepository(db sqlutil.DBTX) *Repository {
	return &Repository{db: db}
}

// GetJudge retrieves a judge by ID
func (r *Repository) GetJudge(ctx context.Context, id int64) (*models.Judge, error) {
	row := r.db.QueryRow(ctx, `SELECT `+judgeColumns+` FROM judges WHERE id = $1`, id)
	j, err := scanJudge(row)
	if err != nil {
		if sqlutil.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get judge: %w", err)
	}
	return j, nil
}

// GetJudgeByUsername retrieves a judge by login name
func (r *Repository) GetJudgeByUsername(ctx context.Context, username string) (*models.Judge, error) {
	row := r.db.QueryRow(ctx, `SELECT `+judgeColumns+` FROM judges WHERE username = $1`, username)
	j, err := scanJudge(row)
	if err != nil {
		if sqlutil.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get judge by username: %w", err)
	}
	return j, nil
}

func scanJudge(row pgx.Row) (*models.Judge, error) {
	var j models.Judge
	if err := row.Scan(
		&j.ID, &j.CompetitionID, &j.Username, &j.PasswordHash,
		&j.FirstName, &j.LastName, &j.Email, &j.Active, &j.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &j, nil
}
