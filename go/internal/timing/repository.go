package timing

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/mcdev12/racetime/go/internal/models"
	"github.com/mcdev12/racetime/go/internal/sqlutil"
	"github.com/mcdev12/racetime/go/internal/teams"
)

const recordColumns = `id, team_id, elapsed_ms, hours, minutes, seconds, milliseconds, recorded_at, created_at`

// Pool is satisfied by *pgxpool.Pool.
type Pool interface {
	sqlutil.DBTX
	sqlutil.TxStarter
}

// Repository stores time records in Postgres.
type Repository struct {
	db Pool
}

// NewRepository creates a new time record repository
func NewRepository(db Pool) *Repository {
	return &Repository{db: db}
}

type insertResult struct {
	record    models.TimeRecord
	duplicate bool
}

// InsertForTeam stores a record under a lock on the team row, so the
// duplicate check, the limit check and the insert see a consistent count.
func (r *Repository) InsertForTeam(ctx context.Context, rec models.TimeRecord, limit int) (models.TimeRecord, bool, error) {
	res, err := sqlutil.Run(ctx, r.db, func(tx pgx.Tx) (insertResult, error) {
		var locked int64
		if err := tx.QueryRow(ctx, `SELECT id FROM teams WHERE id = $1 FOR UPDATE`, rec.TeamID).Scan(&locked); err != nil {
			if sqlutil.IsNoRows(err) {
				return insertResult{}, teams.ErrNotFound
			}
			return insertResult{}, fmt.Errorf("failed to lock team: %w", err)
		}

		existing, err := getRecord(ctx, tx, rec.ID)
		switch {
		case err == nil:
			if existing.TeamID != rec.TeamID {
				return insertResult{}, fmt.Errorf("%w: record id %s belongs to another team", ErrValidation, rec.ID)
			}
			return insertResult{record: *existing, duplicate: true}, nil
		case !sqlutil.IsNoRows(err):
			return insertResult{}, fmt.Errorf("failed to look up record: %w", err)
		}

		if limit > 0 {
			var count int
			if err := tx.QueryRow(ctx, `SELECT COUNT(*) FROM time_records WHERE team_id = $1`, rec.TeamID).Scan(&count); err != nil {
				return insertResult{}, fmt.Errorf("failed to count records: %w", err)
			}
			if count >= limit {
				return insertResult{}, fmt.Errorf("%w (%d)", ErrRecordLimit, limit)
			}
		}

		row := tx.QueryRow(ctx, `
			INSERT INTO time_records (`+recordColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
			RETURNING `+recordColumns,
			rec.ID, rec.TeamID, rec.ElapsedMs, rec.Hours, rec.Minutes, rec.Seconds, rec.Milliseconds,
			rec.Timestamp, rec.CreatedAt,
		)
		stored, err := scanRecord(row)
		if err != nil {
			return insertResult{}, fmt.Errorf("failed to insert record: %w", err)
		}
		return insertResult{record: *stored}, nil
	})
	if err != nil {
		return models.TimeRecord{}, false, err
	}
	return res.record, res.duplicate, nil
}

// ListByTeam returns a team's records ordered by elapsed time.
func (r *Repository) ListByTeam(ctx context.Context, teamID int64) ([]models.TimeRecord, error) {
	rows, err := r.db.Query(ctx, `SELECT `+recordColumns+` FROM time_records WHERE team_id = $1 ORDER BY elapsed_ms, created_at`, teamID)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var out []models.TimeRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	return out, nil
}

func getRecord(ctx context.Context, db sqlutil.DBTX, id uuid.UUID) (*models.TimeRecord, error) {
	return scanRecord(db.QueryRow(ctx, `SELECT `+recordColumns+` FROM time_records WHERE id = $1`, id))
}

func scanRecord(row pgx.Row) (*models.TimeRecord, error) {
	var rec models.TimeRecord
	if err := row.Scan(
		&rec.ID, &rec.TeamID, &rec.ElapsedMs,
		&rec.Hours, &rec.Minutes, &rec.Seconds, &rec.Milliseconds,
		&rec.Timestamp, &rec.CreatedAt,
	); err != nil {
		return nil, err
	}
	return &rec, nil
}
