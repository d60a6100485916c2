package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/mcdev12/racetime/go/internal/auth"
	"github.com/mcdev12/racetime/go/internal/dbconfig"
	"github.com/mcdev12/racetime/go/internal/models"
)

const defaultSeedPath = "go/internal/assets/race.json"

// Seed mirrors the JSON snapshot layout
type Seed struct {
	Competitions []Competition `json:"competitions"`
	Judges       []Judge       `json:"judges"`
	Teams        []Team        `json:"teams"`
}

type Competition struct {
	ID          int64      `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	ScheduledAt *time.Time `json:"scheduled_at"`
	Active      bool       `json:"active"`
}

type Judge struct {
	ID            int64  `json:"id"`
	CompetitionID int64  `json:"competition_id"`
	Username      string `json:"username"`
	Password      string `json:"password"`
	FirstName     string `json:"first_name"`
	LastName      string `json:"last_name"`
	Email         string `json:"email"`
	Active        bool   `json:"active"`
}

type Team struct {
	ID       int64               `json:"id"`
	JudgeID  int64               `json:"judge_id"`
	Name     string              `json:"name"`
	Number   int                 `json:"number"`
	Category models.TeamCategory `json:"category"`
}

type counts struct {
	total, upserted, errs int
}

func (c counts) String() string {
	return fmt.Sprintf("%d total, %d upserted, %d errors", c.total, c.upserted, c.errs)
}

func main() {
	path := defaultSeedPath
	if len(os.Args) > 1 {
		path = os.Args[1]
	}

	// 1) Load the JSON snapshot
	seed, err := loadSeed(path)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load seed: %v\n", err)
		os.Exit(1)
	}

	// 2) Connect using shared dbconfig
	ctx := context.Background()
	cfg := dbconfig.NewConfigFromEnv()
	pool, err := pgxpool.New(ctx, cfg.DSN())
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	defer pool.Close()

	// 3) Upsert in dependency order
	fmt.Printf("Competitions: %s\n", seedCompetitions(ctx, pool, seed.Competitions))
	fmt.Printf("Judges: %s\n", seedJudges(ctx, pool, seed.Judges))
	fmt.Printf("Teams: %s\n", seedTeams(ctx, pool, seed.Teams))

	// 4) Move the id sequences past the seeded ids
	for _, table := range []string{"competitions", "judges", "teams"} {
		if _, err := pool.Exec(ctx, fmt.Sprintf(
			`SELECT setval(pg_get_serial_sequence('%[1]s', 'id'), COALESCE((SELECT MAX(id) FROM %[1]s), 1))`, table,
		)); err != nil {
			fmt.Fprintf(os.Stderr, "reset %s sequence: %v\n", table, err)
		}
	}
}

func loadSeed(path string) (*Seed, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read JSON: %w", err)
	}
	var seed Seed
	if err := json.Unmarshal(data, &seed); err != nil {
		return nil, fmt.Errorf("unmarshal JSON: %w", err)
	}
	if err := seed.validate(); err != nil {
		return nil, err
	}
	return &seed, nil
}

// validate checks references inside the file so a bad snapshot fails before
// anything is written.
func (s *Seed) validate() error {
	competitions := make(map[int64]bool, len(s.Competitions))
	for _, c := range s.Competitions {
		if c.ID <= 0 || c.Name == "" {
			return fmt.Errorf("competition %d: id and name are required", c.ID)
		}
		competitions[c.ID] = true
	}

	judges := make(map[int64]bool, len(s.Judges))
	for _, j := range s.Judges {
		if j.ID <= 0 || j.Username == "" || j.Password == "" {
			return fmt.Errorf("judge %d: id, username and password are required", j.ID)
		}
		if !competitions[j.CompetitionID] {
			return fmt.Errorf("judge %s: unknown competition %d", j.Username, j.CompetitionID)
		}
		judges[j.ID] = true
	}

	for _, t := range s.Teams {
		if t.ID <= 0 || t.Name == "" {
			return fmt.Errorf("team %d: id and name are required", t.ID)
		}
		if !judges[t.JudgeID] {
			return fmt.Errorf("team %s: unknown judge %d", t.Name, t.JudgeID)
		}
		switch t.Category {
		case "", models.TeamCategoryStudents, models.TeamCategoryFaculty:
		default:
			return fmt.Errorf("team %s: unknown category %q", t.Name, t.Category)
		}
	}
	return nil
}

func seedCompetitions(ctx context.Context, pool *pgxpool.Pool, rows []Competition) counts {
	c := counts{total: len(rows)}
	for _, row := range rows {
		err := exec(ctx, pool, `
            INSERT INTO competitions (id, name, description, scheduled_at, is_active)
            VALUES ($1, $2, NULLIF($3, ''), $4, $5)
            ON CONFLICT (id) DO UPDATE
              SET name = EXCLUDED.name,
                  description = EXCLUDED.description,
                  scheduled_at = EXCLUDED.scheduled_at,
                  is_active = EXCLUDED.is_active OR competitions.is_running,
                  updated_at = now()
        `, row.ID, row.Name, row.Description, row.ScheduledAt, row.Active)
		c.record(err, "competition", row.ID)
	}
	return c
}

func seedJudges(ctx context.Context, pool *pgxpool.Pool, rows []Judge) counts {
	c := counts{total: len(rows)}
	for _, row := range rows {
		hash, err := auth.HashPassword(row.Password)
		if err == nil {
			err = exec(ctx, pool, `
                INSERT INTO judges (id, competition_id, username, password_hash, first_name, last_name, email, is_active)
                VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
                ON CONFLICT (id) DO UPDATE
                  SET competition_id = EXCLUDED.competition_id,
                      username = EXCLUDED.username,
                      password_hash = EXCLUDED.password_hash,
                      first_name = EXCLUDED.first_name,
                      last_name = EXCLUDED.last_name,
                      email = EXCLUDED.email,
                      is_active = EXCLUDED.is_active
            `, row.ID, row.CompetitionID, row.Username, hash, row.FirstName, row.LastName, row.Email, row.Active)
		}
		c.record(err, "judge", row.ID)
	}
	return c
}

func seedTeams(ctx context.Context, pool *pgxpool.Pool, rows []Team) counts {
	c := counts{total: len(rows)}
	for _, row := range rows {
		category := row.Category
		if category == "" {
			category = models.TeamCategoryStudents
		}
		err := exec(ctx, pool, `
            INSERT INTO teams (id, judge_id, name, number, category)
            VALUES ($1, $2, $3, $4, $5)
            ON CONFLICT (id) DO UPDATE
              SET judge_id = EXCLUDED.judge_id,
                  name = EXCLUDED.name,
                  number = EXCLUDED.number,
                  category = EXCLUDED.category
        `, row.ID, row.JudgeID, row.Name, row.Number, string(category))
		c.record(err, "team", row.ID)
	}
	return c
}

func exec(ctx context.Context, pool *pgxpool.Pool, sql string, args ...any) error {
	_, err := pool.Exec(ctx, sql, args...)
	return err
}

func (c *counts) record(err error, kind string, id int64) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "error upserting %s %d: %v\n", kind, id, err)
		c.errs++
		return
	}
	c.upserted++
}
