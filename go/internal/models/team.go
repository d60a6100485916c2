package models

import "time"

// TeamCategory groups teams for results.
type TeamCategory string

const (
	TeamCategoryStudents TeamCategory = "students"
	TeamCategoryFaculty  TeamCategory = "faculty"
)

// Team is a competing entity timed by exactly one judge.
type Team struct {
	ID            int64        `json:"id"`
	JudgeID       int64        `json:"judge_id"`
	CompetitionID int64        `json:"competition_id"` // derived through the judge
	Name          string       `json:"name"`
	Number        int          `json:"number"`
	Category      TeamCategory `json:"category"`
	CreatedAt     time.Time    `json:"created_at"`
}
