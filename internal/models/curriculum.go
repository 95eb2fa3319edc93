package models

import "time"

// Default point split per week when none is configured.
const (
	DefaultVideoPoints      = 40
	DefaultAssignmentPoints = 60
)

// Phase is an ordered block of curriculum weeks. RequiredPointsPercentage is
// the threshold a student must reach before an admin may advance them, fixed
// at seeding time.
type Phase struct {
	ID                       string    `db:"id" json:"id"`
	Number                   int       `db:"number" json:"number"`
	Title                    string    `db:"title" json:"title"`
	Description              *string   `db:"description" json:"description,omitempty"`
	StartWeek                int       `db:"start_week" json:"start_week"`
	EndWeek                  int       `db:"end_week" json:"end_week"`
	RequiredPointsPercentage float64   `db:"required_points_percentage" json:"required_points_percentage"`
	CreatedAt                time.Time `db:"created_at" json:"created_at"`
	UpdatedAt                time.Time `db:"updated_at" json:"updated_at"`
	Weeks                    []Week    `json:"weeks,omitempty"`
}

// Week belongs to a phase; week_number is unique within the phase.
type Week struct {
	ID               string    `db:"id" json:"id"`
	PhaseID          string    `db:"phase_id" json:"phase_id"`
	WeekNumber       int       `db:"week_number" json:"week_number"`
	Title            string    `db:"title" json:"title"`
	VideoPoints      int       `db:"video_points" json:"video_points"`
	AssignmentPoints int       `db:"assignment_points" json:"assignment_points"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time `db:"updated_at" json:"updated_at"`
}

// MaxPoints is the full point budget for the week.
func (w Week) MaxPoints() int {
	return w.VideoPoints + w.AssignmentPoints
}

// WeekWithState decorates a week with the requesting student's ledger state.
type WeekWithState struct {
	Week
	IsLocked  bool `json:"is_locked"`
	Completed bool `json:"completed"`
	Points    int  `json:"points"`
}
