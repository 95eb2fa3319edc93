package models

import "time"

// Progress is the per-(student, week) ledger row. The aggregate Points must
// equal the sum of its component fields after every update; components are
// rewritten by subtracting the old value and adding the new one inside a
// row-locked transaction, never by blind overwrite.
type Progress struct {
	ID                  string     `db:"id" json:"id"`
	UserID              string     `db:"user_id" json:"user_id"`
	WeekID              string     `db:"week_id" json:"week_id"`
	VideoWatched        bool       `db:"video_watched" json:"video_watched"`
	VideoProgress       int        `db:"video_progress" json:"video_progress"`
	AssignmentSubmitted bool       `db:"assignment_submitted" json:"assignment_submitted"`
	QuizSubmitted       bool       `db:"quiz_submitted" json:"quiz_submitted"`
	VideoPoints         int        `db:"video_points" json:"video_points"`
	AssignmentPoints    int        `db:"assignment_points" json:"assignment_points"`
	QuizPoints          int        `db:"quiz_points" json:"quiz_points"`
	BonusPoints         int        `db:"bonus_points" json:"bonus_points"`
	Points              int        `db:"points" json:"points"`
	Completed           bool       `db:"completed" json:"completed"`
	IsLocked            bool       `db:"is_locked" json:"is_locked"`
	UnlockedAt          *time.Time `db:"unlocked_at" json:"unlocked_at,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt           time.Time  `db:"updated_at" json:"updated_at"`
}

// PhaseProgress summarises a student's standing within one phase.
type PhaseProgress struct {
	PhaseID            string  `json:"phase_id"`
	PhaseNumber        int     `json:"phase_number"`
	TotalWeeks         int     `json:"total_weeks"`
	CompletedWeeks     int     `json:"completed_weeks"`
	EarnedPoints       int     `json:"earned_points"`
	PossiblePoints     int     `json:"possible_points"`
	PointsPercentage   float64 `json:"points_percentage"`
	RequiredPercentage float64 `json:"required_percentage"`
	RequirementsMet    bool    `json:"requirements_met"`
	AwaitingApproval   bool    `json:"awaiting_approval"`
}

// VideoProgressRequest reports watched percentage for a week's video.
type VideoProgressRequest struct {
	Progress  int  `json:"progress" validate:"min=0,max=100"`
	Completed bool `json:"completed"`
}
