package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// SubmissionKind discriminates assignment and quiz submissions within the
// single submissions table.
type SubmissionKind string

const (
	KindAssignment SubmissionKind = "ASSIGNMENT"
	KindQuiz       SubmissionKind = "QUIZ"
)

// SubmissionStatus is the review lifecycle of a submission.
type SubmissionStatus string

const (
	StatusSubmitted SubmissionStatus = "SUBMITTED"
	StatusReviewed  SubmissionStatus = "REVIEWED"
	StatusApproved  SubmissionStatus = "APPROVED"
	StatusRejected  SubmissionStatus = "REJECTED"
)

// ValidStatus reports whether the status is allowed for the submission kind.
// Quiz submissions never carry the approval states.
func ValidStatus(kind SubmissionKind, status SubmissionStatus) bool {
	switch status {
	case StatusSubmitted, StatusReviewed:
		return true
	case StatusApproved, StatusRejected:
		return kind == KindAssignment
	default:
		return false
	}
}

// AnswerList is a JSONB column holding quiz answer indexes.
type AnswerList []int

// Scan implements sql.Scanner.
func (l *AnswerList) Scan(src interface{}) error {
	if src == nil {
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported column type %T", src)
	}
	if len(raw) == 0 {
		return nil
	}
	return json.Unmarshal(raw, l)
}

// Value implements driver.Valuer.
func (l AnswerList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// Submission is a student's work for a week, either an assignment or a quiz,
// unique per (user, week, kind).
type Submission struct {
	ID     string         `db:"id" json:"id"`
	UserID string         `db:"user_id" json:"user_id"`
	WeekID string         `db:"week_id" json:"week_id"`
	Kind   SubmissionKind `db:"kind" json:"kind"`

	// Assignment payload.
	FilePath *string `db:"file_path" json:"file_path,omitempty"`
	Link     *string `db:"link" json:"link,omitempty"`
	OnTime   bool    `db:"on_time" json:"on_time"`
	Feedback *string `db:"feedback" json:"feedback,omitempty"`

	// Quiz payload.
	Answers        AnswerList `db:"answers" json:"answers,omitempty"`
	TotalQuestions int        `db:"total_questions" json:"total_questions,omitempty"`

	Status     SubmissionStatus `db:"status" json:"status"`
	Score      *int             `db:"score" json:"score,omitempty"`
	ReviewerID *string          `db:"reviewer_id" json:"reviewer_id,omitempty"`
	ReviewedAt *time.Time       `db:"reviewed_at" json:"reviewed_at,omitempty"`
	CreatedAt  time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time        `db:"updated_at" json:"updated_at"`
}

// SubmissionFilter scopes submission listings.
type SubmissionFilter struct {
	UserID   string
	WeekID   string
	Kind     SubmissionKind
	Status   SubmissionStatus
	Page     int
	PageSize int
}
