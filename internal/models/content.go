package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// Question is a single multiple-choice question inside week content.
type Question struct {
	Prompt        string   `json:"prompt"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correct_answer"`
	Points        int      `json:"points"`
}

// PointsOrDefault returns the question's point value, defaulting to 1.
func (q Question) PointsOrDefault() int {
	if q.Points <= 0 {
		return 1
	}
	return q.Points
}

// Resource is a supplementary link or document attached to week content.
type Resource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
	Type  string `json:"type,omitempty"`
}

// QuestionList is a JSONB column of questions. Historical rows were written
// as a JSON-encoded string instead of a native array; Scan unwraps that once
// so nothing downstream has to parse defensively.
type QuestionList []Question

// Scan implements sql.Scanner.
func (l *QuestionList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

// Value implements driver.Valuer.
func (l QuestionList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

// ResourceList is a JSONB column of resources with the same legacy handling.
type ResourceList []Resource

// Scan implements sql.Scanner.
func (l *ResourceList) Scan(src interface{}) error {
	return scanJSONList(src, l)
}

// Value implements driver.Valuer.
func (l ResourceList) Value() (driver.Value, error) {
	if l == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(l)
}

func scanJSONList(src, dest interface{}) error {
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

	// Legacy rows hold a doubly encoded payload: a JSON string whose value
	// is itself the JSON array.
	var nested string
	if err := json.Unmarshal(raw, &nested); err == nil {
		raw = []byte(nested)
	}
	if len(raw) == 0 {
		return nil
	}

	return json.Unmarshal(raw, dest)
}

// Content holds the instructional material of a week (1:1 with Week).
type Content struct {
	ID                      string       `db:"id" json:"id"`
	WeekID                  string       `db:"week_id" json:"week_id"`
	Body                    string       `db:"body" json:"body"`
	VideoURL                *string      `db:"video_url" json:"video_url,omitempty"`
	VideoURLSecondary       *string      `db:"video_url_secondary" json:"video_url_secondary,omitempty"`
	MultipleChoiceQuestions QuestionList `db:"multiple_choice_questions" json:"multiple_choice_questions"`
	AssignmentDescription   *string      `db:"assignment_description" json:"assignment_description,omitempty"`
	AssignmentDeadline      *time.Time   `db:"assignment_deadline" json:"assignment_deadline,omitempty"`
	Resources               ResourceList `db:"resources" json:"resources"`
	CreatedAt               time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt               time.Time    `db:"updated_at" json:"updated_at"`
}

// QuizMaxScore sums the per-question point values.
func (c *Content) QuizMaxScore() int {
	total := 0
	for _, q := range c.MultipleChoiceQuestions {
		total += q.PointsOrDefault()
	}
	return total
}
