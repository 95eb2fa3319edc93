package models

import "time"

// Certificate is issued at most once per student on course completion.
type Certificate struct {
	ID                   string    `db:"id" json:"id"`
	UserID               string    `db:"user_id" json:"user_id"`
	CertificateID        string    `db:"certificate_id" json:"certificate_id"`
	FilePath             string    `db:"file_path" json:"file_path"`
	TotalPoints          int       `db:"total_points" json:"total_points"`
	CompletionPercentage float64   `db:"completion_percentage" json:"completion_percentage"`
	DurationDays         int       `db:"duration_days" json:"duration_days"`
	EmailSent            bool      `db:"email_sent" json:"email_sent"`
	IssuedAt             time.Time `db:"issued_at" json:"issued_at"`
}
