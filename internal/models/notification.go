package models

import "time"

// NotificationType identifies realtime event payloads.
type NotificationType string

const (
	NotifySubmissionReceived NotificationType = "submission_received"
	NotifySubmissionReviewed NotificationType = "submission_reviewed"
	NotifyWeekUnlocked       NotificationType = "week_unlocked"
	NotifyPhaseCompleted     NotificationType = "phase_completed"
	NotifyPhaseApproved      NotificationType = "phase_approved"
	NotifyCertificateIssued  NotificationType = "certificate_issued"
)

// Notification is the event payload published to connected clients.
type Notification struct {
	Type      NotificationType       `json:"type"`
	UserID    string                 `json:"user_id,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}
