package dto

import "github.com/arkan-dev/bootcamp-api/internal/models"

// StudentDashboardResponse aggregates a student's standing across the course.
type StudentDashboardResponse struct {
	UserID           string                 `json:"userId"`
	FullName         string                 `json:"fullName"`
	CurrentPhase     int                    `json:"currentPhase"`
	CurrentWeek      int                    `json:"currentWeek"`
	TotalPoints      int                    `json:"totalPoints"`
	CompletedWeeks   int                    `json:"completedWeeks"`
	TotalWeeks       int                    `json:"totalWeeks"`
	CompletionRate   float64                `json:"completionRate"`
	Phases           []models.PhaseProgress `json:"phases"`
	CertificateReady bool                   `json:"certificateReady"`
}

// AdminOverviewResponse highlights work waiting on an admin.
type AdminOverviewResponse struct {
	ActiveStudents        int `json:"activeStudents"`
	PendingSubmissions    int `json:"pendingSubmissions"`
	AwaitingPhaseApproval int `json:"awaitingPhaseApproval"`
	CertificatesIssued    int `json:"certificatesIssued"`
}

// LeaderboardResponse ranks students by total points.
type LeaderboardResponse struct {
	Entries []models.LeaderboardEntry `json:"entries"`
}
