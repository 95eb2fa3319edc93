package models

import "time"

// UserRole represents the available roles for the RBAC system.
type UserRole string

const (
	RoleAdmin   UserRole = "ADMIN"
	RoleStudent UserRole = "STUDENT"
)

// User represents an application user stored in the users table.
//
// CurrentPhase, CurrentWeek and TotalPoints are a materialised view over the
// progress ledger: every point-affecting mutation rewrites them from the
// ledger, they are never authoritative on their own.
type User struct {
	ID           string     `db:"id" json:"id"`
	Email        string     `db:"email" json:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	FullName     string     `db:"full_name" json:"full_name"`
	Role         UserRole   `db:"role" json:"role"`
	Active       bool       `db:"active" json:"active"`
	CurrentPhase int        `db:"current_phase" json:"current_phase"`
	CurrentWeek  int        `db:"current_week" json:"current_week"`
	TotalPoints  int        `db:"total_points" json:"total_points"`
	LastLogin    *time.Time `db:"last_login" json:"last_login,omitempty"`
	CreatedAt    time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at" json:"updated_at"`
}

// UserFilter captures filtering criteria for listing users.
type UserFilter struct {
	Role      *UserRole
	Active    *bool
	Search    string
	Page      int
	PageSize  int
	SortBy    string
	SortOrder string
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// LeaderboardEntry ranks students by accumulated points.
type LeaderboardEntry struct {
	UserID       string `db:"user_id" json:"user_id"`
	FullName     string `db:"full_name" json:"full_name"`
	TotalPoints  int    `db:"total_points" json:"total_points"`
	CurrentPhase int    `db:"current_phase" json:"current_phase"`
	CurrentWeek  int    `db:"current_week" json:"current_week"`
	Rank         int    `json:"rank"`
}
