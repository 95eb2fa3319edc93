package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arkan-dev/bootcamp-api/internal/models"
)

const progressColumns = `id, user_id, week_id, video_watched, video_progress, assignment_submitted, quiz_submitted, video_points, assignment_points, quiz_points, bonus_points, points, completed, is_locked, unlocked_at, created_at, updated_at`

// ProgressRepository is the ledger store. Component updates go through
// ApplyUpdate, which serialises concurrent writers on the same row.
type ProgressRepository struct {
	db *sqlx.DB
}

// NewProgressRepository creates a new progress repository.
func NewProgressRepository(db *sqlx.DB) *ProgressRepository {
	return &ProgressRepository{db: db}
}

// FindByUserAndWeek returns the ledger row for a (student, week) pair.
func (r *ProgressRepository) FindByUserAndWeek(ctx context.Context, userID, weekID string) (*models.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1 AND week_id = $2 LIMIT 1`
	var progress models.Progress
	if err := r.db.GetContext(ctx, &progress, query, userID, weekID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find progress: %w", err)
	}
	return &progress, nil
}

// ListByUser returns every ledger row of a student.
func (r *ProgressRepository) ListByUser(ctx context.Context, userID string) ([]models.Progress, error) {
	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1`
	var rows []models.Progress
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("list progress: %w", err)
	}
	return rows, nil
}

// Create inserts a fresh ledger row. Rows start locked unless the caller
// pre-unlocks them (the very first week of the course).
func (r *ProgressRepository) Create(ctx context.Context, progress *models.Progress) error {
	if progress.ID == "" {
		progress.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if progress.CreatedAt.IsZero() {
		progress.CreatedAt = now
	}
	progress.UpdatedAt = now
	const query = `INSERT INTO progress (id, user_id, week_id, video_watched, video_progress, assignment_submitted, quiz_submitted, video_points, assignment_points, quiz_points, bonus_points, points, completed, is_locked, unlocked_at, created_at, updated_at)
        VALUES (:id, :user_id, :week_id, :video_watched, :video_progress, :assignment_submitted, :quiz_submitted, :video_points, :assignment_points, :quiz_points, :bonus_points, :points, :completed, :is_locked, :unlocked_at, :created_at, :updated_at)
        ON CONFLICT (user_id, week_id) DO NOTHING`
	if _, err := r.db.NamedExecContext(ctx, query, progress); err != nil {
		return fmt.Errorf("create progress: %w", err)
	}
	return nil
}

// ApplyUpdate loads the row under a row lock, lets mutate rewrite it and
// writes the result back in the same transaction. This is the only path for
// point-affecting changes; it prevents lost updates between concurrent
// grading actions on the same row.
func (r *ProgressRepository) ApplyUpdate(ctx context.Context, userID, weekID string, mutate func(*models.Progress) error) (*models.Progress, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin progress update: %w", err)
	}

	query := `SELECT ` + progressColumns + ` FROM progress WHERE user_id = $1 AND week_id = $2 FOR UPDATE`
	var progress models.Progress
	if err := tx.GetContext(ctx, &progress, query, userID, weekID); err != nil {
		tx.Rollback() //nolint:errcheck
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("lock progress row: %w", err)
	}

	if err := mutate(&progress); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, err
	}

	progress.Points = progress.VideoPoints + progress.AssignmentPoints + progress.QuizPoints + progress.BonusPoints
	progress.UpdatedAt = time.Now().UTC()

	const update = `UPDATE progress SET video_watched = :video_watched, video_progress = :video_progress, assignment_submitted = :assignment_submitted,
        quiz_submitted = :quiz_submitted, video_points = :video_points, assignment_points = :assignment_points, quiz_points = :quiz_points,
        bonus_points = :bonus_points, points = :points, completed = :completed, is_locked = :is_locked, unlocked_at = :unlocked_at, updated_at = :updated_at
        WHERE id = :id`
	if _, err := tx.NamedExecContext(ctx, update, &progress); err != nil {
		tx.Rollback() //nolint:errcheck
		return nil, fmt.Errorf("write progress row: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit progress update: %w", err)
	}
	return &progress, nil
}

// Unlock opens a locked week for a student.
func (r *ProgressRepository) Unlock(ctx context.Context, userID, weekID string) error {
	const query = `UPDATE progress SET is_locked = FALSE, unlocked_at = $3, updated_at = $3 WHERE user_id = $1 AND week_id = $2 AND is_locked = TRUE`
	if _, err := r.db.ExecContext(ctx, query, userID, weekID, time.Now().UTC()); err != nil {
		return fmt.Errorf("unlock week: %w", err)
	}
	return nil
}

// SumPoints returns the ledger total for a student.
func (r *ProgressRepository) SumPoints(ctx context.Context, userID string) (int, error) {
	var total int
	const query = `SELECT COALESCE(SUM(points), 0) FROM progress WHERE user_id = $1`
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("sum progress points: %w", err)
	}
	return total, nil
}

// CountCompletedByUser returns the number of completed weeks for a student.
func (r *ProgressRepository) CountCompletedByUser(ctx context.Context, userID string) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM progress WHERE user_id = $1 AND completed = TRUE`
	if err := r.db.GetContext(ctx, &total, query, userID); err != nil {
		return 0, fmt.Errorf("count completed weeks: %w", err)
	}
	return total, nil
}

// CountAwaitingApproval counts active students who completed every week of
// their current phase and reached its points threshold, so an admin approval
// is the only thing holding them back.
func (r *ProgressRepository) CountAwaitingApproval(ctx context.Context) (int, error) {
	var total int
	const query = `
		SELECT COUNT(*) FROM users u
		JOIN phases p ON p.number = u.current_phase
		WHERE u.role = 'STUDENT' AND u.active = TRUE
		  AND EXISTS (SELECT 1 FROM weeks w WHERE w.phase_id = p.id)
		  AND NOT EXISTS (
			SELECT 1 FROM weeks w
			WHERE w.phase_id = p.id
			  AND NOT EXISTS (
				SELECT 1 FROM progress pr
				WHERE pr.user_id = u.id AND pr.week_id = w.id AND pr.completed = TRUE
			  )
		  )
		  AND COALESCE((
			SELECT SUM(pr.points) FROM progress pr
			JOIN weeks w ON w.id = pr.week_id
			WHERE pr.user_id = u.id AND w.phase_id = p.id
		  ), 0) * 100 >= p.required_points_percentage * COALESCE((
			SELECT SUM(w.video_points + w.assignment_points) FROM weeks w WHERE w.phase_id = p.id
		  ), 0)`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count awaiting approval: %w", err)
	}
	return total, nil
}
