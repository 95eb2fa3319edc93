package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/arkan-dev/bootcamp-api/internal/models"
)

const submissionColumns = `id, user_id, week_id, kind, file_path, link, on_time, feedback, answers, total_questions, status, score, reviewer_id, reviewed_at, created_at, updated_at`

// SubmissionRepository stores assignment and quiz submissions in a single
// table discriminated by kind.
type SubmissionRepository struct {
	db *sqlx.DB
}

// NewSubmissionRepository creates a new submission repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db}
}

// FindByID returns a submission by identifier.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE id = $1 LIMIT 1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// FindByUserWeekKind returns the unique submission for (user, week, kind).
func (r *SubmissionRepository) FindByUserWeekKind(ctx context.Context, userID, weekID string, kind models.SubmissionKind) (*models.Submission, error) {
	query := `SELECT ` + submissionColumns + ` FROM submissions WHERE user_id = $1 AND week_id = $2 AND kind = $3 LIMIT 1`
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, query, userID, weekID, kind); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find submission by scope: %w", err)
	}
	return &sub, nil
}

// List returns submissions matching the filter with a total count.
func (r *SubmissionRepository) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	baseQuery := `FROM submissions WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.UserID != "" {
		conditions = append(conditions, fmt.Sprintf("user_id = $%d", len(args)+1))
		args = append(args, filter.UserID)
	}
	if filter.WeekID != "" {
		conditions = append(conditions, fmt.Sprintf("week_id = $%d", len(args)+1))
		args = append(args, filter.WeekID)
	}
	if filter.Kind != "" {
		conditions = append(conditions, fmt.Sprintf("kind = $%d", len(args)+1))
		args = append(args, filter.Kind)
	}
	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", len(args)+1))
		args = append(args, filter.Status)
	}
	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", submissionColumns, baseQuery, pageSize, offset)
	var subs []models.Submission
	if err := r.db.SelectContext(ctx, &subs, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list submissions: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count submissions: %w", err)
	}

	return subs, total, nil
}

// Create inserts a new submission.
func (r *SubmissionRepository) Create(ctx context.Context, sub *models.Submission) error {
	if sub.ID == "" {
		sub.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	const query = `INSERT INTO submissions (id, user_id, week_id, kind, file_path, link, on_time, feedback, answers, total_questions, status, score, reviewer_id, reviewed_at, created_at, updated_at)
        VALUES (:id, :user_id, :week_id, :kind, :file_path, :link, :on_time, :feedback, :answers, :total_questions, :status, :score, :reviewer_id, :reviewed_at, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	return nil
}

// Update rewrites the review fields of a submission.
func (r *SubmissionRepository) Update(ctx context.Context, sub *models.Submission) error {
	sub.UpdatedAt = time.Now().UTC()
	const query = `UPDATE submissions SET file_path = :file_path, link = :link, on_time = :on_time, feedback = :feedback,
        answers = :answers, total_questions = :total_questions, status = :status, score = :score,
        reviewer_id = :reviewer_id, reviewed_at = :reviewed_at, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, sub); err != nil {
		return fmt.Errorf("update submission: %w", err)
	}
	return nil
}

// Delete removes a submission.
func (r *SubmissionRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM submissions WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("delete submission: %w", err)
	}
	return nil
}

// CountPending returns how many submissions await review.
func (r *SubmissionRepository) CountPending(ctx context.Context) (int, error) {
	var total int
	const query = `SELECT COUNT(*) FROM submissions WHERE status = 'SUBMITTED'`
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count pending submissions: %w", err)
	}
	return total, nil
}
