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

const phaseColumns = `id, number, title, description, start_week, end_week, required_points_percentage, created_at, updated_at`
const weekColumns = `id, phase_id, week_number, title, video_points, assignment_points, created_at, updated_at`

// CurriculumRepository handles phase and week persistence.
type CurriculumRepository struct {
	db *sqlx.DB
}

// NewCurriculumRepository creates a new curriculum repository.
func NewCurriculumRepository(db *sqlx.DB) *CurriculumRepository {
	return &CurriculumRepository{db: db}
}

// ListPhases returns all phases ordered by number.
func (r *CurriculumRepository) ListPhases(ctx context.Context) ([]models.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases ORDER BY number ASC`
	var phases []models.Phase
	if err := r.db.SelectContext(ctx, &phases, query); err != nil {
		return nil, fmt.Errorf("list phases: %w", err)
	}
	return phases, nil
}

// FindPhase returns a phase by identifier.
func (r *CurriculumRepository) FindPhase(ctx context.Context, id string) (*models.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE id = $1 LIMIT 1`
	var phase models.Phase
	if err := r.db.GetContext(ctx, &phase, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find phase: %w", err)
	}
	return &phase, nil
}

// FindPhaseByNumber returns a phase by ordinal number.
func (r *CurriculumRepository) FindPhaseByNumber(ctx context.Context, number int) (*models.Phase, error) {
	query := `SELECT ` + phaseColumns + ` FROM phases WHERE number = $1 LIMIT 1`
	var phase models.Phase
	if err := r.db.GetContext(ctx, &phase, query, number); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find phase by number: %w", err)
	}
	return &phase, nil
}

// CreatePhase inserts a new phase.
func (r *CurriculumRepository) CreatePhase(ctx context.Context, phase *models.Phase) error {
	if phase.ID == "" {
		phase.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if phase.CreatedAt.IsZero() {
		phase.CreatedAt = now
	}
	phase.UpdatedAt = now
	const query = `INSERT INTO phases (id, number, title, description, start_week, end_week, required_points_percentage, created_at, updated_at)
        VALUES (:id, :number, :title, :description, :start_week, :end_week, :required_points_percentage, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, phase); err != nil {
		return fmt.Errorf("create phase: %w", err)
	}
	return nil
}

// UpdatePhase rewrites a phase's descriptive fields. The points threshold is
// seed-time data and deliberately not touched here.
func (r *CurriculumRepository) UpdatePhase(ctx context.Context, phase *models.Phase) error {
	phase.UpdatedAt = time.Now().UTC()
	const query = `UPDATE phases SET title = :title, description = :description, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, phase); err != nil {
		return fmt.Errorf("update phase: %w", err)
	}
	return nil
}

// ListWeeks returns all weeks of a phase ordered by week number.
func (r *CurriculumRepository) ListWeeks(ctx context.Context, phaseID string) ([]models.Week, error) {
	query := `SELECT ` + weekColumns + ` FROM weeks WHERE phase_id = $1 ORDER BY week_number ASC`
	var weeks []models.Week
	if err := r.db.SelectContext(ctx, &weeks, query, phaseID); err != nil {
		return nil, fmt.Errorf("list weeks: %w", err)
	}
	return weeks, nil
}

// ListAllWeeks returns every week across the curriculum ordered by phase and
// week number.
func (r *CurriculumRepository) ListAllWeeks(ctx context.Context) ([]models.Week, error) {
	query := `SELECT w.id, w.phase_id, w.week_number, w.title, w.video_points, w.assignment_points, w.created_at, w.updated_at
        FROM weeks w JOIN phases p ON p.id = w.phase_id ORDER BY p.number ASC, w.week_number ASC`
	var weeks []models.Week
	if err := r.db.SelectContext(ctx, &weeks, query); err != nil {
		return nil, fmt.Errorf("list all weeks: %w", err)
	}
	return weeks, nil
}

// CountWeeks returns the total number of curriculum weeks.
func (r *CurriculumRepository) CountWeeks(ctx context.Context) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM weeks`); err != nil {
		return 0, fmt.Errorf("count weeks: %w", err)
	}
	return total, nil
}

// FindWeek returns a week by identifier.
func (r *CurriculumRepository) FindWeek(ctx context.Context, id string) (*models.Week, error) {
	query := `SELECT ` + weekColumns + ` FROM weeks WHERE id = $1 LIMIT 1`
	var week models.Week
	if err := r.db.GetContext(ctx, &week, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find week: %w", err)
	}
	return &week, nil
}

// FindWeekByNumber returns a week inside a phase by its ordinal number.
func (r *CurriculumRepository) FindWeekByNumber(ctx context.Context, phaseID string, weekNumber int) (*models.Week, error) {
	query := `SELECT ` + weekColumns + ` FROM weeks WHERE phase_id = $1 AND week_number = $2 LIMIT 1`
	var week models.Week
	if err := r.db.GetContext(ctx, &week, query, phaseID, weekNumber); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find week by number: %w", err)
	}
	return &week, nil
}

// CreateWeek inserts a new week.
func (r *CurriculumRepository) CreateWeek(ctx context.Context, week *models.Week) error {
	if week.ID == "" {
		week.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if week.CreatedAt.IsZero() {
		week.CreatedAt = now
	}
	week.UpdatedAt = now
	const query = `INSERT INTO weeks (id, phase_id, week_number, title, video_points, assignment_points, created_at, updated_at)
        VALUES (:id, :phase_id, :week_number, :title, :video_points, :assignment_points, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, week); err != nil {
		return fmt.Errorf("create week: %w", err)
	}
	return nil
}

// UpdateWeek rewrites the mutable fields of a week.
func (r *CurriculumRepository) UpdateWeek(ctx context.Context, week *models.Week) error {
	week.UpdatedAt = time.Now().UTC()
	const query = `UPDATE weeks SET title = :title, video_points = :video_points, assignment_points = :assignment_points, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, week); err != nil {
		return fmt.Errorf("update week: %w", err)
	}
	return nil
}

// FindContentByWeek returns the content of a week.
func (r *CurriculumRepository) FindContentByWeek(ctx context.Context, weekID string) (*models.Content, error) {
	const query = `SELECT id, week_id, body, video_url, video_url_secondary, multiple_choice_questions, assignment_description, assignment_deadline, resources, created_at, updated_at
        FROM contents WHERE week_id = $1 LIMIT 1`
	var content models.Content
	if err := r.db.GetContext(ctx, &content, query, weekID); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find content: %w", err)
	}
	return &content, nil
}

// UpsertContent inserts or replaces the content of a week.
func (r *CurriculumRepository) UpsertContent(ctx context.Context, content *models.Content) error {
	if content.ID == "" {
		content.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if content.CreatedAt.IsZero() {
		content.CreatedAt = now
	}
	content.UpdatedAt = now
	const query = `INSERT INTO contents (id, week_id, body, video_url, video_url_secondary, multiple_choice_questions, assignment_description, assignment_deadline, resources, created_at, updated_at)
        VALUES (:id, :week_id, :body, :video_url, :video_url_secondary, :multiple_choice_questions, :assignment_description, :assignment_deadline, :resources, :created_at, :updated_at)
        ON CONFLICT (week_id)
        DO UPDATE SET body = EXCLUDED.body, video_url = EXCLUDED.video_url, video_url_secondary = EXCLUDED.video_url_secondary,
            multiple_choice_questions = EXCLUDED.multiple_choice_questions, assignment_description = EXCLUDED.assignment_description,
            assignment_deadline = EXCLUDED.assignment_deadline, resources = EXCLUDED.resources, updated_at = EXCLUDED.updated_at`
	if _, err := r.db.NamedExecContext(ctx, query, content); err != nil {
		return fmt.Errorf("upsert content: %w", err)
	}
	return nil
}
