package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type curriculumRepository interface {
	ListPhases(ctx context.Context) ([]models.Phase, error)
	FindPhase(ctx context.Context, id string) (*models.Phase, error)
	FindPhaseByNumber(ctx context.Context, number int) (*models.Phase, error)
	CreatePhase(ctx context.Context, phase *models.Phase) error
	UpdatePhase(ctx context.Context, phase *models.Phase) error
	ListWeeks(ctx context.Context, phaseID string) ([]models.Week, error)
	FindWeek(ctx context.Context, id string) (*models.Week, error)
	FindWeekByNumber(ctx context.Context, phaseID string, weekNumber int) (*models.Week, error)
	CreateWeek(ctx context.Context, week *models.Week) error
	UpdateWeek(ctx context.Context, week *models.Week) error
	FindContentByWeek(ctx context.Context, weekID string) (*models.Content, error)
	UpsertContent(ctx context.Context, content *models.Content) error
}

// curriculumLedger gates student content access on the unlock state.
type curriculumLedger interface {
	RequireUnlocked(ctx context.Context, userID string, week *models.Week) (*models.Progress, error)
}

// CreatePhaseRequest defines a new curriculum phase. The points threshold is
// fixed at creation and not updatable afterwards.
type CreatePhaseRequest struct {
	Number                   int     `json:"number" validate:"required,min=1"`
	Title                    string  `json:"title" validate:"required"`
	Description              *string `json:"description"`
	StartWeek                int     `json:"start_week" validate:"required,min=1"`
	EndWeek                  int     `json:"end_week" validate:"required,min=1"`
	RequiredPointsPercentage float64 `json:"required_points_percentage" validate:"min=0,max=100"`
}

// UpdatePhaseRequest edits a phase's descriptive fields.
type UpdatePhaseRequest struct {
	Title       string  `json:"title" validate:"required"`
	Description *string `json:"description"`
}

// CreateWeekRequest adds a week to a phase. Point budgets fall back to the
// standard split when omitted.
type CreateWeekRequest struct {
	WeekNumber       int    `json:"week_number" validate:"required,min=1"`
	Title            string `json:"title" validate:"required"`
	VideoPoints      int    `json:"video_points" validate:"min=0"`
	AssignmentPoints int    `json:"assignment_points" validate:"min=0"`
}

// UpdateWeekRequest edits a week's title and point budgets.
type UpdateWeekRequest struct {
	Title            string `json:"title" validate:"required"`
	VideoPoints      int    `json:"video_points" validate:"min=0"`
	AssignmentPoints int    `json:"assignment_points" validate:"min=0"`
}

// UpsertContentRequest replaces the instructional material of a week.
type UpsertContentRequest struct {
	Body                    string              `json:"body" validate:"required"`
	VideoURL                *string             `json:"video_url"`
	VideoURLSecondary       *string             `json:"video_url_secondary"`
	MultipleChoiceQuestions models.QuestionList `json:"multiple_choice_questions"`
	AssignmentDescription   *string             `json:"assignment_description"`
	AssignmentDeadline      *time.Time          `json:"assignment_deadline"`
	Resources               models.ResourceList `json:"resources"`
}

// CurriculumService manages phases, weeks and week content. Admin operations
// shape the curriculum; student reads are gated on the unlock state of the
// requested week.
type CurriculumService struct {
	repo      curriculumRepository
	ledger    curriculumLedger
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCurriculumService constructs a CurriculumService.
func NewCurriculumService(repo curriculumRepository, ledger curriculumLedger, validate *validator.Validate, logger *zap.Logger) *CurriculumService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &CurriculumService{repo: repo, ledger: ledger, validator: validate, logger: logger}
}

// ListPhases returns all phases in course order.
func (s *CurriculumService) ListPhases(ctx context.Context) ([]models.Phase, error) {
	phases, err := s.repo.ListPhases(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list phases")
	}
	return phases, nil
}

// GetPhase returns one phase with its weeks attached.
func (s *CurriculumService) GetPhase(ctx context.Context, id string) (*models.Phase, error) {
	phase, err := s.findPhase(ctx, id)
	if err != nil {
		return nil, err
	}
	weeks, err := s.repo.ListWeeks(ctx, id)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weeks")
	}
	phase.Weeks = weeks
	return phase, nil
}

// CreatePhase adds a new phase.
func (s *CurriculumService) CreatePhase(ctx context.Context, req CreatePhaseRequest) (*models.Phase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid phase payload")
	}
	if req.EndWeek < req.StartWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end week must not precede start week")
	}
	if _, err := s.repo.FindPhaseByNumber(ctx, req.Number); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("phase %d already exists", req.Number))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check phase number")
	}

	now := time.Now().UTC()
	phase := &models.Phase{
		ID:                       uuid.NewString(),
		Number:                   req.Number,
		Title:                    req.Title,
		Description:              req.Description,
		StartWeek:                req.StartWeek,
		EndWeek:                  req.EndWeek,
		RequiredPointsPercentage: req.RequiredPointsPercentage,
		CreatedAt:                now,
		UpdatedAt:                now,
	}
	if err := s.repo.CreatePhase(ctx, phase); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create phase")
	}
	return phase, nil
}

// UpdatePhase edits descriptive fields. The points threshold stays as seeded
// so in-flight students are never re-gated retroactively.
func (s *CurriculumService) UpdatePhase(ctx context.Context, id string, req UpdatePhaseRequest) (*models.Phase, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid phase payload")
	}
	phase, err := s.findPhase(ctx, id)
	if err != nil {
		return nil, err
	}
	phase.Title = req.Title
	phase.Description = req.Description
	phase.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdatePhase(ctx, phase); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update phase")
	}
	return phase, nil
}

// CreateWeek adds a week inside the phase's week range.
func (s *CurriculumService) CreateWeek(ctx context.Context, phaseID string, req CreateWeekRequest) (*models.Week, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week payload")
	}
	phase, err := s.findPhase(ctx, phaseID)
	if err != nil {
		return nil, err
	}
	if req.WeekNumber < phase.StartWeek || req.WeekNumber > phase.EndWeek {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("week number must be between %d and %d", phase.StartWeek, phase.EndWeek))
	}
	if _, err := s.repo.FindWeekByNumber(ctx, phaseID, req.WeekNumber); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("week %d already exists", req.WeekNumber))
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check week number")
	}

	videoPoints := req.VideoPoints
	assignmentPoints := req.AssignmentPoints
	if videoPoints == 0 && assignmentPoints == 0 {
		videoPoints = models.DefaultVideoPoints
		assignmentPoints = models.DefaultAssignmentPoints
	}

	now := time.Now().UTC()
	week := &models.Week{
		ID:               uuid.NewString(),
		PhaseID:          phaseID,
		WeekNumber:       req.WeekNumber,
		Title:            req.Title,
		VideoPoints:      videoPoints,
		AssignmentPoints: assignmentPoints,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
	if err := s.repo.CreateWeek(ctx, week); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create week")
	}
	return week, nil
}

// UpdateWeek edits a week's title and point budgets.
func (s *CurriculumService) UpdateWeek(ctx context.Context, weekID string, req UpdateWeekRequest) (*models.Week, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid week payload")
	}
	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	week.Title = req.Title
	week.VideoPoints = req.VideoPoints
	week.AssignmentPoints = req.AssignmentPoints
	week.UpdatedAt = time.Now().UTC()
	if err := s.repo.UpdateWeek(ctx, week); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update week")
	}
	return week, nil
}

// UpsertContent replaces the instructional material for a week.
func (s *CurriculumService) UpsertContent(ctx context.Context, weekID string, req UpsertContentRequest) (*models.Content, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid content payload")
	}
	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	for i, q := range req.MultipleChoiceQuestions {
		if len(q.Options) < 2 {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d needs at least two options", i+1))
		}
		if q.CorrectAnswer < 0 || q.CorrectAnswer >= len(q.Options) {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("question %d has an out-of-range answer index", i+1))
		}
	}

	now := time.Now().UTC()
	content := &models.Content{
		ID:                      uuid.NewString(),
		WeekID:                  week.ID,
		Body:                    req.Body,
		VideoURL:                req.VideoURL,
		VideoURLSecondary:       req.VideoURLSecondary,
		MultipleChoiceQuestions: req.MultipleChoiceQuestions,
		AssignmentDescription:   req.AssignmentDescription,
		AssignmentDeadline:      req.AssignmentDeadline,
		Resources:               req.Resources,
		CreatedAt:               now,
		UpdatedAt:               now,
	}
	if err := s.repo.UpsertContent(ctx, content); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save content")
	}
	return content, nil
}

// GetContent returns a week's content. Students only see unlocked weeks and
// never receive the correct answer indexes.
func (s *CurriculumService) GetContent(ctx context.Context, actor *models.JWTClaims, weekID string) (*models.Content, error) {
	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin {
		if _, err := s.ledger.RequireUnlocked(ctx, actor.UserID, week); err != nil {
			return nil, err
		}
	}

	content, err := s.repo.FindContentByWeek(ctx, weekID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "content not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load content")
	}

	if actor.Role != models.RoleAdmin {
		content.MultipleChoiceQuestions = stripAnswers(content.MultipleChoiceQuestions)
	}
	return content, nil
}

func stripAnswers(questions models.QuestionList) models.QuestionList {
	sanitized := make(models.QuestionList, len(questions))
	for i, q := range questions {
		q.CorrectAnswer = -1
		sanitized[i] = q
	}
	return sanitized
}

func (s *CurriculumService) findPhase(ctx context.Context, id string) (*models.Phase, error) {
	phase, err := s.repo.FindPhase(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "phase not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load phase")
	}
	return phase, nil
}

func (s *CurriculumService) findWeek(ctx context.Context, id string) (*models.Week, error) {
	week, err := s.repo.FindWeek(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return week, nil
}
