package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type submissionStore interface {
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindByUserWeekKind(ctx context.Context, userID, weekID string, kind models.SubmissionKind) (*models.Submission, error)
	List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error)
	Create(ctx context.Context, sub *models.Submission) error
	Update(ctx context.Context, sub *models.Submission) error
	Delete(ctx context.Context, id string) error
}

type submissionCurriculum interface {
	FindWeek(ctx context.Context, id string) (*models.Week, error)
	FindContentByWeek(ctx context.Context, weekID string) (*models.Content, error)
}

// submissionLedger is the slice of ProgressService the submission workflows
// drive.
type submissionLedger interface {
	RequireUnlocked(ctx context.Context, userID string, week *models.Week) (*models.Progress, error)
	SetAssignmentSubmitted(ctx context.Context, userID string, week *models.Week) (*models.Progress, error)
	SetQuizSubmitted(ctx context.Context, userID string, week *models.Week) (*models.Progress, error)
	SetAssignmentScore(ctx context.Context, userID string, week *models.Week, points, bonus int) (*models.Progress, error)
	SetQuizScore(ctx context.Context, userID string, week *models.Week, points int) (*models.Progress, error)
	ClearSubmission(ctx context.Context, userID string, week *models.Week, kind models.SubmissionKind) (*models.Progress, error)
}

type submissionFileStore interface {
	SaveStream(filename string, r io.Reader) (string, error)
	Delete(filename string) error
	Path(filename string) string
}

type submissionURLSigner interface {
	Generate(ownerID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (ownerID, relPath string, expiresAt time.Time, err error)
}

type submissionAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// SubmitAssignmentRequest carries an uploaded file or an external link.
type SubmitAssignmentRequest struct {
	FileName string
	File     io.Reader
	Link     *string
}

// SubmitQuizRequest carries the student's chosen option index per question.
type SubmitQuizRequest struct {
	Answers []int `json:"answers" validate:"required,min=1"`
}

// QuizResult reports the outcome of an auto-graded quiz.
type QuizResult struct {
	Submission     *models.Submission `json:"submission"`
	Score          int                `json:"score"`
	TotalQuestions int                `json:"total_questions"`
	AwardedPoints  int                `json:"awarded_points"`
}

// ReviewSubmissionRequest is the admin grading payload. For assignments the
// score is a percentage, for quizzes the number of correct answers.
type ReviewSubmissionRequest struct {
	Score    int                     `json:"score" validate:"min=0"`
	Status   models.SubmissionStatus `json:"status" validate:"required"`
	Feedback *string                 `json:"feedback"`
}

// SignedDownload is a time-limited token for fetching a stored file.
type SignedDownload struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SubmissionService manages assignment and quiz submissions and their review
// lifecycle. Scoring effects are delegated to the progress ledger.
type SubmissionService struct {
	store      submissionStore
	curriculum submissionCurriculum
	ledger     submissionLedger
	files      submissionFileStore
	signer     submissionURLSigner
	auditor    submissionAuditor
	notifier   progressNotifier
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewSubmissionService constructs a SubmissionService.
func NewSubmissionService(
	store submissionStore,
	curriculum submissionCurriculum,
	ledger submissionLedger,
	files submissionFileStore,
	signer submissionURLSigner,
	auditor submissionAuditor,
	notifier progressNotifier,
	validate *validator.Validate,
	logger *zap.Logger,
) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &SubmissionService{
		store:      store,
		curriculum: curriculum,
		ledger:     ledger,
		files:      files,
		signer:     signer,
		auditor:    auditor,
		notifier:   notifier,
		validator:  validate,
		logger:     logger,
	}
}

// SubmitAssignment stores a student's assignment for an unlocked week. The
// on-time flag is fixed at submission time against the content deadline and
// decides bonus eligibility at review.
func (s *SubmissionService) SubmitAssignment(ctx context.Context, userID, weekID string, req SubmitAssignmentRequest) (*models.Submission, error) {
	if req.File == nil && (req.Link == nil || strings.TrimSpace(*req.Link) == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "either a file or a link is required")
	}

	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.RequireUnlocked(ctx, userID, week); err != nil {
		return nil, err
	}

	if _, err := s.store.FindByUserWeekKind(ctx, userID, weekID, models.KindAssignment); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "assignment already submitted for this week")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submission")
	}

	now := time.Now().UTC()
	onTime := true
	content, err := s.curriculum.FindContentByWeek(ctx, weekID)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week content")
	}
	if err == nil && content.AssignmentDeadline != nil {
		onTime = !now.After(*content.AssignmentDeadline)
	}

	sub := &models.Submission{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeekID:    weekID,
		Kind:      models.KindAssignment,
		Link:      req.Link,
		OnTime:    onTime,
		Status:    models.StatusSubmitted,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if req.File != nil {
		stored, err := s.files.SaveStream(assignmentPath(userID, req.FileName), req.File)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store assignment file")
		}
		sub.FilePath = &stored
	}

	if err := s.store.Create(ctx, sub); err != nil {
		if sub.FilePath != nil {
			if cleanupErr := s.files.Delete(*sub.FilePath); cleanupErr != nil {
				s.logger.Warn("failed to remove orphaned upload", zap.String("path", *sub.FilePath), zap.Error(cleanupErr))
			}
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	if _, err := s.ledger.SetAssignmentSubmitted(ctx, userID, week); err != nil {
		s.logger.Warn("failed to flag assignment on ledger", zap.String("user_id", userID), zap.Error(err))
	}

	s.notifier.NotifyAdmins(ctx, models.NotifySubmissionReceived, map[string]interface{}{
		"submission_id": sub.ID,
		"user_id":       userID,
		"week_id":       weekID,
		"kind":          string(models.KindAssignment),
	})
	return sub, nil
}

// SubmitQuiz grades the answers immediately and books the rescaled points
// onto the ledger. One attempt per week.
func (s *SubmissionService) SubmitQuiz(ctx context.Context, userID, weekID string, req SubmitQuizRequest) (*QuizResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid quiz payload")
	}

	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if _, err := s.ledger.RequireUnlocked(ctx, userID, week); err != nil {
		return nil, err
	}

	content, err := s.curriculum.FindContentByWeek(ctx, weekID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week has no quiz")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week content")
	}
	questions := content.MultipleChoiceQuestions
	if len(questions) == 0 {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "week has no quiz")
	}

	if _, err := s.store.FindByUserWeekKind(ctx, userID, weekID, models.KindQuiz); err == nil {
		return nil, appErrors.Clone(appErrors.ErrConflict, "quiz already submitted for this week")
	} else if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing submission")
	}

	score := GradeQuiz(req.Answers, questions)
	total := len(questions)
	now := time.Now().UTC()

	sub := &models.Submission{
		ID:             uuid.NewString(),
		UserID:         userID,
		WeekID:         weekID,
		Kind:           models.KindQuiz,
		Answers:        req.Answers,
		TotalQuestions: total,
		Status:         models.StatusSubmitted,
		Score:          &score,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Create(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create submission")
	}

	awarded := RescaleQuizScore(score, total, week.AssignmentPoints)
	if _, err := s.ledger.SetQuizScore(ctx, userID, week, awarded); err != nil {
		return nil, err
	}

	s.notifier.NotifyAdmins(ctx, models.NotifySubmissionReceived, map[string]interface{}{
		"submission_id": sub.ID,
		"user_id":       userID,
		"week_id":       weekID,
		"kind":          string(models.KindQuiz),
	})
	return &QuizResult{Submission: sub, Score: score, TotalQuestions: total, AwardedPoints: awarded}, nil
}

// Review applies an admin grade. Assignment scores are a percentage mapped
// onto the week's budget, with the on-time bonus layered on top. Quiz scores
// are correct-answer counts rescaled onto the same budget and never earn a
// bonus.
func (s *SubmissionService) Review(ctx context.Context, reviewerID, submissionID string, req ReviewSubmissionRequest) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid review payload")
	}

	sub, err := s.findSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if !models.ValidStatus(sub.Kind, req.Status) {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("status %s is not valid for %s submissions", req.Status, sub.Kind))
	}

	week, err := s.findWeek(ctx, sub.WeekID)
	if err != nil {
		return nil, err
	}

	switch sub.Kind {
	case models.KindAssignment:
		if req.Score > 100 {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assignment score must be between 0 and 100")
		}
	case models.KindQuiz:
		if sub.TotalQuestions > 0 && req.Score > sub.TotalQuestions {
			return nil, appErrors.Clone(appErrors.ErrValidation, "quiz score cannot exceed the question count")
		}
	}

	oldValues := fmt.Sprintf(`{"status":%q,"score":%s}`, sub.Status, intOrNull(sub.Score))

	now := time.Now().UTC()
	score := req.Score
	sub.Score = &score
	sub.Status = req.Status
	sub.Feedback = req.Feedback
	sub.ReviewerID = &reviewerID
	sub.ReviewedAt = &now
	sub.UpdatedAt = now

	if err := s.store.Update(ctx, sub); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update submission")
	}

	switch sub.Kind {
	case models.KindAssignment:
		awarded := AssignmentAward(score, week.AssignmentPoints)
		bonus := 0
		if sub.OnTime {
			bonus = OnTimeBonus(awarded)
		}
		if _, err := s.ledger.SetAssignmentScore(ctx, sub.UserID, week, awarded, bonus); err != nil {
			return nil, err
		}
	case models.KindQuiz:
		awarded := RescaleQuizScore(score, sub.TotalQuestions, week.AssignmentPoints)
		if _, err := s.ledger.SetQuizScore(ctx, sub.UserID, week, awarded); err != nil {
			return nil, err
		}
	}

	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &reviewerID,
		Action:     models.AuditActionReview,
		Resource:   "submission",
		ResourceID: &sub.ID,
		OldValues:  []byte(oldValues),
		NewValues:  []byte(fmt.Sprintf(`{"status":%q,"score":%d}`, sub.Status, score)),
	}); err != nil {
		s.logger.Warn("failed to record review audit log", zap.Error(err))
	}

	s.notifier.NotifyUser(ctx, sub.UserID, models.NotifySubmissionReviewed, map[string]interface{}{
		"submission_id": sub.ID,
		"week_id":       sub.WeekID,
		"kind":          string(sub.Kind),
		"status":        string(sub.Status),
		"score":         score,
	})
	return sub, nil
}

// Delete removes a submission, clears its points from the ledger and drops
// any stored file.
func (s *SubmissionService) Delete(ctx context.Context, actorID, submissionID string) error {
	sub, err := s.findSubmission(ctx, submissionID)
	if err != nil {
		return err
	}
	week, err := s.findWeek(ctx, sub.WeekID)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, sub.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete submission")
	}

	if _, err := s.ledger.ClearSubmission(ctx, sub.UserID, week, sub.Kind); err != nil {
		return err
	}

	if sub.FilePath != nil {
		if err := s.files.Delete(*sub.FilePath); err != nil {
			s.logger.Warn("failed to delete submission file", zap.String("path", *sub.FilePath), zap.Error(err))
		}
	}

	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     models.AuditActionDelete,
		Resource:   "submission",
		ResourceID: &sub.ID,
		OldValues:  []byte(fmt.Sprintf(`{"kind":%q,"user_id":%q,"week_id":%q}`, sub.Kind, sub.UserID, sub.WeekID)),
	}); err != nil {
		s.logger.Warn("failed to record delete audit log", zap.Error(err))
	}
	return nil
}

// List returns submissions matching the filter with pagination metadata.
func (s *SubmissionService) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, *models.Pagination, error) {
	subs, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 {
		pageSize = 20
	}
	return subs, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get loads one submission. Students may only read their own.
func (s *SubmissionService) Get(ctx context.Context, actor *models.JWTClaims, submissionID string) (*models.Submission, error) {
	sub, err := s.findSubmission(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleAdmin && sub.UserID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "submission belongs to another user")
	}
	return sub, nil
}

// DownloadToken issues a signed, expiring token for the submission's file.
func (s *SubmissionService) DownloadToken(ctx context.Context, actor *models.JWTClaims, submissionID string) (*SignedDownload, error) {
	sub, err := s.Get(ctx, actor, submissionID)
	if err != nil {
		return nil, err
	}
	if sub.FilePath == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "submission has no stored file")
	}
	token, expiresAt, err := s.signer.Generate(sub.UserID, *sub.FilePath)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download url")
	}
	return &SignedDownload{Token: token, ExpiresAt: expiresAt}, nil
}

// ResolveDownload validates a signed token and returns the absolute path of
// the file to serve.
func (s *SubmissionService) ResolveDownload(token string) (string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "invalid download token")
	}
	return s.files.Path(relPath), nil
}

func (s *SubmissionService) findSubmission(ctx context.Context, id string) (*models.Submission, error) {
	sub, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "submission not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
	}
	return sub, nil
}

func (s *SubmissionService) findWeek(ctx context.Context, weekID string) (*models.Week, error) {
	week, err := s.curriculum.FindWeek(ctx, weekID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return week, nil
}

func assignmentPath(userID, original string) string {
	base := filepath.Base(strings.TrimSpace(original))
	if base == "." || base == string(filepath.Separator) || base == "" {
		base = "assignment"
	}
	return filepath.ToSlash(filepath.Join("assignments", userID, uuid.NewString()+"_"+base))
}

func intOrNull(v *int) string {
	if v == nil {
		return "null"
	}
	return fmt.Sprintf("%d", *v)
}
