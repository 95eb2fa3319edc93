package service

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type progressLedger interface {
	FindByUserAndWeek(ctx context.Context, userID, weekID string) (*models.Progress, error)
	ListByUser(ctx context.Context, userID string) ([]models.Progress, error)
	Create(ctx context.Context, progress *models.Progress) error
	ApplyUpdate(ctx context.Context, userID, weekID string, mutate func(*models.Progress) error) (*models.Progress, error)
	Unlock(ctx context.Context, userID, weekID string) error
	SumPoints(ctx context.Context, userID string) (int, error)
	CountCompletedByUser(ctx context.Context, userID string) (int, error)
}

type progressCurriculum interface {
	ListPhases(ctx context.Context) ([]models.Phase, error)
	FindPhase(ctx context.Context, id string) (*models.Phase, error)
	FindWeek(ctx context.Context, id string) (*models.Week, error)
	FindWeekByNumber(ctx context.Context, phaseID string, weekNumber int) (*models.Week, error)
	ListWeeks(ctx context.Context, phaseID string) ([]models.Week, error)
}

type progressUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	RefreshTotalPoints(ctx context.Context, userID string) error
	AdvancePhase(ctx context.Context, userID string, phase, week int) error
}

type progressSubmissionReader interface {
	FindByUserWeekKind(ctx context.Context, userID, weekID string, kind models.SubmissionKind) (*models.Submission, error)
}

type progressNotifier interface {
	NotifyUser(ctx context.Context, userID string, eventType models.NotificationType, data map[string]interface{})
	NotifyAdmins(ctx context.Context, eventType models.NotificationType, data map[string]interface{})
}

type dashboardInvalidator interface {
	InvalidateUser(ctx context.Context, userID string)
}

// ProgressService owns the per-week progress ledger. Every point mutation in
// the application funnels through it so the component-sum invariant, the
// total-points refresh on the user row and the unlock evaluation happen in
// exactly one place.
type ProgressService struct {
	ledger      progressLedger
	curriculum  progressCurriculum
	users       progressUserStore
	submissions progressSubmissionReader
	notifier    progressNotifier
	invalidator dashboardInvalidator
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewProgressService constructs a ProgressService.
func NewProgressService(
	ledger progressLedger,
	curriculum progressCurriculum,
	users progressUserStore,
	submissions progressSubmissionReader,
	notifier progressNotifier,
	invalidator dashboardInvalidator,
	validate *validator.Validate,
	logger *zap.Logger,
) *ProgressService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &ProgressService{
		ledger:      ledger,
		curriculum:  curriculum,
		users:       users,
		submissions: submissions,
		notifier:    notifier,
		invalidator: invalidator,
		validator:   validate,
		logger:      logger,
	}
}

// GetOrCreate returns the ledger row for the student and week, creating it
// lazily on first touch. Only the very first week of the course starts
// unlocked; every other row is born locked and opened by unlock evaluation
// or phase approval.
func (s *ProgressService) GetOrCreate(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	row, err := s.ledger.FindByUserAndWeek(ctx, userID, week.ID)
	if err == nil {
		return row, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load progress")
	}

	now := time.Now().UTC()
	fresh := &models.Progress{
		ID:        uuid.NewString(),
		UserID:    userID,
		WeekID:    week.ID,
		IsLocked:  week.WeekNumber != 1,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if !fresh.IsLocked {
		fresh.UnlockedAt = &now
	}
	if err := s.ledger.Create(ctx, fresh); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create progress")
	}

	// Re-read after the conflict-tolerant insert so concurrent first
	// touches converge on the same row.
	row, err = s.ledger.FindByUserAndWeek(ctx, userID, week.ID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload progress")
	}
	return row, nil
}

// RequireUnlocked loads the ledger row and rejects interaction with a locked
// week.
func (s *ProgressService) RequireUnlocked(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	row, err := s.GetOrCreate(ctx, userID, week)
	if err != nil {
		return nil, err
	}
	if row.IsLocked {
		return nil, appErrors.Clone(appErrors.ErrWeekLocked, "week is locked")
	}
	return row, nil
}

// RecordVideoProgress stores a watched-percentage report. Crossing the award
// threshold grants the week's video points once; the grant survives later
// reports with a lower percentage.
func (s *ProgressService) RecordVideoProgress(ctx context.Context, userID, weekID string, req models.VideoProgressRequest) (*models.Progress, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid video progress payload")
	}

	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	if _, err := s.RequireUnlocked(ctx, userID, week); err != nil {
		return nil, err
	}

	assignment, quiz, err := s.loadSubmissions(ctx, userID, weekID)
	if err != nil {
		return nil, err
	}

	updated, err := s.ledger.ApplyUpdate(ctx, userID, weekID, func(p *models.Progress) error {
		if req.Progress > p.VideoProgress {
			p.VideoProgress = req.Progress
		}
		if !p.VideoWatched && (req.Progress >= VideoAwardThreshold || req.Completed) {
			p.VideoWatched = true
			p.VideoPoints = week.VideoPoints
		}
		p.Completed = WeekCompleted(p.VideoWatched, assignment, quiz)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update video progress")
	}

	s.afterPointChange(ctx, userID, week, updated)
	return updated, nil
}

// SetAssignmentSubmitted flags the assignment track without touching points.
func (s *ProgressService) SetAssignmentSubmitted(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	if _, err := s.GetOrCreate(ctx, userID, week); err != nil {
		return nil, err
	}
	updated, err := s.ledger.ApplyUpdate(ctx, userID, week.ID, func(p *models.Progress) error {
		p.AssignmentSubmitted = true
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag assignment submission")
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, userID)
	}
	return updated, nil
}

// SetQuizSubmitted flags the quiz track without touching points.
func (s *ProgressService) SetQuizSubmitted(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	if _, err := s.GetOrCreate(ctx, userID, week); err != nil {
		return nil, err
	}
	updated, err := s.ledger.ApplyUpdate(ctx, userID, week.ID, func(p *models.Progress) error {
		p.QuizSubmitted = true
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to flag quiz submission")
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, userID)
	}
	return updated, nil
}

// SetAssignmentScore rewrites the assignment component and its bonus. The
// submission row must already carry the new score so completion is
// recomputed against current data.
func (s *ProgressService) SetAssignmentScore(ctx context.Context, userID string, week *models.Week, points, bonus int) (*models.Progress, error) {
	if _, err := s.GetOrCreate(ctx, userID, week); err != nil {
		return nil, err
	}
	assignment, quiz, err := s.loadSubmissions(ctx, userID, week.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.ledger.ApplyUpdate(ctx, userID, week.ID, func(p *models.Progress) error {
		p.AssignmentSubmitted = true
		p.AssignmentPoints = points
		p.BonusPoints = bonus
		p.Completed = WeekCompleted(p.VideoWatched, assignment, quiz)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply assignment score")
	}
	s.afterPointChange(ctx, userID, week, updated)
	return updated, nil
}

// SetQuizScore rewrites the quiz component. Quizzes never carry a bonus.
func (s *ProgressService) SetQuizScore(ctx context.Context, userID string, week *models.Week, points int) (*models.Progress, error) {
	if _, err := s.GetOrCreate(ctx, userID, week); err != nil {
		return nil, err
	}
	assignment, quiz, err := s.loadSubmissions(ctx, userID, week.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.ledger.ApplyUpdate(ctx, userID, week.ID, func(p *models.Progress) error {
		p.QuizSubmitted = true
		p.QuizPoints = points
		p.Completed = WeekCompleted(p.VideoWatched, assignment, quiz)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to apply quiz score")
	}
	s.afterPointChange(ctx, userID, week, updated)
	return updated, nil
}

// ClearSubmission zeroes the component for a deleted submission and
// recomputes completion from whatever remains.
func (s *ProgressService) ClearSubmission(ctx context.Context, userID string, week *models.Week, kind models.SubmissionKind) (*models.Progress, error) {
	assignment, quiz, err := s.loadSubmissions(ctx, userID, week.ID)
	if err != nil {
		return nil, err
	}
	updated, err := s.ledger.ApplyUpdate(ctx, userID, week.ID, func(p *models.Progress) error {
		switch kind {
		case models.KindAssignment:
			p.AssignmentSubmitted = false
			p.AssignmentPoints = 0
			p.BonusPoints = 0
		case models.KindQuiz:
			p.QuizSubmitted = false
			p.QuizPoints = 0
		}
		p.Completed = WeekCompleted(p.VideoWatched, assignment, quiz)
		return nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to clear submission points")
	}
	s.afterPointChange(ctx, userID, week, updated)
	return updated, nil
}

// WeekStates lists a phase's weeks decorated with the student's ledger
// state. Weeks the student never touched appear locked with zero points,
// except the first week of the course which is always open.
func (s *ProgressService) WeekStates(ctx context.Context, userID, phaseID string) ([]models.WeekWithState, error) {
	weeks, err := s.curriculum.ListWeeks(ctx, phaseID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list weeks")
	}
	rows, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}

	byWeek := make(map[string]models.Progress, len(rows))
	for _, row := range rows {
		byWeek[row.WeekID] = row
	}

	states := make([]models.WeekWithState, 0, len(weeks))
	for _, week := range weeks {
		state := models.WeekWithState{Week: week, IsLocked: week.WeekNumber != 1}
		if row, ok := byWeek[week.ID]; ok {
			state.IsLocked = row.IsLocked
			state.Completed = row.Completed
			state.Points = row.Points
		}
		states = append(states, state)
	}
	return states, nil
}

// GetWeekProgress returns the student's ledger row for one week.
func (s *ProgressService) GetWeekProgress(ctx context.Context, userID, weekID string) (*models.Progress, error) {
	week, err := s.findWeek(ctx, weekID)
	if err != nil {
		return nil, err
	}
	return s.GetOrCreate(ctx, userID, week)
}

// PhaseStanding summarises the student's position in every phase: completed
// weeks, earned versus possible points and whether the advancement gate is
// satisfied.
func (s *ProgressService) PhaseStanding(ctx context.Context, userID string) ([]models.PhaseProgress, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}

	phases, err := s.curriculum.ListPhases(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list phases")
	}
	rows, err := s.ledger.ListByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list progress")
	}
	byWeek := make(map[string]models.Progress, len(rows))
	for _, row := range rows {
		byWeek[row.WeekID] = row
	}

	standings := make([]models.PhaseProgress, 0, len(phases))
	for _, phase := range phases {
		weeks, err := s.curriculum.ListWeeks(ctx, phase.ID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list phase weeks")
		}

		standing := models.PhaseProgress{
			PhaseID:            phase.ID,
			PhaseNumber:        phase.Number,
			TotalWeeks:         len(weeks),
			RequiredPercentage: phase.RequiredPointsPercentage,
		}
		for _, week := range weeks {
			standing.PossiblePoints += week.MaxPoints()
			if row, ok := byWeek[week.ID]; ok {
				standing.EarnedPoints += row.Points
				if row.Completed {
					standing.CompletedWeeks++
				}
			}
		}
		standing.PointsPercentage = PointsPercentage(standing.EarnedPoints, standing.PossiblePoints)
		standing.RequirementsMet = standing.TotalWeeks > 0 &&
			standing.CompletedWeeks == standing.TotalWeeks &&
			standing.PointsPercentage >= standing.RequiredPercentage
		standing.AwaitingApproval = standing.RequirementsMet && user.CurrentPhase == phase.Number
		standings = append(standings, standing)
	}
	return standings, nil
}

// UnlockWeek opens a specific week's row for a student. Used by phase
// approval to open the first week of the next phase.
func (s *ProgressService) UnlockWeek(ctx context.Context, userID string, week *models.Week) error {
	if _, err := s.GetOrCreate(ctx, userID, week); err != nil {
		return err
	}
	if err := s.ledger.Unlock(ctx, userID, week.ID); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unlock week")
	}
	s.notifier.NotifyUser(ctx, userID, models.NotifyWeekUnlocked, map[string]interface{}{
		"week_id":     week.ID,
		"week_number": week.WeekNumber,
	})
	return nil
}

// afterPointChange runs the bookkeeping every point mutation requires:
// refreshing the user's cached total, invalidating dashboards and, when the
// week just completed, evaluating the sequential unlock and the phase gate.
func (s *ProgressService) afterPointChange(ctx context.Context, userID string, week *models.Week, row *models.Progress) {
	if err := s.users.RefreshTotalPoints(ctx, userID); err != nil {
		s.logger.Warn("failed to refresh user total points", zap.String("user_id", userID), zap.Error(err))
	}
	if s.invalidator != nil {
		s.invalidator.InvalidateUser(ctx, userID)
	}
	if !row.Completed {
		return
	}

	phase, err := s.curriculum.FindPhase(ctx, week.PhaseID)
	if err != nil {
		s.logger.Warn("failed to load phase for unlock evaluation", zap.String("phase_id", week.PhaseID), zap.Error(err))
		return
	}

	if week.WeekNumber < phase.EndWeek {
		next, err := s.curriculum.FindWeekByNumber(ctx, phase.ID, week.WeekNumber+1)
		if err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				s.logger.Warn("failed to load next week", zap.Int("week_number", week.WeekNumber+1), zap.Error(err))
			}
			return
		}
		if err := s.UnlockWeek(ctx, userID, next); err != nil {
			s.logger.Warn("failed to unlock next week", zap.String("week_id", next.ID), zap.Error(err))
			return
		}
		s.advancePosition(ctx, userID, phase.Number, next.WeekNumber)
		return
	}

	// Last week of the phase: the next phase stays gated behind admin
	// approval, but everyone gets told the gate is reachable.
	standings, err := s.PhaseStanding(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to evaluate phase gate", zap.String("user_id", userID), zap.Error(err))
		return
	}
	for _, standing := range standings {
		if standing.PhaseNumber != phase.Number || !standing.RequirementsMet {
			continue
		}
		payload := map[string]interface{}{
			"phase_id":     phase.ID,
			"phase_number": phase.Number,
		}
		s.notifier.NotifyUser(ctx, userID, models.NotifyPhaseCompleted, payload)
		payload["user_id"] = userID
		s.notifier.NotifyAdmins(ctx, models.NotifyPhaseCompleted, payload)
	}
}

// advancePosition moves the user's cached position forward, never backward.
func (s *ProgressService) advancePosition(ctx context.Context, userID string, phaseNumber, weekNumber int) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		s.logger.Warn("failed to load user for position update", zap.String("user_id", userID), zap.Error(err))
		return
	}
	if phaseNumber < user.CurrentPhase || (phaseNumber == user.CurrentPhase && weekNumber <= user.CurrentWeek) {
		return
	}
	if err := s.users.AdvancePhase(ctx, userID, phaseNumber, weekNumber); err != nil {
		s.logger.Warn("failed to advance user position", zap.String("user_id", userID), zap.Error(err))
	}
}

func (s *ProgressService) findWeek(ctx context.Context, weekID string) (*models.Week, error) {
	week, err := s.curriculum.FindWeek(ctx, weekID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "week not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load week")
	}
	return week, nil
}

func (s *ProgressService) loadSubmissions(ctx context.Context, userID, weekID string) (assignment, quiz *models.Submission, err error) {
	assignment, err = s.submissions.FindByUserWeekKind(ctx, userID, weekID, models.KindAssignment)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment submission")
		}
		assignment = nil
	}
	quiz, err = s.submissions.FindByUserWeekKind(ctx, userID, weekID, models.KindQuiz)
	if err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load quiz submission")
		}
		quiz = nil
	}
	return assignment, quiz, nil
}
