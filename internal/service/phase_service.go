package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type phaseCurriculum interface {
	FindPhaseByNumber(ctx context.Context, number int) (*models.Phase, error)
	FindWeekByNumber(ctx context.Context, phaseID string, weekNumber int) (*models.Week, error)
}

type phaseUserStore interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	AdvancePhase(ctx context.Context, userID string, phase, week int) error
}

// phaseLedger is the slice of ProgressService phase advancement needs.
type phaseLedger interface {
	PhaseStanding(ctx context.Context, userID string) ([]models.PhaseProgress, error)
	UnlockWeek(ctx context.Context, userID string, week *models.Week) error
}

type certificateIssuer interface {
	IssueIfEligible(ctx context.Context, userID string) (*models.Certificate, error)
}

// PhaseService handles phase gate evaluation and admin-approved advancement.
// Approval always re-checks the gate so a stale review screen cannot push a
// student past requirements they no longer meet.
type PhaseService struct {
	curriculum phaseCurriculum
	users      phaseUserStore
	ledger     phaseLedger
	certs      certificateIssuer
	auditor    submissionAuditor
	notifier   progressNotifier
	logger     *zap.Logger
}

// NewPhaseService constructs a PhaseService.
func NewPhaseService(
	curriculum phaseCurriculum,
	users phaseUserStore,
	ledger phaseLedger,
	certs certificateIssuer,
	auditor submissionAuditor,
	notifier progressNotifier,
	logger *zap.Logger,
) *PhaseService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PhaseService{
		curriculum: curriculum,
		users:      users,
		ledger:     ledger,
		certs:      certs,
		auditor:    auditor,
		notifier:   notifier,
		logger:     logger,
	}
}

// Standing exposes the gate evaluation for one student.
func (s *PhaseService) Standing(ctx context.Context, userID string) ([]models.PhaseProgress, error) {
	return s.ledger.PhaseStanding(ctx, userID)
}

// Approve advances a student past their current phase. The gate (all weeks
// completed and the points threshold reached) is re-evaluated at approval
// time. Approving the final phase completes the course and triggers
// certificate issuance.
func (s *PhaseService) Approve(ctx context.Context, adminID, studentID string) (*models.User, error) {
	student, err := s.users.FindByID(ctx, studentID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "student not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load student")
	}
	if student.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrValidation, "phase approval applies to students only")
	}

	phase, err := s.curriculum.FindPhaseByNumber(ctx, student.CurrentPhase)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "current phase not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load phase")
	}

	standings, err := s.ledger.PhaseStanding(ctx, studentID)
	if err != nil {
		return nil, err
	}
	met := false
	for _, standing := range standings {
		if standing.PhaseNumber == phase.Number {
			met = standing.RequirementsMet
			break
		}
	}
	if !met {
		return nil, appErrors.Clone(appErrors.ErrPhaseGate, fmt.Sprintf("phase %d requirements are not met", phase.Number))
	}

	next, err := s.curriculum.FindPhaseByNumber(ctx, phase.Number+1)
	switch {
	case err == nil:
		startWeek, err := s.curriculum.FindWeekByNumber(ctx, next.ID, next.StartWeek)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return nil, appErrors.Clone(appErrors.ErrNotFound, "next phase has no starting week")
			}
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load next phase week")
		}
		if err := s.ledger.UnlockWeek(ctx, studentID, startWeek); err != nil {
			return nil, err
		}
		if err := s.users.AdvancePhase(ctx, studentID, next.Number, next.StartWeek); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to advance student")
		}
		student.CurrentPhase = next.Number
		student.CurrentWeek = next.StartWeek

	case errors.Is(err, sql.ErrNoRows):
		// Final phase approved: the course is complete.
		if _, err := s.certs.IssueIfEligible(ctx, studentID); err != nil {
			return nil, err
		}

	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load next phase")
	}

	if err := s.auditor.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &adminID,
		Action:     models.AuditActionPhaseApprove,
		Resource:   "phase",
		ResourceID: &phase.ID,
		NewValues:  []byte(fmt.Sprintf(`{"student_id":%q,"phase":%d}`, studentID, phase.Number)),
	}); err != nil {
		s.logger.Warn("failed to record phase approval audit log", zap.Error(err))
	}

	s.notifier.NotifyUser(ctx, studentID, models.NotifyPhaseApproved, map[string]interface{}{
		"phase_number": phase.Number,
		"approved_by":  adminID,
	})
	return student, nil
}
