package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type mockPhaseLedger struct {
	standings []models.PhaseProgress
	unlocked  []string
}

func (m *mockPhaseLedger) PhaseStanding(ctx context.Context, userID string) ([]models.PhaseProgress, error) {
	return m.standings, nil
}

func (m *mockPhaseLedger) UnlockWeek(ctx context.Context, userID string, week *models.Week) error {
	m.unlocked = append(m.unlocked, week.ID)
	return nil
}

type mockCertIssuer struct {
	issued []string
	err    error
}

func (m *mockCertIssuer) IssueIfEligible(ctx context.Context, userID string) (*models.Certificate, error) {
	if m.err != nil {
		return nil, m.err
	}
	m.issued = append(m.issued, userID)
	return &models.Certificate{UserID: userID, CertificateID: "CERT-1-" + userID}, nil
}

func phaseFixture() (*mockCurriculumStore, *mockUserStore, *mockPhaseLedger, *mockCertIssuer, *mockAuditor, *mockNotifier) {
	curriculum := &mockCurriculumStore{
		phases: []models.Phase{
			{ID: "p1", Number: 1, StartWeek: 1, EndWeek: 2, RequiredPointsPercentage: 80},
			{ID: "p2", Number: 2, StartWeek: 3, EndWeek: 4, RequiredPointsPercentage: 80},
		},
		weeks: map[string][]models.Week{
			"p1": {
				{ID: "w1", PhaseID: "p1", WeekNumber: 1},
				{ID: "w2", PhaseID: "p1", WeekNumber: 2},
			},
			"p2": {
				{ID: "w3", PhaseID: "p2", WeekNumber: 3},
				{ID: "w4", PhaseID: "p2", WeekNumber: 4},
			},
		},
	}
	users := &mockUserStore{users: map[string]*models.User{
		"student": {ID: "student", Role: models.RoleStudent, CurrentPhase: 1, CurrentWeek: 2},
		"admin":   {ID: "admin", Role: models.RoleAdmin},
	}}
	return curriculum, users, &mockPhaseLedger{}, &mockCertIssuer{}, &mockAuditor{}, &mockNotifier{}
}

func newPhaseService(curriculum *mockCurriculumStore, users *mockUserStore, ledger *mockPhaseLedger, certs *mockCertIssuer, auditor *mockAuditor, notifier *mockNotifier) *PhaseService {
	return NewPhaseService(curriculum, users, ledger, certs, auditor, notifier, zap.NewNop())
}

func TestPhaseServiceApproveAdvancesStudent(t *testing.T) {
	curriculum, users, ledger, certs, auditor, notifier := phaseFixture()
	ledger.standings = []models.PhaseProgress{
		{PhaseNumber: 1, RequirementsMet: true},
		{PhaseNumber: 2},
	}
	svc := newPhaseService(curriculum, users, ledger, certs, auditor, notifier)

	student, err := svc.Approve(context.Background(), "admin", "student")
	require.NoError(t, err)
	assert.Equal(t, 2, student.CurrentPhase)
	assert.Equal(t, 3, student.CurrentWeek)
	assert.Equal(t, []string{"w3"}, ledger.unlocked)
	assert.Empty(t, certs.issued)

	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionPhaseApprove, auditor.logs[0].Action)
	require.Len(t, notifier.userEvents, 1)
	assert.Equal(t, models.NotifyPhaseApproved, notifier.userEvents[0].Type)
}

func TestPhaseServiceApproveGateNotMet(t *testing.T) {
	curriculum, users, ledger, certs, auditor, notifier := phaseFixture()
	ledger.standings = []models.PhaseProgress{
		{PhaseNumber: 1, RequirementsMet: false},
	}
	svc := newPhaseService(curriculum, users, ledger, certs, auditor, notifier)

	_, err := svc.Approve(context.Background(), "admin", "student")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrPhaseGate.Code, appErrors.FromError(err).Code)
	assert.Empty(t, ledger.unlocked)
	assert.Empty(t, auditor.logs)
}

func TestPhaseServiceApproveFinalPhaseIssuesCertificate(t *testing.T) {
	curriculum, users, ledger, certs, auditor, notifier := phaseFixture()
	users.users["student"].CurrentPhase = 2
	ledger.standings = []models.PhaseProgress{
		{PhaseNumber: 1, RequirementsMet: true},
		{PhaseNumber: 2, RequirementsMet: true},
	}
	svc := newPhaseService(curriculum, users, ledger, certs, auditor, notifier)

	student, err := svc.Approve(context.Background(), "admin", "student")
	require.NoError(t, err)
	assert.Equal(t, 2, student.CurrentPhase)
	assert.Equal(t, []string{"student"}, certs.issued)
	assert.Empty(t, ledger.unlocked)
}

func TestPhaseServiceApproveRejectsAdminTarget(t *testing.T) {
	curriculum, users, ledger, certs, auditor, notifier := phaseFixture()
	svc := newPhaseService(curriculum, users, ledger, certs, auditor, notifier)

	_, err := svc.Approve(context.Background(), "admin", "admin")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestPhaseServiceApproveUnknownStudent(t *testing.T) {
	curriculum, users, ledger, certs, auditor, notifier := phaseFixture()
	svc := newPhaseService(curriculum, users, ledger, certs, auditor, notifier)

	_, err := svc.Approve(context.Background(), "admin", "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestPhaseServiceStandingDelegates(t *testing.T) {
	curriculum, users, ledger, certs, auditor, notifier := phaseFixture()
	ledger.standings = []models.PhaseProgress{{PhaseNumber: 1, CompletedWeeks: 2}}
	svc := newPhaseService(curriculum, users, ledger, certs, auditor, notifier)

	standings, err := svc.Standing(context.Background(), "student")
	require.NoError(t, err)
	require.Len(t, standings, 1)
	assert.Equal(t, 2, standings[0].CompletedWeeks)
}
