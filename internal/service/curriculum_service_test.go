package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

// Admin mutations for the shared curriculum mock live here; the read side is
// defined next to the progress tests.

func (m *mockCurriculumStore) CreatePhase(ctx context.Context, phase *models.Phase) error {
	m.phases = append(m.phases, *phase)
	return nil
}

func (m *mockCurriculumStore) UpdatePhase(ctx context.Context, phase *models.Phase) error {
	for i := range m.phases {
		if m.phases[i].ID == phase.ID {
			m.phases[i] = *phase
			return nil
		}
	}
	return nil
}

func (m *mockCurriculumStore) CreateWeek(ctx context.Context, week *models.Week) error {
	if m.weeks == nil {
		m.weeks = make(map[string][]models.Week)
	}
	m.weeks[week.PhaseID] = append(m.weeks[week.PhaseID], *week)
	return nil
}

func (m *mockCurriculumStore) UpdateWeek(ctx context.Context, week *models.Week) error {
	for phaseID, weeks := range m.weeks {
		for i := range weeks {
			if weeks[i].ID == week.ID {
				m.weeks[phaseID][i] = *week
				return nil
			}
		}
	}
	return nil
}

func (m *mockCurriculumStore) UpsertContent(ctx context.Context, content *models.Content) error {
	if m.contents == nil {
		m.contents = make(map[string]*models.Content)
	}
	copied := *content
	m.contents[content.WeekID] = &copied
	return nil
}

type mockGate struct {
	unlocked map[string]bool
}

func (m *mockGate) RequireUnlocked(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	if !m.unlocked[week.ID] {
		return nil, appErrors.Clone(appErrors.ErrWeekLocked, "week is locked")
	}
	return &models.Progress{UserID: userID, WeekID: week.ID, IsLocked: false}, nil
}

type curriculumFixture struct {
	repo *mockCurriculumStore
	gate *mockGate
	svc  *CurriculumService
}

func newCurriculumFixture() *curriculumFixture {
	repo := &mockCurriculumStore{
		phases: []models.Phase{
			{ID: "p1", Number: 1, Title: "Foundations", StartWeek: 1, EndWeek: 4, RequiredPointsPercentage: 80},
		},
		weeks: map[string][]models.Week{
			"p1": {
				{ID: "w1", PhaseID: "p1", WeekNumber: 1, Title: "Week 1", VideoPoints: 40, AssignmentPoints: 60},
				{ID: "w2", PhaseID: "p1", WeekNumber: 2, Title: "Week 2", VideoPoints: 40, AssignmentPoints: 60},
			},
		},
		contents: map[string]*models.Content{
			"w1": {
				ID:     "c1",
				WeekID: "w1",
				Body:   "intro",
				MultipleChoiceQuestions: models.QuestionList{
					{Prompt: "pick one", Options: []string{"a", "b", "c"}, CorrectAnswer: 2},
					{Prompt: "pick again", Options: []string{"x", "y"}, CorrectAnswer: 0, Points: 3},
				},
			},
		},
	}
	gate := &mockGate{unlocked: map[string]bool{"w1": true}}
	return &curriculumFixture{
		repo: repo,
		gate: gate,
		svc:  NewCurriculumService(repo, gate, nil, nil),
	}
}

func TestCurriculumCreatePhase(t *testing.T) {
	f := newCurriculumFixture()

	desc := "closing stretch"
	phase, err := f.svc.CreatePhase(context.Background(), CreatePhaseRequest{
		Number:                   2,
		Title:                    "Capstone",
		Description:              &desc,
		StartWeek:                5,
		EndWeek:                  8,
		RequiredPointsPercentage: 75,
	})

	require.NoError(t, err)
	assert.NotEmpty(t, phase.ID)
	assert.Equal(t, 2, phase.Number)
	assert.Equal(t, 5, phase.StartWeek)
	assert.Equal(t, 8, phase.EndWeek)
	assert.Equal(t, 75.0, phase.RequiredPointsPercentage)
	assert.Len(t, f.repo.phases, 2)
}

func TestCurriculumCreatePhaseInvalidRange(t *testing.T) {
	f := newCurriculumFixture()

	_, err := f.svc.CreatePhase(context.Background(), CreatePhaseRequest{
		Number:    2,
		Title:     "Backwards",
		StartWeek: 8,
		EndWeek:   5,
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCurriculumCreatePhaseDuplicateNumber(t *testing.T) {
	f := newCurriculumFixture()

	_, err := f.svc.CreatePhase(context.Background(), CreatePhaseRequest{
		Number:    1,
		Title:     "Again",
		StartWeek: 5,
		EndWeek:   8,
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCurriculumUpdatePhaseKeepsThreshold(t *testing.T) {
	f := newCurriculumFixture()

	desc := "renamed"
	phase, err := f.svc.UpdatePhase(context.Background(), "p1", UpdatePhaseRequest{
		Title:       "Renamed",
		Description: &desc,
	})

	require.NoError(t, err)
	assert.Equal(t, "Renamed", phase.Title)
	require.NotNil(t, phase.Description)
	assert.Equal(t, "renamed", *phase.Description)
	assert.Equal(t, 80.0, phase.RequiredPointsPercentage)
	assert.Equal(t, 80.0, f.repo.phases[0].RequiredPointsPercentage)
}

func TestCurriculumUpdatePhaseNotFound(t *testing.T) {
	f := newCurriculumFixture()

	_, err := f.svc.UpdatePhase(context.Background(), "ghost", UpdatePhaseRequest{Title: "X"})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCurriculumCreateWeekDefaultSplit(t *testing.T) {
	f := newCurriculumFixture()

	week, err := f.svc.CreateWeek(context.Background(), "p1", CreateWeekRequest{
		WeekNumber: 3,
		Title:      "Week 3",
	})

	require.NoError(t, err)
	assert.Equal(t, models.DefaultVideoPoints, week.VideoPoints)
	assert.Equal(t, models.DefaultAssignmentPoints, week.AssignmentPoints)
	assert.Equal(t, 100, week.MaxPoints())
}

func TestCurriculumCreateWeekExplicitBudget(t *testing.T) {
	f := newCurriculumFixture()

	week, err := f.svc.CreateWeek(context.Background(), "p1", CreateWeekRequest{
		WeekNumber:       3,
		Title:            "Heavy week",
		VideoPoints:      20,
		AssignmentPoints: 80,
	})

	require.NoError(t, err)
	assert.Equal(t, 20, week.VideoPoints)
	assert.Equal(t, 80, week.AssignmentPoints)
}

func TestCurriculumCreateWeekOutOfRange(t *testing.T) {
	f := newCurriculumFixture()

	_, err := f.svc.CreateWeek(context.Background(), "p1", CreateWeekRequest{
		WeekNumber: 9,
		Title:      "Too far",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCurriculumCreateWeekDuplicateNumber(t *testing.T) {
	f := newCurriculumFixture()

	_, err := f.svc.CreateWeek(context.Background(), "p1", CreateWeekRequest{
		WeekNumber: 2,
		Title:      "Again",
	})

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestCurriculumUpdateWeek(t *testing.T) {
	f := newCurriculumFixture()

	week, err := f.svc.UpdateWeek(context.Background(), "w2", UpdateWeekRequest{
		Title:            "Week 2 revised",
		VideoPoints:      30,
		AssignmentPoints: 70,
	})

	require.NoError(t, err)
	assert.Equal(t, "Week 2 revised", week.Title)
	assert.Equal(t, 30, f.repo.weeks["p1"][1].VideoPoints)
	assert.Equal(t, 70, f.repo.weeks["p1"][1].AssignmentPoints)
}

func TestCurriculumUpsertContent(t *testing.T) {
	f := newCurriculumFixture()

	deadline := time.Now().Add(7 * 24 * time.Hour)
	content, err := f.svc.UpsertContent(context.Background(), "w2", UpsertContentRequest{
		Body: "second week material",
		MultipleChoiceQuestions: models.QuestionList{
			{Prompt: "q1", Options: []string{"a", "b"}, CorrectAnswer: 1},
		},
		AssignmentDeadline: &deadline,
		Resources: models.ResourceList{
			{Title: "Slides", URL: "https://example.com/slides"},
		},
	})

	require.NoError(t, err)
	assert.Equal(t, "w2", content.WeekID)
	require.NotNil(t, f.repo.contents["w2"])
	assert.Len(t, f.repo.contents["w2"].MultipleChoiceQuestions, 1)
}

func TestCurriculumUpsertContentRejectsBadQuestions(t *testing.T) {
	f := newCurriculumFixture()

	_, err := f.svc.UpsertContent(context.Background(), "w2", UpsertContentRequest{
		Body: "material",
		MultipleChoiceQuestions: models.QuestionList{
			{Prompt: "only one option", Options: []string{"a"}, CorrectAnswer: 0},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = f.svc.UpsertContent(context.Background(), "w2", UpsertContentRequest{
		Body: "material",
		MultipleChoiceQuestions: models.QuestionList{
			{Prompt: "answer points nowhere", Options: []string{"a", "b"}, CorrectAnswer: 2},
		},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestCurriculumGetContentStripsAnswersForStudents(t *testing.T) {
	f := newCurriculumFixture()
	student := &models.JWTClaims{UserID: "student", Role: models.RoleStudent}

	content, err := f.svc.GetContent(context.Background(), student, "w1")

	require.NoError(t, err)
	require.Len(t, content.MultipleChoiceQuestions, 2)
	for _, q := range content.MultipleChoiceQuestions {
		assert.Equal(t, -1, q.CorrectAnswer)
	}
	// The stored copy keeps its answer key.
	assert.Equal(t, 2, f.repo.contents["w1"].MultipleChoiceQuestions[0].CorrectAnswer)
}

func TestCurriculumGetContentAdminSeesAnswers(t *testing.T) {
	f := newCurriculumFixture()
	admin := &models.JWTClaims{UserID: "admin", Role: models.RoleAdmin}

	content, err := f.svc.GetContent(context.Background(), admin, "w1")

	require.NoError(t, err)
	assert.Equal(t, 2, content.MultipleChoiceQuestions[0].CorrectAnswer)
	assert.Equal(t, 0, content.MultipleChoiceQuestions[1].CorrectAnswer)
}

func TestCurriculumGetContentLockedWeek(t *testing.T) {
	f := newCurriculumFixture()
	student := &models.JWTClaims{UserID: "student", Role: models.RoleStudent}

	_, err := f.svc.GetContent(context.Background(), student, "w2")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWeekLocked.Code, appErrors.FromError(err).Code)
}

func TestCurriculumGetContentMissing(t *testing.T) {
	f := newCurriculumFixture()
	f.gate.unlocked["w2"] = true
	student := &models.JWTClaims{UserID: "student", Role: models.RoleStudent}

	_, err := f.svc.GetContent(context.Background(), student, "w2")

	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestCurriculumGetPhaseAttachesWeeks(t *testing.T) {
	f := newCurriculumFixture()

	phase, err := f.svc.GetPhase(context.Background(), "p1")

	require.NoError(t, err)
	require.Len(t, phase.Weeks, 2)
	assert.Equal(t, "w1", phase.Weeks[0].ID)
}
