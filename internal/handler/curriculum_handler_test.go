package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkan-dev/bootcamp-api/internal/middleware"
	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/internal/service"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
	"github.com/arkan-dev/bootcamp-api/pkg/response"
)

type fakeCurriculumRepo struct {
	phases  []models.Phase
	weeks   map[string][]models.Week
	content map[string]*models.Content
}

func (f *fakeCurriculumRepo) ListPhases(ctx context.Context) ([]models.Phase, error) {
	return f.phases, nil
}

func (f *fakeCurriculumRepo) FindPhase(ctx context.Context, id string) (*models.Phase, error) {
	for i := range f.phases {
		if f.phases[i].ID == id {
			copied := f.phases[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumRepo) FindPhaseByNumber(ctx context.Context, number int) (*models.Phase, error) {
	for i := range f.phases {
		if f.phases[i].Number == number {
			copied := f.phases[i]
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumRepo) CreatePhase(ctx context.Context, phase *models.Phase) error {
	f.phases = append(f.phases, *phase)
	return nil
}

func (f *fakeCurriculumRepo) UpdatePhase(ctx context.Context, phase *models.Phase) error {
	return nil
}

func (f *fakeCurriculumRepo) ListWeeks(ctx context.Context, phaseID string) ([]models.Week, error) {
	return f.weeks[phaseID], nil
}

func (f *fakeCurriculumRepo) FindWeek(ctx context.Context, id string) (*models.Week, error) {
	for _, weeks := range f.weeks {
		for i := range weeks {
			if weeks[i].ID == id {
				copied := weeks[i]
				return &copied, nil
			}
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumRepo) FindWeekByNumber(ctx context.Context, phaseID string, weekNumber int) (*models.Week, error) {
	for _, week := range f.weeks[phaseID] {
		if week.WeekNumber == weekNumber {
			copied := week
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumRepo) CreateWeek(ctx context.Context, week *models.Week) error { return nil }

func (f *fakeCurriculumRepo) UpdateWeek(ctx context.Context, week *models.Week) error { return nil }

func (f *fakeCurriculumRepo) FindContentByWeek(ctx context.Context, weekID string) (*models.Content, error) {
	if c, ok := f.content[weekID]; ok {
		copied := *c
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (f *fakeCurriculumRepo) UpsertContent(ctx context.Context, content *models.Content) error {
	return nil
}

type fakeUnlockGate struct {
	unlocked map[string]bool
}

func (f *fakeUnlockGate) RequireUnlocked(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	if !f.unlocked[week.ID] {
		return nil, appErrors.Clone(appErrors.ErrWeekLocked, "week is locked")
	}
	return &models.Progress{UserID: userID, WeekID: week.ID}, nil
}

func newCurriculumHandler() (*CurriculumHandler, *fakeUnlockGate) {
	repo := &fakeCurriculumRepo{
		phases: []models.Phase{
			{ID: "p1", Number: 1, Title: "Foundations", StartWeek: 1, EndWeek: 4},
		},
		weeks: map[string][]models.Week{
			"p1": {{ID: "w1", PhaseID: "p1", WeekNumber: 1, Title: "Week 1", VideoPoints: 40, AssignmentPoints: 60}},
		},
		content: map[string]*models.Content{
			"w1": {
				ID:     "c1",
				WeekID: "w1",
				Body:   "intro",
				MultipleChoiceQuestions: models.QuestionList{
					{Prompt: "pick one", Options: []string{"a", "b"}, CorrectAnswer: 1},
				},
			},
		},
	}
	gate := &fakeUnlockGate{unlocked: map[string]bool{"w1": true}}
	svc := service.NewCurriculumService(repo, gate, nil, nil)
	return NewCurriculumHandler(svc, nil), gate
}

func TestCurriculumHandlerListPhases(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCurriculumHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/phases", nil)

	handler.ListPhases(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data []models.Phase `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data, 1)
	assert.Equal(t, "Foundations", envelope.Data[0].Title)
}

func TestCurriculumHandlerGetPhaseNotFound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCurriculumHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/phases/ghost", nil)
	c.Params = gin.Params{{Key: "id", Value: "ghost"}}

	handler.GetPhase(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrNotFound.Code, envelope.Error.Code)
}

func TestCurriculumHandlerGetContentStripsAnswers(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCurriculumHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/weeks/w1/content", nil)
	c.Params = gin.Params{{Key: "id", Value: "w1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student", Role: models.RoleStudent})

	handler.GetContent(c)

	assert.Equal(t, http.StatusOK, rec.Code)
	var envelope struct {
		Data models.Content `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.Len(t, envelope.Data.MultipleChoiceQuestions, 1)
	assert.Equal(t, -1, envelope.Data.MultipleChoiceQuestions[0].CorrectAnswer)
}

func TestCurriculumHandlerGetContentLocked(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, gate := newCurriculumHandler()
	gate.unlocked["w1"] = false

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/weeks/w1/content", nil)
	c.Params = gin.Params{{Key: "id", Value: "w1"}}
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "student", Role: models.RoleStudent})

	handler.GetContent(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	var envelope response.Envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	require.NotNil(t, envelope.Error)
	assert.Equal(t, appErrors.ErrWeekLocked.Code, envelope.Error.Code)
}

func TestCurriculumHandlerGetContentRequiresAuth(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCurriculumHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/weeks/w1/content", nil)
	c.Params = gin.Params{{Key: "id", Value: "w1"}}

	handler.GetContent(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurriculumHandlerCreatePhaseBadPayload(t *testing.T) {
	gin.SetMode(gin.TestMode)
	handler, _ := newCurriculumHandler()

	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/phases", strings.NewReader("{not json"))
	c.Request.Header.Set("Content-Type", "application/json")

	handler.CreatePhase(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
