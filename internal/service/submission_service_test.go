package service

import (
	"context"
	"database/sql"
	"io"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type mockSubmissionStore struct {
	subs    map[string]*models.Submission
	deleted []string
}

func (m *mockSubmissionStore) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	if sub, ok := m.subs[id]; ok {
		copied := *sub
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionStore) FindByUserWeekKind(ctx context.Context, userID, weekID string, kind models.SubmissionKind) (*models.Submission, error) {
	for _, sub := range m.subs {
		if sub.UserID == userID && sub.WeekID == weekID && sub.Kind == kind {
			copied := *sub
			return &copied, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (m *mockSubmissionStore) List(ctx context.Context, filter models.SubmissionFilter) ([]models.Submission, int, error) {
	out := []models.Submission{}
	for _, sub := range m.subs {
		out = append(out, *sub)
	}
	return out, len(out), nil
}

func (m *mockSubmissionStore) Create(ctx context.Context, sub *models.Submission) error {
	if m.subs == nil {
		m.subs = make(map[string]*models.Submission)
	}
	copied := *sub
	m.subs[sub.ID] = &copied
	return nil
}

func (m *mockSubmissionStore) Update(ctx context.Context, sub *models.Submission) error {
	copied := *sub
	m.subs[sub.ID] = &copied
	return nil
}

func (m *mockSubmissionStore) Delete(ctx context.Context, id string) error {
	delete(m.subs, id)
	m.deleted = append(m.deleted, id)
	return nil
}

type ledgerCall struct {
	Method string
	UserID string
	WeekID string
	Points int
	Bonus  int
	Kind   models.SubmissionKind
}

type mockSubLedger struct {
	locked map[string]bool
	calls  []ledgerCall
}

func (m *mockSubLedger) RequireUnlocked(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	if m.locked[week.ID] {
		return nil, appErrors.Clone(appErrors.ErrWeekLocked, "week is locked")
	}
	return &models.Progress{UserID: userID, WeekID: week.ID}, nil
}

func (m *mockSubLedger) SetAssignmentSubmitted(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	m.calls = append(m.calls, ledgerCall{Method: "SetAssignmentSubmitted", UserID: userID, WeekID: week.ID})
	return &models.Progress{}, nil
}

func (m *mockSubLedger) SetQuizSubmitted(ctx context.Context, userID string, week *models.Week) (*models.Progress, error) {
	m.calls = append(m.calls, ledgerCall{Method: "SetQuizSubmitted", UserID: userID, WeekID: week.ID})
	return &models.Progress{}, nil
}

func (m *mockSubLedger) SetAssignmentScore(ctx context.Context, userID string, week *models.Week, points, bonus int) (*models.Progress, error) {
	m.calls = append(m.calls, ledgerCall{Method: "SetAssignmentScore", UserID: userID, WeekID: week.ID, Points: points, Bonus: bonus})
	return &models.Progress{}, nil
}

func (m *mockSubLedger) SetQuizScore(ctx context.Context, userID string, week *models.Week, points int) (*models.Progress, error) {
	m.calls = append(m.calls, ledgerCall{Method: "SetQuizScore", UserID: userID, WeekID: week.ID, Points: points})
	return &models.Progress{}, nil
}

func (m *mockSubLedger) ClearSubmission(ctx context.Context, userID string, week *models.Week, kind models.SubmissionKind) (*models.Progress, error) {
	m.calls = append(m.calls, ledgerCall{Method: "ClearSubmission", UserID: userID, WeekID: week.ID, Kind: kind})
	return &models.Progress{}, nil
}

func (m *mockSubLedger) lastCall() ledgerCall {
	if len(m.calls) == 0 {
		return ledgerCall{}
	}
	return m.calls[len(m.calls)-1]
}

type mockFileStore struct {
	saved   map[string][]byte
	deleted []string
	saveErr error
}

func (m *mockFileStore) SaveStream(filename string, r io.Reader) (string, error) {
	if m.saveErr != nil {
		return "", m.saveErr
	}
	if m.saved == nil {
		m.saved = make(map[string][]byte)
	}
	data, _ := io.ReadAll(r)
	m.saved[filename] = data
	return filename, nil
}

func (m *mockFileStore) Save(filename string, data []byte) (string, error) {
	return m.SaveStream(filename, strings.NewReader(string(data)))
}

func (m *mockFileStore) Read(filename string) ([]byte, error) {
	if data, ok := m.saved[filename]; ok {
		return data, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockFileStore) Delete(filename string) error {
	delete(m.saved, filename)
	m.deleted = append(m.deleted, filename)
	return nil
}

func (m *mockFileStore) Path(filename string) string {
	return "/uploads/" + filename
}

type mockSigner struct{}

func (m *mockSigner) Generate(ownerID, relPath string) (string, time.Time, error) {
	return ownerID + ":" + relPath, time.Now().Add(time.Hour), nil
}

func (m *mockSigner) Parse(token string, allowExpired bool) (string, string, time.Time, error) {
	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return "", "", time.Time{}, appErrors.Clone(appErrors.ErrUnauthorized, "bad token")
	}
	return parts[0], parts[1], time.Now().Add(time.Hour), nil
}

type mockAuditor struct {
	logs []*models.AuditLog
}

func (m *mockAuditor) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, log)
	return nil
}

func submissionFixture() (*mockSubmissionStore, *mockCurriculumStore, *mockSubLedger, *mockFileStore, *mockAuditor, *mockNotifier) {
	curriculum := &mockCurriculumStore{
		weeks: map[string][]models.Week{
			"p1": {{ID: "w1", PhaseID: "p1", WeekNumber: 1, VideoPoints: 40, AssignmentPoints: 60}},
		},
		contents: map[string]*models.Content{},
	}
	return &mockSubmissionStore{subs: map[string]*models.Submission{}},
		curriculum,
		&mockSubLedger{locked: map[string]bool{}},
		&mockFileStore{},
		&mockAuditor{},
		&mockNotifier{}
}

func newSubmissionService(store *mockSubmissionStore, curriculum *mockCurriculumStore, ledger *mockSubLedger, files *mockFileStore, auditor *mockAuditor, notifier *mockNotifier) *SubmissionService {
	return NewSubmissionService(store, curriculum, ledger, files, &mockSigner{}, auditor, notifier, nil, zap.NewNop())
}

func TestSubmissionServiceSubmitAssignmentWithFile(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	sub, err := svc.SubmitAssignment(context.Background(), "student", "w1", SubmitAssignmentRequest{
		FileName: "solution.zip",
		File:     strings.NewReader("payload"),
	})
	require.NoError(t, err)
	require.NotNil(t, sub.FilePath)
	assert.True(t, strings.HasPrefix(*sub.FilePath, "assignments/student/"))
	assert.True(t, sub.OnTime)
	assert.Equal(t, models.StatusSubmitted, sub.Status)
	assert.Equal(t, "SetAssignmentSubmitted", ledger.lastCall().Method)
	require.Len(t, notifier.adminEvents, 1)
	assert.Equal(t, models.NotifySubmissionReceived, notifier.adminEvents[0].Type)
}

func TestSubmissionServiceSubmitAssignmentLinkOnly(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	link := "https://github.com/student/solution"
	sub, err := svc.SubmitAssignment(context.Background(), "student", "w1", SubmitAssignmentRequest{Link: &link})
	require.NoError(t, err)
	assert.Nil(t, sub.FilePath)
	require.NotNil(t, sub.Link)
	assert.Equal(t, link, *sub.Link)
}

func TestSubmissionServiceSubmitAssignmentRequiresPayload(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.SubmitAssignment(context.Background(), "student", "w1", SubmitAssignmentRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceSubmitAssignmentLockedWeek(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	ledger.locked["w1"] = true
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	link := "https://example.com"
	_, err := svc.SubmitAssignment(context.Background(), "student", "w1", SubmitAssignmentRequest{Link: &link})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrWeekLocked.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceSubmitAssignmentDuplicate(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["existing"] = &models.Submission{ID: "existing", UserID: "student", WeekID: "w1", Kind: models.KindAssignment}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	link := "https://example.com"
	_, err := svc.SubmitAssignment(context.Background(), "student", "w1", SubmitAssignmentRequest{Link: &link})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceSubmitAssignmentLateFlag(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	deadline := time.Now().Add(-time.Hour)
	curriculum.contents["w1"] = &models.Content{WeekID: "w1", AssignmentDeadline: &deadline}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	link := "https://example.com"
	sub, err := svc.SubmitAssignment(context.Background(), "student", "w1", SubmitAssignmentRequest{Link: &link})
	require.NoError(t, err)
	assert.False(t, sub.OnTime)
}

func TestSubmissionServiceSubmitQuizAutoGrades(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	curriculum.contents["w1"] = &models.Content{
		WeekID: "w1",
		MultipleChoiceQuestions: models.QuestionList{
			{CorrectAnswer: 0}, {CorrectAnswer: 1}, {CorrectAnswer: 2}, {CorrectAnswer: 3}, {CorrectAnswer: 0},
		},
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	result, err := svc.SubmitQuiz(context.Background(), "student", "w1", SubmitQuizRequest{Answers: []int{0, 1, 2, 0, 1}})
	require.NoError(t, err)
	assert.Equal(t, 3, result.Score)
	assert.Equal(t, 5, result.TotalQuestions)
	// 3/5 of the 60 point budget.
	assert.Equal(t, 36, result.AwardedPoints)
	assert.Equal(t, models.StatusSubmitted, result.Submission.Status)

	call := ledger.lastCall()
	assert.Equal(t, "SetQuizScore", call.Method)
	assert.Equal(t, 36, call.Points)
}

func TestSubmissionServiceSubmitQuizNoContent(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.SubmitQuiz(context.Background(), "student", "w1", SubmitQuizRequest{Answers: []int{0}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceSubmitQuizSecondAttempt(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	curriculum.contents["w1"] = &models.Content{
		WeekID:                  "w1",
		MultipleChoiceQuestions: models.QuestionList{{CorrectAnswer: 0}},
	}
	store.subs["first"] = &models.Submission{ID: "first", UserID: "student", WeekID: "w1", Kind: models.KindQuiz}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.SubmitQuiz(context.Background(), "student", "w1", SubmitQuizRequest{Answers: []int{0}})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceReviewAssignmentOnTime(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["sub1"] = &models.Submission{
		ID: "sub1", UserID: "student", WeekID: "w1", Kind: models.KindAssignment,
		OnTime: true, Status: models.StatusSubmitted,
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	reviewed, err := svc.Review(context.Background(), "admin", "sub1", ReviewSubmissionRequest{
		Score:  85,
		Status: models.StatusApproved,
	})
	require.NoError(t, err)
	assert.Equal(t, models.StatusApproved, reviewed.Status)
	require.NotNil(t, reviewed.ReviewerID)
	assert.Equal(t, "admin", *reviewed.ReviewerID)

	call := ledger.lastCall()
	assert.Equal(t, "SetAssignmentScore", call.Method)
	// 85% of 60 = 51, plus the 10% on-time bonus.
	assert.Equal(t, 51, call.Points)
	assert.Equal(t, 5, call.Bonus)

	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionReview, auditor.logs[0].Action)
	require.Len(t, notifier.userEvents, 1)
	assert.Equal(t, models.NotifySubmissionReviewed, notifier.userEvents[0].Type)
}

func TestSubmissionServiceReviewAssignmentLateNoBonus(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["sub1"] = &models.Submission{
		ID: "sub1", UserID: "student", WeekID: "w1", Kind: models.KindAssignment,
		OnTime: false, Status: models.StatusSubmitted,
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.Review(context.Background(), "admin", "sub1", ReviewSubmissionRequest{
		Score:  85,
		Status: models.StatusApproved,
	})
	require.NoError(t, err)

	call := ledger.lastCall()
	assert.Equal(t, 51, call.Points)
	assert.Equal(t, 0, call.Bonus)
}

func TestSubmissionServiceReviewQuizRescales(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["quiz1"] = &models.Submission{
		ID: "quiz1", UserID: "student", WeekID: "w1", Kind: models.KindQuiz,
		TotalQuestions: 10, Status: models.StatusSubmitted,
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.Review(context.Background(), "admin", "quiz1", ReviewSubmissionRequest{
		Score:  7,
		Status: models.StatusReviewed,
	})
	require.NoError(t, err)

	call := ledger.lastCall()
	assert.Equal(t, "SetQuizScore", call.Method)
	assert.Equal(t, 42, call.Points)
	assert.Equal(t, 0, call.Bonus)
}

func TestSubmissionServiceReviewQuizRejectsApproval(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["quiz1"] = &models.Submission{
		ID: "quiz1", UserID: "student", WeekID: "w1", Kind: models.KindQuiz,
		TotalQuestions: 10, Status: models.StatusSubmitted,
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.Review(context.Background(), "admin", "quiz1", ReviewSubmissionRequest{
		Score:  7,
		Status: models.StatusApproved,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestSubmissionServiceReviewScoreBounds(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["sub1"] = &models.Submission{
		ID: "sub1", UserID: "student", WeekID: "w1", Kind: models.KindAssignment, Status: models.StatusSubmitted,
	}
	store.subs["quiz1"] = &models.Submission{
		ID: "quiz1", UserID: "student", WeekID: "w1", Kind: models.KindQuiz,
		TotalQuestions: 5, Status: models.StatusSubmitted,
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	_, err := svc.Review(context.Background(), "admin", "sub1", ReviewSubmissionRequest{Score: 101, Status: models.StatusApproved})
	require.Error(t, err)

	_, err = svc.Review(context.Background(), "admin", "quiz1", ReviewSubmissionRequest{Score: 6, Status: models.StatusReviewed})
	require.Error(t, err)
}

func TestSubmissionServiceDelete(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	path := "assignments/student/file.zip"
	files.saved = map[string][]byte{path: []byte("data")}
	store.subs["sub1"] = &models.Submission{
		ID: "sub1", UserID: "student", WeekID: "w1", Kind: models.KindAssignment, FilePath: &path,
	}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	require.NoError(t, svc.Delete(context.Background(), "admin", "sub1"))
	assert.Contains(t, store.deleted, "sub1")
	assert.Contains(t, files.deleted, path)

	call := ledger.lastCall()
	assert.Equal(t, "ClearSubmission", call.Method)
	assert.Equal(t, models.KindAssignment, call.Kind)
	require.Len(t, auditor.logs, 1)
	assert.Equal(t, models.AuditActionDelete, auditor.logs[0].Action)
}

func TestSubmissionServiceGetOwnership(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	store.subs["sub1"] = &models.Submission{ID: "sub1", UserID: "student", WeekID: "w1", Kind: models.KindAssignment}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	owner := &models.JWTClaims{UserID: "student", Role: models.RoleStudent}
	_, err := svc.Get(context.Background(), owner, "sub1")
	require.NoError(t, err)

	stranger := &models.JWTClaims{UserID: "other", Role: models.RoleStudent}
	_, err = svc.Get(context.Background(), stranger, "sub1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)

	admin := &models.JWTClaims{UserID: "boss", Role: models.RoleAdmin}
	_, err = svc.Get(context.Background(), admin, "sub1")
	require.NoError(t, err)
}

func TestSubmissionServiceDownloadToken(t *testing.T) {
	store, curriculum, ledger, files, auditor, notifier := submissionFixture()
	path := "assignments/student/file.zip"
	store.subs["sub1"] = &models.Submission{ID: "sub1", UserID: "student", WeekID: "w1", Kind: models.KindAssignment, FilePath: &path}
	store.subs["sub2"] = &models.Submission{ID: "sub2", UserID: "student", WeekID: "w1", Kind: models.KindQuiz}
	svc := newSubmissionService(store, curriculum, ledger, files, auditor, notifier)

	owner := &models.JWTClaims{UserID: "student", Role: models.RoleStudent}
	download, err := svc.DownloadToken(context.Background(), owner, "sub1")
	require.NoError(t, err)
	assert.NotEmpty(t, download.Token)

	resolved, err := svc.ResolveDownload(download.Token)
	require.NoError(t, err)
	assert.Equal(t, "/uploads/"+path, resolved)

	_, err = svc.DownloadToken(context.Background(), owner, "sub2")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
