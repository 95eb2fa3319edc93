package service

import (
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/pkg/config"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

type mockCache struct {
	data    map[string][]byte
	gets    int
	sets    int
	deletes []string
}

func (m *mockCache) Get(ctx context.Context, key string, dest interface{}) error {
	m.gets++
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mockCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.data == nil {
		m.data = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	m.sets++
	return nil
}

func (m *mockCache) DeleteByPattern(ctx context.Context, pattern string) error {
	m.deletes = append(m.deletes, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range m.data {
		if strings.HasPrefix(key, prefix) {
			delete(m.data, key)
		}
	}
	return nil
}

// Dashboard-only methods layered onto the shared mocks.

func (m *mockUserStore) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := []models.User{}
	for _, u := range m.users {
		if filter.Role != nil && u.Role != *filter.Role {
			continue
		}
		if filter.Active != nil && u.Active != *filter.Active {
			continue
		}
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (m *mockUserStore) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	entries := []models.LeaderboardEntry{}
	for _, u := range m.users {
		if u.Role != models.RoleStudent {
			continue
		}
		entries = append(entries, models.LeaderboardEntry{UserID: u.ID, FullName: u.FullName, TotalPoints: u.TotalPoints})
	}
	if len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

func (m *mockLedgerStore) CountAwaitingApproval(ctx context.Context) (int, error) {
	return m.awaitingApproval, nil
}

func (m *mockSubmissionStore) CountPending(ctx context.Context) (int, error) {
	count := 0
	for _, sub := range m.subs {
		if sub.Kind == models.KindAssignment && sub.Status == models.StatusSubmitted {
			count++
		}
	}
	return count, nil
}

func (m *mockCertStore) Count(ctx context.Context) (int, error) {
	return len(m.certs), nil
}

type mockStanding struct {
	standings []models.PhaseProgress
	calls     int
}

func (m *mockStanding) PhaseStanding(ctx context.Context, userID string) ([]models.PhaseProgress, error) {
	m.calls++
	return m.standings, nil
}

type dashboardFixture struct {
	cache    *mockCache
	users    *mockUserStore
	ledger   *mockLedgerStore
	standing *mockStanding
	subs     *mockSubmissionStore
	certs    *mockCertStore
	svc      *DashboardService
}

func newDashboardFixture(t *testing.T) *dashboardFixture {
	t.Helper()
	f := &dashboardFixture{
		cache: &mockCache{data: map[string][]byte{}},
		users: &mockUserStore{users: map[string]*models.User{
			"student": {
				ID: "student", FullName: "Ada Lovelace", Role: models.RoleStudent,
				Active: true, CurrentPhase: 1, CurrentWeek: 2, TotalPoints: 146,
			},
		}},
		ledger: &mockLedgerStore{rows: map[string]*models.Progress{
			"student|w1": {UserID: "student", WeekID: "w1", Completed: true, Points: 106},
			"student|w2": {UserID: "student", WeekID: "w2", Points: 40},
		}},
		standing: &mockStanding{standings: []models.PhaseProgress{{PhaseNumber: 1, CompletedWeeks: 1}}},
		subs:     &mockSubmissionStore{subs: map[string]*models.Submission{}},
		certs:    &mockCertStore{certs: map[string]*models.Certificate{}},
	}
	curriculum := &mockCurriculumStore{weeks: map[string][]models.Week{
		"p1": {{ID: "w1", WeekNumber: 1}, {ID: "w2", WeekNumber: 2}},
	}}
	f.svc = NewDashboardService(
		f.cache, f.users, f.ledger, f.standing, curriculum, f.subs, f.certs,
		NewMetricsService(), config.DashboardConfig{Enabled: true, CacheTTL: time.Minute}, zap.NewNop(),
	)
	return f
}

func TestDashboardServiceStudentDashboard(t *testing.T) {
	f := newDashboardFixture(t)

	resp, err := f.svc.StudentDashboard(context.Background(), "student")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", resp.FullName)
	assert.Equal(t, 146, resp.TotalPoints)
	assert.Equal(t, 1, resp.CompletedWeeks)
	assert.Equal(t, 2, resp.TotalWeeks)
	assert.Equal(t, 50.0, resp.CompletionRate)
	assert.False(t, resp.CertificateReady)
	require.Len(t, resp.Phases, 1)
}

func TestDashboardServiceStudentDashboardCached(t *testing.T) {
	f := newDashboardFixture(t)

	_, err := f.svc.StudentDashboard(context.Background(), "student")
	require.NoError(t, err)
	assert.Equal(t, 1, f.standing.calls)
	assert.Equal(t, 1, f.cache.sets)

	// Second read is served from cache without recomputing.
	resp, err := f.svc.StudentDashboard(context.Background(), "student")
	require.NoError(t, err)
	assert.Equal(t, "Ada Lovelace", resp.FullName)
	assert.Equal(t, 1, f.standing.calls)
}

func TestDashboardServiceCertificateReadyByCert(t *testing.T) {
	f := newDashboardFixture(t)
	// Not all weeks complete, but a certificate row exists.
	f.certs.certs["student"] = &models.Certificate{UserID: "student", CertificateID: "CERT-1-student"}

	resp, err := f.svc.StudentDashboard(context.Background(), "student")
	require.NoError(t, err)
	assert.True(t, resp.CertificateReady)
}

func TestDashboardServiceLeaderboardLimitClamped(t *testing.T) {
	f := newDashboardFixture(t)

	resp, err := f.svc.Leaderboard(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, resp.Entries, 1)

	_, err = f.svc.Leaderboard(context.Background(), 5000)
	require.NoError(t, err)
	// The clamp keys the cache at the maximum, not the requested value.
	_, cachedAtMax := f.cache.data["dashboard:leaderboard:100"]
	assert.True(t, cachedAtMax)
}

func TestDashboardServiceAdminOverview(t *testing.T) {
	f := newDashboardFixture(t)
	f.subs.subs["s1"] = &models.Submission{ID: "s1", Kind: models.KindAssignment, Status: models.StatusSubmitted}
	f.subs.subs["s2"] = &models.Submission{ID: "s2", Kind: models.KindAssignment, Status: models.StatusApproved}
	f.ledger.awaitingApproval = 3
	f.certs.certs["grad"] = &models.Certificate{UserID: "grad"}

	resp, err := f.svc.AdminOverview(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, resp.ActiveStudents)
	assert.Equal(t, 1, resp.PendingSubmissions)
	assert.Equal(t, 3, resp.AwaitingPhaseApproval)
	assert.Equal(t, 1, resp.CertificatesIssued)
}

func TestDashboardServiceInvalidateUser(t *testing.T) {
	f := newDashboardFixture(t)

	_, err := f.svc.StudentDashboard(context.Background(), "student")
	require.NoError(t, err)
	_, err = f.svc.Leaderboard(context.Background(), 10)
	require.NoError(t, err)
	_, err = f.svc.AdminOverview(context.Background())
	require.NoError(t, err)
	assert.Len(t, f.cache.data, 3)

	f.svc.InvalidateUser(context.Background(), "student")
	assert.Empty(t, f.cache.data)
}

func TestDashboardServiceDisabledSkipsCache(t *testing.T) {
	f := newDashboardFixture(t)
	f.svc.cfg.Enabled = false

	_, err := f.svc.StudentDashboard(context.Background(), "student")
	require.NoError(t, err)
	assert.Equal(t, 0, f.cache.gets)
	assert.Equal(t, 0, f.cache.sets)
}
