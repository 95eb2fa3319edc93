package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/arkan-dev/bootcamp-api/internal/dto"
	"github.com/arkan-dev/bootcamp-api/internal/models"
	"github.com/arkan-dev/bootcamp-api/pkg/config"
	appErrors "github.com/arkan-dev/bootcamp-api/pkg/errors"
)

const (
	studentDashboardKey = "dashboard:student:%s"
	leaderboardKey      = "dashboard:leaderboard:%d"
	adminOverviewKey    = "dashboard:admin"

	defaultLeaderboardLimit = 10
	maxLeaderboardLimit     = 100
)

type dashboardCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	DeleteByPattern(ctx context.Context, pattern string) error
}

type dashboardUsers interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error)
}

type dashboardLedger interface {
	CountCompletedByUser(ctx context.Context, userID string) (int, error)
	CountAwaitingApproval(ctx context.Context) (int, error)
}

type dashboardStanding interface {
	PhaseStanding(ctx context.Context, userID string) ([]models.PhaseProgress, error)
}

type dashboardCurriculum interface {
	CountWeeks(ctx context.Context) (int, error)
}

type dashboardSubmissions interface {
	CountPending(ctx context.Context) (int, error)
}

type dashboardCertificates interface {
	FindByUser(ctx context.Context, userID string) (*models.Certificate, error)
	Count(ctx context.Context) (int, error)
}

type cacheMetrics interface {
	RecordCacheOperation(hit bool, duration time.Duration)
	ObserveCacheWrite(duration time.Duration)
}

// DashboardService aggregates read models for students and admins. Responses
// are cached in Redis and invalidated whenever a point mutation touches the
// underlying ledger.
type DashboardService struct {
	cache        dashboardCache
	users        dashboardUsers
	ledger       dashboardLedger
	standing     dashboardStanding
	curriculum   dashboardCurriculum
	submissions  dashboardSubmissions
	certificates dashboardCertificates
	metrics      cacheMetrics
	cfg          config.DashboardConfig
	logger       *zap.Logger
}

// NewDashboardService constructs a DashboardService.
func NewDashboardService(
	cache dashboardCache,
	users dashboardUsers,
	ledger dashboardLedger,
	standing dashboardStanding,
	curriculum dashboardCurriculum,
	submissions dashboardSubmissions,
	certificates dashboardCertificates,
	metrics cacheMetrics,
	cfg config.DashboardConfig,
	logger *zap.Logger,
) *DashboardService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Minute
	}
	return &DashboardService{
		cache:        cache,
		users:        users,
		ledger:       ledger,
		standing:     standing,
		curriculum:   curriculum,
		submissions:  submissions,
		certificates: certificates,
		metrics:      metrics,
		cfg:          cfg,
		logger:       logger,
	}
}

// SetStanding attaches the standing evaluator. The dashboard and the progress
// service reference each other, so one of the two links is attached after
// construction.
func (s *DashboardService) SetStanding(standing dashboardStanding) {
	s.standing = standing
}

// StudentDashboard returns the student's aggregate standing.
func (s *DashboardService) StudentDashboard(ctx context.Context, userID string) (*dto.StudentDashboardResponse, error) {
	key := fmt.Sprintf(studentDashboardKey, userID)
	var cached dto.StudentDashboardResponse
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	standings, err := s.standing.PhaseStanding(ctx, userID)
	if err != nil {
		return nil, err
	}
	totalWeeks, err := s.curriculum.CountWeeks(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count weeks")
	}
	completedWeeks, err := s.ledger.CountCompletedByUser(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count completed weeks")
	}

	certificateReady := totalWeeks > 0 && completedWeeks == totalWeeks
	if !certificateReady {
		if _, err := s.certificates.FindByUser(ctx, userID); err == nil {
			certificateReady = true
		}
	}

	resp := &dto.StudentDashboardResponse{
		UserID:           user.ID,
		FullName:         user.FullName,
		CurrentPhase:     user.CurrentPhase,
		CurrentWeek:      user.CurrentWeek,
		TotalPoints:      user.TotalPoints,
		CompletedWeeks:   completedWeeks,
		TotalWeeks:       totalWeeks,
		CompletionRate:   PointsPercentage(completedWeeks, totalWeeks),
		Phases:           standings,
		CertificateReady: certificateReady,
	}
	s.put(ctx, key, resp)
	return resp, nil
}

// Leaderboard ranks students by total points.
func (s *DashboardService) Leaderboard(ctx context.Context, limit int) (*dto.LeaderboardResponse, error) {
	if limit <= 0 {
		limit = defaultLeaderboardLimit
	}
	if limit > maxLeaderboardLimit {
		limit = maxLeaderboardLimit
	}

	key := fmt.Sprintf(leaderboardKey, limit)
	var cached dto.LeaderboardResponse
	if s.lookup(ctx, key, &cached) {
		return &cached, nil
	}

	entries, err := s.users.Leaderboard(ctx, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load leaderboard")
	}
	resp := &dto.LeaderboardResponse{Entries: entries}
	s.put(ctx, key, resp)
	return resp, nil
}

// AdminOverview summarises the work waiting on admins.
func (s *DashboardService) AdminOverview(ctx context.Context) (*dto.AdminOverviewResponse, error) {
	var cached dto.AdminOverviewResponse
	if s.lookup(ctx, adminOverviewKey, &cached) {
		return &cached, nil
	}

	role := models.RoleStudent
	active := true
	_, activeStudents, err := s.users.List(ctx, models.UserFilter{Role: &role, Active: &active, Page: 1, PageSize: 1})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students")
	}
	pending, err := s.submissions.CountPending(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count pending submissions")
	}
	awaiting, err := s.ledger.CountAwaitingApproval(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count students awaiting approval")
	}
	issued, err := s.certificates.Count(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count certificates")
	}

	resp := &dto.AdminOverviewResponse{
		ActiveStudents:        activeStudents,
		PendingSubmissions:    pending,
		AwaitingPhaseApproval: awaiting,
		CertificatesIssued:    issued,
	}
	s.put(ctx, adminOverviewKey, resp)
	return resp, nil
}

// InvalidateUser drops every cached view the user's points can influence.
func (s *DashboardService) InvalidateUser(ctx context.Context, userID string) {
	if !s.cfg.Enabled || s.cache == nil {
		return
	}
	patterns := []string{
		fmt.Sprintf(studentDashboardKey, userID),
		"dashboard:leaderboard:*",
		adminOverviewKey,
	}
	for _, pattern := range patterns {
		if err := s.cache.DeleteByPattern(ctx, pattern); err != nil {
			s.logger.Warn("failed to invalidate dashboard cache", zap.String("pattern", pattern), zap.Error(err))
		}
	}
}

func (s *DashboardService) lookup(ctx context.Context, key string, dest interface{}) bool {
	if !s.cfg.Enabled || s.cache == nil {
		return false
	}
	start := time.Now()
	err := s.cache.Get(ctx, key, dest)
	hit := err == nil
	if s.metrics != nil {
		s.metrics.RecordCacheOperation(hit, time.Since(start))
	}
	if err != nil && !errors.Is(err, appErrors.ErrCacheMiss) {
		s.logger.Warn("dashboard cache lookup failed", zap.String("key", key), zap.Error(err))
	}
	return hit
}

func (s *DashboardService) put(ctx context.Context, key string, value interface{}) {
	if !s.cfg.Enabled || s.cache == nil {
		return
	}
	start := time.Now()
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("dashboard cache write failed", zap.String("key", key), zap.Error(err))
		return
	}
	if s.metrics != nil {
		s.metrics.ObserveCacheWrite(time.Since(start))
	}
}
