package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arkan-dev/bootcamp-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func progressRows(now time.Time) *sqlmock.Rows {
	return sqlmock.NewRows([]string{
		"id", "user_id", "week_id", "video_watched", "video_progress",
		"assignment_submitted", "quiz_submitted", "video_points", "assignment_points",
		"quiz_points", "bonus_points", "points", "completed", "is_locked",
		"unlocked_at", "created_at", "updated_at",
	}).AddRow("pr1", "u1", "w1", true, 95, true, false, 40, 48, 0, 5, 93, false, false, now, now, now)
}

func TestProgressFindByUserAndWeek(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM progress WHERE user_id = \\$1 AND week_id = \\$2 LIMIT 1").
		WithArgs("u1", "w1").
		WillReturnRows(progressRows(now))

	progress, err := repo.FindByUserAndWeek(context.Background(), "u1", "w1")
	require.NoError(t, err)
	assert.Equal(t, "w1", progress.WeekID)
	assert.Equal(t, 93, progress.Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressFindMissingPassesThroughNoRows(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery("SELECT (.+) FROM progress WHERE user_id = \\$1 AND week_id = \\$2 LIMIT 1").
		WithArgs("u1", "ghost").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByUserAndWeek(context.Background(), "u1", "ghost")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressCreate(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec("INSERT INTO progress").WillReturnResult(sqlmock.NewResult(1, 1))

	progress := &models.Progress{UserID: "u1", WeekID: "w1", IsLocked: true}
	err := repo.Create(context.Background(), progress)
	require.NoError(t, err)
	assert.NotEmpty(t, progress.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressApplyUpdateRecomputesPoints(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM progress WHERE user_id = \\$1 AND week_id = \\$2 FOR UPDATE").
		WithArgs("u1", "w1").
		WillReturnRows(progressRows(now))
	mock.ExpectExec("UPDATE progress SET").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	progress, err := repo.ApplyUpdate(context.Background(), "u1", "w1", func(p *models.Progress) error {
		p.AssignmentPoints = 30
		p.BonusPoints = 3
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 40+30+0+3, progress.Points)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressApplyUpdateRollsBackOnMutateError(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	now := time.Now()
	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM progress WHERE user_id = \\$1 AND week_id = \\$2 FOR UPDATE").
		WithArgs("u1", "w1").
		WillReturnRows(progressRows(now))
	mock.ExpectRollback()

	boom := errors.New("rejected")
	_, err := repo.ApplyUpdate(context.Background(), "u1", "w1", func(p *models.Progress) error {
		return boom
	})
	assert.ErrorIs(t, err, boom)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressApplyUpdateMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT (.+) FROM progress WHERE user_id = \\$1 AND week_id = \\$2 FOR UPDATE").
		WithArgs("u1", "ghost").
		WillReturnError(sql.ErrNoRows)
	mock.ExpectRollback()

	_, err := repo.ApplyUpdate(context.Background(), "u1", "ghost", func(p *models.Progress) error { return nil })
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressUnlock(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE progress SET is_locked = FALSE, unlocked_at = $3, updated_at = $3 WHERE user_id = $1 AND week_id = $2 AND is_locked = TRUE")).
		WithArgs("u1", "w2", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := repo.Unlock(context.Background(), "u1", "w2")
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressSumPoints(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT COALESCE(SUM(points), 0) FROM progress WHERE user_id = $1")).
		WithArgs("u1").
		WillReturnRows(sqlmock.NewRows([]string{"coalesce"}).AddRow(212))

	total, err := repo.SumPoints(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, 212, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestProgressCountAwaitingApproval(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewProgressRepository(db)

	mock.ExpectQuery("SELECT COUNT\\(\\*\\) FROM users u").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

	total, err := repo.CountAwaitingApproval(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 3, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}
