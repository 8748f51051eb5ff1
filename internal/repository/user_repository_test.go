package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

func newMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	sqlxdb := sqlx.NewDb(db, "sqlmock")
	return sqlxdb, mock, func() {
		db.Close()
	}
}

func TestFindByEmail(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "email", "name", "role", "verification_status", "is_active", "created_at", "updated_at"}).
		AddRow("1", "member@upi.edu", "Member", string(models.RoleUser), "pending", true, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE LOWER(email) = LOWER($1) LIMIT 1")).
		WithArgs("Member@UPI.edu").
		WillReturnRows(rows)

	user, err := repo.FindByEmail(context.Background(), "Member@UPI.edu")
	require.NoError(t, err)
	assert.Equal(t, "member@upi.edu", user.Email)
	assert.Equal(t, models.VerificationPending, user.VerificationStatus)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFindByIDNotFound(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE id = $1 LIMIT 1")).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.FindByID(context.Background(), "missing")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateRefreshToken(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec("INSERT INTO refresh_tokens").WillReturnResult(sqlmock.NewResult(1, 1))

	err := repo.CreateRefreshToken(context.Background(), &models.RefreshToken{ID: "1", UserID: "u1", Token: "token", ExpiresAt: time.Now(), CreatedAt: time.Now()})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListUsersNotSubmittedTab(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	now := time.Now()
	listRows := sqlmock.NewRows([]string{"id", "email", "verification_status", "created_at", "updated_at"}).
		AddRow("1", "a@upi.edu", "", now, now).
		AddRow("2", "b@upi.edu", "not_submitted", now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM users WHERE 1=1 AND verification_status IN ('not_submitted', '') AND (LOWER(email) LIKE $1") + ".*" + regexp.QuoteMeta("ORDER BY created_at DESC LIMIT 20 OFFSET 0")).
		WithArgs("%upi%").
		WillReturnRows(listRows)

	countRows := sqlmock.NewRows([]string{"count"}).AddRow(2)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT COUNT(*) FROM users WHERE 1=1 AND verification_status IN ('not_submitted', '')")).
		WithArgs("%upi%").
		WillReturnRows(countRows)

	users, total, err := repo.List(context.Background(), models.UserFilter{Tab: models.UserTabNotSubmitted, Search: "UPI"})
	require.NoError(t, err)
	assert.Len(t, users, 2)
	assert.Equal(t, 2, total)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveLifecycleMissingRow(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("UPDATE users SET")).WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SaveLifecycle(context.Background(), &models.User{ID: "gone"})
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadeCommits(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM workout_logs WHERE user_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 4))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM user_messages WHERE user_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM admin_messages WHERE user_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM refresh_tokens WHERE user_id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	result, err := repo.DeleteCascade(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, CascadeResult{WorkoutLogs: 4, UserMessages: 2, AdminMessages: 1}, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDeleteCascadeRollsBackWhenUserMissing(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectBegin()
	for _, table := range []string{"workout_logs", "user_messages", "admin_messages", "refresh_tokens"} {
		mock.ExpectExec(regexp.QuoteMeta("DELETE FROM " + table)).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	}
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM users WHERE id = $1")).WithArgs("u1").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.DeleteCascade(context.Background(), "u1")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestExistingIDs(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewUserRepository(db)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id FROM users WHERE id = ANY($1)")).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("a"))

	found, err := repo.ExistingIDs(context.Background(), []string{"a", "b"})
	require.NoError(t, err)
	assert.True(t, found["a"])
	assert.False(t, found["b"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
