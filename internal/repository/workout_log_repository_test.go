package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

func TestWorkoutLogListWithFilter(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkoutLogRepository(db)

	now := time.Now()
	rows := sqlmock.NewRows([]string{"id", "user_id", "week", "day", "day_name", "workout_date", "exercises", "total_volume", "created_at", "updated_at"}).
		AddRow("w1", "u1", 2, 1, "Senin", "2024-03-04", []byte(`[{"name":"Squat","sets":[{"weight":50,"reps":10}]}]`), 500.0, now, now)
	mock.ExpectQuery(regexp.QuoteMeta("FROM workout_logs WHERE user_id = $1 AND week = $2 ORDER BY week ASC, day ASC, created_at ASC")).
		WithArgs("u1", 2).
		WillReturnRows(rows)

	week := 2
	logs, err := repo.List(context.Background(), models.WorkoutLogFilter{UserID: "u1", Week: &week})
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, "Squat", logs[0].Exercises[0].Name)
	assert.Equal(t, 500.0, logs[0].Exercises.Volume())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkoutLogCreateAssignsID(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkoutLogRepository(db)

	mock.ExpectExec("INSERT INTO workout_logs").WillReturnResult(sqlmock.NewResult(1, 1))

	log := &models.WorkoutLog{UserID: "u1", Week: 0, Day: 1, DayName: "Senin", WorkoutDate: "2024-03-04"}
	require.NoError(t, repo.Create(context.Background(), log))
	assert.NotEmpty(t, log.ID)
	assert.False(t, log.CreatedAt.IsZero())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWorkoutLogDeleteScopedToOwner(t *testing.T) {
	db, mock, cleanup := newMock(t)
	defer cleanup()
	repo := NewWorkoutLogRepository(db)

	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM workout_logs WHERE id = $1 AND user_id = $2")).
		WithArgs("w1", "intruder").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Delete(context.Background(), "w1", "intruder")
	assert.ErrorIs(t, err, sql.ErrNoRows)
	assert.NoError(t, mock.ExpectationsWereMet())
}
