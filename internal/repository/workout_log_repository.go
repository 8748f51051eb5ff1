package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

const workoutLogColumns = `id, user_id, user_email, week, day, day_name, workout_date, exercises, total_volume, created_at, updated_at`

// WorkoutLogRepository persists member workout logs.
type WorkoutLogRepository struct {
	db *sqlx.DB
}

// NewWorkoutLogRepository constructs the repository.
func NewWorkoutLogRepository(db *sqlx.DB) *WorkoutLogRepository {
	return &WorkoutLogRepository{db: db}
}

// List returns logs for a user ordered by week then day.
func (r *WorkoutLogRepository) List(ctx context.Context, filter models.WorkoutLogFilter) ([]models.WorkoutLog, error) {
	conditions := []string{"user_id = $1"}
	args := []interface{}{filter.UserID}
	if filter.Week != nil {
		args = append(args, *filter.Week)
		conditions = append(conditions, fmt.Sprintf("week = $%d", len(args)))
	}
	if filter.Day != nil {
		args = append(args, *filter.Day)
		conditions = append(conditions, fmt.Sprintf("day = $%d", len(args)))
	}
	query := fmt.Sprintf("SELECT %s FROM workout_logs WHERE %s ORDER BY week ASC, day ASC, created_at ASC", workoutLogColumns, strings.Join(conditions, " AND "))

	var logs []models.WorkoutLog
	if err := r.db.SelectContext(ctx, &logs, query, args...); err != nil {
		return nil, fmt.Errorf("list workout logs: %w", err)
	}
	return logs, nil
}

// FindByID returns a single log.
func (r *WorkoutLogRepository) FindByID(ctx context.Context, id string) (*models.WorkoutLog, error) {
	query := `SELECT ` + workoutLogColumns + ` FROM workout_logs WHERE id = $1`
	var log models.WorkoutLog
	if err := r.db.GetContext(ctx, &log, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find workout log: %w", err)
	}
	return &log, nil
}

// Create inserts a log.
func (r *WorkoutLogRepository) Create(ctx context.Context, log *models.WorkoutLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	log.CreatedAt = now
	log.UpdatedAt = now
	const query = `INSERT INTO workout_logs (id, user_id, user_email, week, day, day_name, workout_date, exercises, total_volume, created_at, updated_at)
		VALUES (:id, :user_id, :user_email, :week, :day, :day_name, :workout_date, :exercises, :total_volume, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create workout log: %w", err)
	}
	return nil
}

// Update replaces the mutable fields of a log owned by log.UserID.
func (r *WorkoutLogRepository) Update(ctx context.Context, log *models.WorkoutLog) error {
	log.UpdatedAt = time.Now().UTC()
	const query = `UPDATE workout_logs SET week = :week, day = :day, day_name = :day_name, workout_date = :workout_date,
		exercises = :exercises, total_volume = :total_volume, updated_at = :updated_at
		WHERE id = :id AND user_id = :user_id`
	res, err := r.db.NamedExecContext(ctx, query, log)
	if err != nil {
		return fmt.Errorf("update workout log: %w", err)
	}
	return expectAffected(res, "update workout log")
}

// Delete removes a log owned by userID.
func (r *WorkoutLogRepository) Delete(ctx context.Context, id, userID string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM workout_logs WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("delete workout log: %w", err)
	}
	return expectAffected(res, "delete workout log")
}
