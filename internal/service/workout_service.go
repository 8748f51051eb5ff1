package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type workoutLogRepository interface {
	List(ctx context.Context, filter models.WorkoutLogFilter) ([]models.WorkoutLog, error)
	FindByID(ctx context.Context, id string) (*models.WorkoutLog, error)
	Create(ctx context.Context, log *models.WorkoutLog) error
	Update(ctx context.Context, log *models.WorkoutLog) error
	Delete(ctx context.Context, id, userID string) error
}

// WorkoutService manages member workout logs.
type WorkoutService struct {
	repo      workoutLogRepository
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewWorkoutService constructs a WorkoutService.
func NewWorkoutService(repo workoutLogRepository, publisher realtime.Publisher, validate *validator.Validate, logger *zap.Logger) *WorkoutService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &WorkoutService{repo: repo, publisher: publisher, validator: validate, logger: logger}
}

// List returns logs sorted by week and day.
func (s *WorkoutService) List(ctx context.Context, filter models.WorkoutLogFilter) ([]models.WorkoutLog, error) {
	if filter.UserID == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "user id is required")
	}
	logs, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list workout logs")
	}
	if logs == nil {
		logs = []models.WorkoutLog{}
	}
	SortLogs(logs)
	return logs, nil
}

// Summary returns the weekly statistics of a member.
func (s *WorkoutService) Summary(ctx context.Context, userID string) (*models.WorkoutSummary, error) {
	logs, err := s.List(ctx, models.WorkoutLogFilter{UserID: userID})
	if err != nil {
		return nil, err
	}
	summary := Summarize(logs)
	return &summary, nil
}

// Create stores a new log. The total volume is always recomputed.
func (s *WorkoutService) Create(ctx context.Context, user *models.User, req models.WorkoutLogRequest) (*models.WorkoutLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workout log payload")
	}
	exercises, err := validExercises(req.Exercises)
	if err != nil {
		return nil, err
	}

	log := &models.WorkoutLog{
		UserID:      user.ID,
		UserEmail:   user.Email,
		Week:        *req.Week,
		Day:         req.Day,
		DayName:     models.DayName(req.Day),
		WorkoutDate: req.WorkoutDate,
		Exercises:   exercises,
		TotalVolume: exercises.Volume(),
	}
	if err := s.repo.Create(ctx, log); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save workout log")
	}

	publish(ctx, s.publisher, s.logger, workoutEvent(user.ID, log.ID, realtime.EventCreated))
	return log, nil
}

// Update replaces the date and exercises of a log owned by userID.
func (s *WorkoutService) Update(ctx context.Context, userID, id string, req models.WorkoutLogUpdateRequest) (*models.WorkoutLog, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid workout log payload")
	}
	exercises, err := validExercises(req.Exercises)
	if err != nil {
		return nil, err
	}

	log, err := s.owned(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	log.WorkoutDate = req.WorkoutDate
	log.Exercises = exercises
	log.TotalVolume = exercises.Volume()

	if err := s.repo.Update(ctx, log); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workout log not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update workout log")
	}

	publish(ctx, s.publisher, s.logger, workoutEvent(userID, id, realtime.EventUpdated))
	return log, nil
}

// Delete removes a log owned by userID.
func (s *WorkoutService) Delete(ctx context.Context, userID, id string) error {
	if err := s.repo.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "workout log not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete workout log")
	}
	publish(ctx, s.publisher, s.logger, workoutEvent(userID, id, realtime.EventDeleted))
	return nil
}

func (s *WorkoutService) owned(ctx context.Context, userID, id string) (*models.WorkoutLog, error) {
	log, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "workout log not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load workout log")
	}
	if log.UserID != userID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "workout log not found")
	}
	return log, nil
}

func validExercises(in []models.Exercise) (models.Exercises, error) {
	if len(in) > models.MaxExercisesPerLog {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("at most %d exercises per log", models.MaxExercisesPerLog))
	}
	exercises := sanitizeExercises(in)
	if len(exercises) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "at least one named exercise is required")
	}
	for _, ex := range exercises {
		for _, set := range ex.Sets {
			if !set.Valid() {
				return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("weight must be a finite non-negative number and reps a whole number from 0 to %d", models.MaxRepsPerSet))
			}
		}
	}
	return exercises, nil
}
