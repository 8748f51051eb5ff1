package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type announcementRepository interface {
	List(ctx context.Context, activeOnly bool) ([]models.Announcement, error)
	FindByID(ctx context.Context, id string) (*models.Announcement, error)
	Create(ctx context.Context, item *models.Announcement) error
	Update(ctx context.Context, item *models.Announcement) error
	Delete(ctx context.Context, id string) error
}

// AnnouncementService handles announcement workflows.
type AnnouncementService struct {
	repo      announcementRepository
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAnnouncementService constructs the service.
func NewAnnouncementService(repo announcementRepository, publisher realtime.Publisher, validate *validator.Validate, logger *zap.Logger) *AnnouncementService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AnnouncementService{repo: repo, publisher: publisher, validator: validate, logger: logger}
}

// List returns announcements, newest first.
func (s *AnnouncementService) List(ctx context.Context, activeOnly bool) ([]models.Announcement, error) {
	items, err := s.repo.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list announcements")
	}
	if items == nil {
		items = []models.Announcement{}
	}
	return items, nil
}

// Create publishes a new announcement. It is active unless stated otherwise.
func (s *AnnouncementService) Create(ctx context.Context, actor Actor, req models.AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	item := &models.Announcement{
		Title:     req.Title,
		Content:   req.Content,
		IsActive:  req.IsActive == nil || *req.IsActive,
		CreatedBy: actor.Email,
	}
	if err := s.repo.Create(ctx, item); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create announcement")
	}
	publish(ctx, s.publisher, s.logger, announcementEvent(item.ID, realtime.EventCreated))
	return item, nil
}

// Update replaces an announcement.
func (s *AnnouncementService) Update(ctx context.Context, id string, req models.AnnouncementRequest) (*models.Announcement, error) {
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	item, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load announcement")
	}
	item.Title = req.Title
	item.Content = req.Content
	if req.IsActive != nil {
		item.IsActive = *req.IsActive
	}
	if err := s.repo.Update(ctx, item); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update announcement")
	}
	publish(ctx, s.publisher, s.logger, announcementEvent(id, realtime.EventUpdated))
	return item, nil
}

// Delete removes an announcement.
func (s *AnnouncementService) Delete(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "announcement not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete announcement")
	}
	publish(ctx, s.publisher, s.logger, announcementEvent(id, realtime.EventDeleted))
	return nil
}

func (s *AnnouncementService) validate(req *models.AnnouncementRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Content = strings.TrimSpace(req.Content)
	if err := s.validator.Struct(req); err != nil {
		return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid announcement payload")
	}
	return nil
}
