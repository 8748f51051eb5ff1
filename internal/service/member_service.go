package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/lifecycle"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/validation"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type memberRepository interface {
	SaveLifecycle(ctx context.Context, user *models.User) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// ProfileRequest updates the member's display name.
type ProfileRequest struct {
	Name string `json:"name" validate:"required,max=150"`
}

// AccessResult is the caller's document together with its evaluated view.
type AccessResult struct {
	User *models.User `json:"user"`
	View models.View  `json:"view"`
}

// MemberService serves the member's own account operations.
type MemberService struct {
	repo      memberRepository
	cache     *CacheService
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewMemberService constructs a MemberService.
func NewMemberService(repo memberRepository, cache *CacheService, publisher realtime.Publisher, validate *validator.Validate, logger *zap.Logger) *MemberService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validation.New()
	}
	return &MemberService{repo: repo, cache: cache, publisher: publisher, validator: validate, logger: logger, now: time.Now}
}

// Access returns the evaluated view for the session.
func (s *MemberService) Access(session *models.Session) (*AccessResult, error) {
	if session == nil || session.User == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session not loaded")
	}
	return &AccessResult{User: session.User, View: lifecycle.Evaluate(session.User)}, nil
}

// SubmitVerification stores the verification form and moves the member to
// pending review. It also serves resubmission after a rejection.
func (s *MemberService) SubmitVerification(ctx context.Context, session *models.Session, form lifecycle.VerificationForm) (*AccessResult, error) {
	if session == nil || session.User == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session not loaded")
	}
	form.Normalize()
	if err := s.validator.Struct(form); err != nil {
		msg := "invalid verification form"
		if fields := validation.Fields(err); len(fields) > 0 {
			msg += ": " + strings.Join(fields, ", ")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, msg)
	}

	user := *session.User
	if err := lifecycle.Submit(&user, form, s.now()); err != nil {
		return nil, err
	}
	if err := s.save(ctx, &user); err != nil {
		return nil, err
	}

	s.audit(ctx, user.ID, models.AuditActionVerifySubmit)
	s.cache.Forget(ctx, adminStatsCacheKey)
	publish(ctx, s.publisher, s.logger, userEvents(user.ID, realtime.EventUpdated)...)

	return &AccessResult{User: &user, View: lifecycle.Evaluate(&user)}, nil
}

// UpdateProfile changes the display name. The full name follows it so the
// name shown on messages and exports stays consistent.
func (s *MemberService) UpdateProfile(ctx context.Context, session *models.Session, req ProfileRequest) (*models.User, error) {
	if session == nil || session.User == nil {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "session not loaded")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "name is required")
	}

	user := *session.User
	user.Name = req.Name
	user.FullName = req.Name
	user.UpdatedAt = s.now().UTC()
	if err := s.save(ctx, &user); err != nil {
		return nil, err
	}

	publish(ctx, s.publisher, s.logger, userEvents(user.ID, realtime.EventUpdated)...)
	return &user, nil
}

func (s *MemberService) save(ctx context.Context, user *models.User) error {
	if err := s.repo.SaveLifecycle(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}
	return nil
}

func (s *MemberService) audit(ctx context.Context, userID, action string) {
	uid := userID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &uid,
		Action:     action,
		Resource:   "users",
		ResourceID: &uid,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
