package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/lifecycle"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/repository"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	CountByStatus(ctx context.Context) (models.UserStatusCounts, error)
	CountActivity(ctx context.Context) (total, active int, err error)
	SaveLifecycle(ctx context.Context, user *models.User) error
	DeleteCascade(ctx context.Context, id string) (repository.CascadeResult, error)
	RevokeUserRefreshTokens(ctx context.Context, userID string) error
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type messageCounter interface {
	CountUserMessages(ctx context.Context) (repository.MessageCounts, error)
}

type exportPurger interface {
	PurgeOwner(ownerID string) error
}

// IdentityRevoker removes a deleted member's federated identity out of band.
type IdentityRevoker interface {
	EnqueueRevoke(userID string) (string, error)
}

// Actor identifies the admin performing a moderation action.
type Actor struct {
	ID    string
	Email string
	IP    string
	Agent string
}

// ActorFromSession builds an Actor from the request session.
func ActorFromSession(s *models.Session) Actor {
	if s == nil || s.Claims == nil {
		return Actor{}
	}
	email := s.Claims.Email
	if s.User != nil && s.User.Email != "" {
		email = s.User.Email
	}
	return Actor{ID: s.Claims.UserID, Email: email}
}

// ReviewRequest approves a pending member.
type ReviewRequest struct {
	IsIbafMember bool `json:"isIbafMember"`
}

// RejectRequest rejects a pending member.
type RejectRequest struct {
	Reason string `json:"reason" validate:"required,max=500"`
}

// SetActiveRequest toggles isActive.
type SetActiveRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// DeleteUserRequest carries the typed confirmation word.
type DeleteUserRequest struct {
	Confirmation string `json:"confirmation" validate:"required"`
}

// DeleteUserResult reports what a hard delete removed.
type DeleteUserResult struct {
	UserID        string                   `json:"userId"`
	Removed       repository.CascadeResult `json:"removed"`
	IdentityJobID string                   `json:"identityJobId,omitempty"`
}

// UserListResult is the admin user list with per-tab counts.
type UserListResult struct {
	Users  []models.User           `json:"users"`
	Counts models.UserStatusCounts `json:"counts"`
}

// UserService handles admin user management and moderation.
type UserService struct {
	repo      userRepository
	messages  messageCounter
	cache     *CacheService
	revoker   IdentityRevoker
	exports   exportPurger
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	statsTTL  time.Duration
	now       func() time.Time
}

// UserServiceDeps groups optional collaborators.
type UserServiceDeps struct {
	Messages  messageCounter
	Cache     *CacheService
	Revoker   IdentityRevoker
	Exports   exportPurger
	Publisher realtime.Publisher
	StatsTTL  time.Duration
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, deps UserServiceDeps, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &UserService{
		repo:      repo,
		messages:  deps.Messages,
		cache:     deps.Cache,
		revoker:   deps.Revoker,
		exports:   deps.Exports,
		publisher: deps.Publisher,
		validator: validate,
		logger:    logger,
		statsTTL:  deps.StatsTTL,
		now:       time.Now,
	}
}

// List returns a page of users, pagination metadata and the per-tab counts.
func (s *UserService) List(ctx context.Context, filter models.UserFilter) (*UserListResult, *models.Pagination, error) {
	users, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	if users == nil {
		users = []models.User{}
	}

	return &UserListResult{Users: users, Counts: counts}, &models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a user by ID.
func (s *UserService) Get(ctx context.Context, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	return user, nil
}

// Stats returns the admin dashboard counters, served from cache when fresh.
// The second result reports a cache hit.
func (s *UserService) Stats(ctx context.Context) (*models.AdminStats, bool, error) {
	var cached models.AdminStats
	if s.cache.Lookup(ctx, adminStatsCacheKey, &cached) {
		return &cached, true, nil
	}

	total, active, err := s.repo.CountActivity(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	counts, err := s.repo.CountByStatus(ctx)
	if err != nil {
		return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count users")
	}
	stats := &models.AdminStats{
		TotalUsers:           total,
		ActiveUsers:          active,
		PendingVerifications: counts.Pending,
	}
	if s.messages != nil {
		msgCounts, err := s.messages.CountUserMessages(ctx)
		if err != nil {
			return nil, false, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count messages")
		}
		stats.TotalMessages = msgCounts.Total
		stats.PendingMessages = msgCounts.Pending
	}

	s.cache.Store(ctx, adminStatsCacheKey, stats, s.statsTTL)
	return stats, false, nil
}

// Approve approves a pending member.
func (s *UserService) Approve(ctx context.Context, actor Actor, id string, req ReviewRequest) (*models.User, error) {
	return s.transition(ctx, actor, id, models.AuditActionApprove, func(u *models.User, now time.Time) error {
		return lifecycle.Approve(u, actor.Email, req.IsIbafMember, now)
	})
}

// Reject rejects a pending member with a reason.
func (s *UserService) Reject(ctx context.Context, actor Actor, id string, req RejectRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "rejection reason is required")
	}
	return s.transition(ctx, actor, id, models.AuditActionReject, func(u *models.User, now time.Time) error {
		return lifecycle.Reject(u, actor.Email, req.Reason, now)
	})
}

// Ban blocks an account.
func (s *UserService) Ban(ctx context.Context, actor Actor, id string) (*models.User, error) {
	return s.transition(ctx, actor, id, models.AuditActionBan, func(u *models.User, now time.Time) error {
		return lifecycle.Ban(u, actor.Email, now)
	})
}

// Unban lifts a ban.
func (s *UserService) Unban(ctx context.Context, actor Actor, id string) (*models.User, error) {
	return s.transition(ctx, actor, id, models.AuditActionUnban, func(u *models.User, now time.Time) error {
		return lifecycle.Unban(u, actor.Email, now)
	})
}

// SetActive toggles isActive.
func (s *UserService) SetActive(ctx context.Context, actor Actor, id string, req SetActiveRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "isActive is required")
	}
	return s.transition(ctx, actor, id, models.AuditActionSetActive, func(u *models.User, now time.Time) error {
		return lifecycle.SetActive(u, *req.IsActive, now)
	})
}

// Delete hard-deletes a member with every dependent document, then schedules
// the identity revocation without waiting for it.
func (s *UserService) Delete(ctx context.Context, actor Actor, id string, req DeleteUserRequest) (*DeleteUserResult, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := lifecycle.ConfirmDelete(user, req.Confirmation); err != nil {
		return nil, err
	}

	removed, err := s.repo.DeleteCascade(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	result := &DeleteUserResult{UserID: id, Removed: removed}
	if s.revoker != nil {
		jobID, err := s.revoker.EnqueueRevoke(id)
		if err != nil {
			s.logger.Warn("failed to schedule identity revocation", zap.String("user_id", id), zap.Error(err))
		}
		result.IdentityJobID = jobID
	}
	if s.exports != nil {
		if err := s.exports.PurgeOwner(id); err != nil {
			s.logger.Warn("failed to remove stored exports", zap.String("user_id", id), zap.Error(err))
		}
	}

	oldValues, _ := json.Marshal(map[string]interface{}{"email": user.Email, "status": user.VerificationStatus})
	newValues, _ := json.Marshal(removed)
	s.audit(ctx, actor, id, models.AuditActionUserDelete, oldValues, newValues)
	s.invalidateStats(ctx)

	events := userEvents(id, realtime.EventDeleted)
	events = append(events, messageEvents(id, "", realtime.EventDeleted)...)
	events = append(events, workoutEvent(id, "", realtime.EventDeleted))
	publish(ctx, s.publisher, s.logger, events...)

	return result, nil
}

func (s *UserService) transition(ctx context.Context, actor Actor, id, action string, apply func(*models.User, time.Time) error) (*models.User, error) {
	user, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	before := snapshotLifecycle(user)

	if err := apply(user, s.now()); err != nil {
		return nil, err
	}

	if err := s.repo.SaveLifecycle(ctx, user); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	if action == models.AuditActionBan {
		if err := s.repo.RevokeUserRefreshTokens(ctx, id); err != nil {
			s.logger.Warn("failed to revoke refresh tokens of banned user", zap.String("user_id", id), zap.Error(err))
		}
	}

	s.audit(ctx, actor, id, action, before, snapshotLifecycle(user))
	s.invalidateStats(ctx)
	publish(ctx, s.publisher, s.logger, userEvents(id, realtime.EventUpdated)...)
	return user, nil
}

func (s *UserService) audit(ctx context.Context, actor Actor, targetID, action string, oldValues, newValues []byte) {
	actorID := actor.ID
	target := targetID
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actorID,
		Action:     action,
		Resource:   "users",
		ResourceID: &target,
		OldValues:  oldValues,
		NewValues:  newValues,
		IPAddress:  actor.IP,
		UserAgent:  actor.Agent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}

func (s *UserService) invalidateStats(ctx context.Context) {
	s.cache.Forget(ctx, adminStatsCacheKey)
}

func snapshotLifecycle(u *models.User) []byte {
	payload, _ := json.Marshal(map[string]interface{}{
		"verificationStatus": u.VerificationStatus,
		"isActive":           u.IsActive,
		"isBanned":           u.IsBanned,
		"isIbafMember":       u.IsIbafMember,
	})
	return payload
}
