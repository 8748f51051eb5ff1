package service

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/firebase"
	"github.com/ibaf-upi/ibaf-api/pkg/jobs"
)

// JobIdentityDelete removes a deleted member's federated identity.
const JobIdentityDelete = "identity.delete"

type identityProvider interface {
	Delete(ctx context.Context, uid string) error
	ListUIDs(ctx context.Context) ([]string, error)
}

type identityStore interface {
	ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type jobQueue interface {
	Register(jobType string, handler jobs.Handler)
	Enqueue(job jobs.Job) (string, error)
}

// OrphanCleanupResult reports a provider sweep.
type OrphanCleanupResult struct {
	Scanned int      `json:"scanned"`
	Deleted []string `json:"deleted"`
	Failed  []string `json:"failed"`
}

// IdentityService deletes accounts from the federated identity provider.
type IdentityService struct {
	provider identityProvider
	users    identityStore
	queue    jobQueue
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewIdentityService constructs the service and registers its job handler on
// queue. provider may be nil when federation is disabled.
func NewIdentityService(provider identityProvider, users identityStore, queue jobQueue, metrics *MetricsService, logger *zap.Logger) *IdentityService {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &IdentityService{provider: provider, users: users, queue: queue, metrics: metrics, logger: logger}
	if queue != nil {
		queue.Register(JobIdentityDelete, s.handleDelete)
	}
	return s
}

// EnqueueRevoke schedules the identity deletion of userID.
func (s *IdentityService) EnqueueRevoke(userID string) (string, error) {
	if s.provider == nil {
		s.metrics.RecordIdentityRevocation("skipped")
		return "", nil
	}
	if s.queue == nil {
		return "", fmt.Errorf("identity queue not configured")
	}
	return s.queue.Enqueue(jobs.Job{Type: JobIdentityDelete, Payload: userID})
}

// DeleteIdentity removes uid from the provider. A missing account counts as
// success.
func (s *IdentityService) DeleteIdentity(ctx context.Context, actor Actor, uid string) error {
	if err := s.deleteIdentity(ctx, uid); err != nil {
		return err
	}
	s.audit(ctx, actor, uid)
	return nil
}

// CleanupOrphans deletes provider accounts that no longer have a users row.
func (s *IdentityService) CleanupOrphans(ctx context.Context, actor Actor) (*OrphanCleanupResult, error) {
	if s.provider == nil {
		return nil, appErrors.ErrProviderUnavailable
	}
	uids, err := s.provider.ListUIDs(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list identities")
	}
	result := &OrphanCleanupResult{Scanned: len(uids), Deleted: []string{}, Failed: []string{}}
	if len(uids) == 0 {
		return result, nil
	}

	existing, err := s.users.ExistingIDs(ctx, uids)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to match identities")
	}
	for _, uid := range uids {
		if existing[uid] {
			continue
		}
		if err := s.deleteIdentity(ctx, uid); err != nil {
			s.logger.Warn("failed to delete orphaned identity", zap.String("uid", uid), zap.Error(err))
			result.Failed = append(result.Failed, uid)
			continue
		}
		s.audit(ctx, actor, uid)
		result.Deleted = append(result.Deleted, uid)
	}

	s.logger.Info("orphaned identities cleaned",
		zap.Int("scanned", result.Scanned),
		zap.Int("deleted", len(result.Deleted)),
		zap.Int("failed", len(result.Failed)),
	)
	return result, nil
}

func (s *IdentityService) handleDelete(ctx context.Context, job jobs.Job) error {
	uid, ok := job.Payload.(string)
	if !ok || uid == "" {
		return fmt.Errorf("%w: identity job without uid", jobs.ErrPermanent)
	}
	err := s.deleteIdentity(ctx, uid)
	if errors.Is(err, appErrors.ErrProviderUnavailable) {
		return fmt.Errorf("%w: %v", jobs.ErrPermanent, err)
	}
	return err
}

func (s *IdentityService) deleteIdentity(ctx context.Context, uid string) error {
	if s.provider == nil {
		return appErrors.ErrProviderUnavailable
	}
	if uid == "" {
		return appErrors.Clone(appErrors.ErrValidation, "uid is required")
	}
	err := s.provider.Delete(ctx, uid)
	switch {
	case err == nil:
		s.metrics.RecordIdentityRevocation("deleted")
		return nil
	case errors.Is(err, firebase.ErrIdentityNotFound):
		s.metrics.RecordIdentityRevocation("not_found")
		return nil
	default:
		s.metrics.RecordIdentityRevocation("failed")
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete identity")
	}
}

func (s *IdentityService) audit(ctx context.Context, actor Actor, uid string) {
	if s.users == nil {
		return
	}
	var actorID *string
	if actor.ID != "" {
		id := actor.ID
		actorID = &id
	}
	target := uid
	if err := s.users.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     actorID,
		Action:     models.AuditActionIdentityRevoke,
		Resource:   "identities",
		ResourceID: &target,
		IPAddress:  actor.IP,
		UserAgent:  actor.Agent,
	}); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("uid", uid), zap.Error(err))
	}
}
