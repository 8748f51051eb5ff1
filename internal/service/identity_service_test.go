package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/firebase"
	"github.com/ibaf-upi/ibaf-api/pkg/jobs"
)

type providerStub struct {
	uids     []string
	failures map[string]error
	deleted  []string
}

func (p *providerStub) Delete(ctx context.Context, uid string) error {
	if err, ok := p.failures[uid]; ok {
		return err
	}
	p.deleted = append(p.deleted, uid)
	return nil
}

func (p *providerStub) ListUIDs(ctx context.Context) ([]string, error) {
	return p.uids, nil
}

type identityStoreStub struct {
	existing map[string]bool
	audits   []*models.AuditLog
}

func (s *identityStoreStub) ExistingIDs(ctx context.Context, ids []string) (map[string]bool, error) {
	return s.existing, nil
}

func (s *identityStoreStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	s.audits = append(s.audits, log)
	return nil
}

type queueStub struct {
	handlers map[string]jobs.Handler
	jobs     []jobs.Job
}

func (q *queueStub) Register(jobType string, handler jobs.Handler) {
	if q.handlers == nil {
		q.handlers = map[string]jobs.Handler{}
	}
	q.handlers[jobType] = handler
}

func (q *queueStub) Enqueue(job jobs.Job) (string, error) {
	q.jobs = append(q.jobs, job)
	return "job-1", nil
}

func TestIdentityServiceEnqueueAndHandle(t *testing.T) {
	provider := &providerStub{}
	queue := &queueStub{}
	svc := NewIdentityService(provider, &identityStoreStub{}, queue, nil, zap.NewNop())
	require.Contains(t, queue.handlers, JobIdentityDelete)

	id, err := svc.EnqueueRevoke("u1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", id)
	require.Len(t, queue.jobs, 1)

	err = queue.handlers[JobIdentityDelete](context.Background(), queue.jobs[0])
	require.NoError(t, err)
	assert.Equal(t, []string{"u1"}, provider.deleted)
}

func TestIdentityServiceMissingIdentityIsSuccess(t *testing.T) {
	provider := &providerStub{failures: map[string]error{"u1": firebase.ErrIdentityNotFound}}
	store := &identityStoreStub{}
	svc := NewIdentityService(provider, store, nil, nil, zap.NewNop())

	require.NoError(t, svc.DeleteIdentity(context.Background(), adminActor, "u1"))
	require.Len(t, store.audits, 1)
	assert.Equal(t, models.AuditActionIdentityRevoke, store.audits[0].Action)
}

func TestIdentityServiceHandlerRetriesTransientFailures(t *testing.T) {
	provider := &providerStub{failures: map[string]error{"u1": errors.New("unavailable")}}
	queue := &queueStub{}
	NewIdentityService(provider, &identityStoreStub{}, queue, nil, zap.NewNop())

	err := queue.handlers[JobIdentityDelete](context.Background(), jobs.Job{Type: JobIdentityDelete, Payload: "u1"})
	require.Error(t, err)
	assert.False(t, errors.Is(err, jobs.ErrPermanent))

	err = queue.handlers[JobIdentityDelete](context.Background(), jobs.Job{Type: JobIdentityDelete, Payload: 42})
	assert.ErrorIs(t, err, jobs.ErrPermanent)
}

func TestIdentityServiceWithoutProvider(t *testing.T) {
	queue := &queueStub{}
	svc := NewIdentityService(nil, &identityStoreStub{}, queue, nil, zap.NewNop())

	id, err := svc.EnqueueRevoke("u1")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Empty(t, queue.jobs)

	err = svc.DeleteIdentity(context.Background(), adminActor, "u1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrProviderUnavailable.Code, appErrors.FromError(err).Code)

	_, err = svc.CleanupOrphans(context.Background(), adminActor)
	assert.Error(t, err)
}

func TestIdentityServiceCleanupOrphans(t *testing.T) {
	provider := &providerStub{
		uids:     []string{"kept", "orphan-1", "orphan-2"},
		failures: map[string]error{"orphan-2": errors.New("quota")},
	}
	store := &identityStoreStub{existing: map[string]bool{"kept": true}}
	svc := NewIdentityService(provider, store, nil, nil, zap.NewNop())

	result, err := svc.CleanupOrphans(context.Background(), adminActor)
	require.NoError(t, err)
	assert.Equal(t, 3, result.Scanned)
	assert.Equal(t, []string{"orphan-1"}, result.Deleted)
	assert.Equal(t, []string{"orphan-2"}, result.Failed)
	assert.Equal(t, []string{"orphan-1"}, provider.deleted)
}
