package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/lifecycle"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/repository"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type userRepoStub struct {
	users        map[string]*models.User
	counts       models.UserStatusCounts
	total        int
	active       int
	countCalls   int
	saved        []models.User
	saveErr      error
	cascade      repository.CascadeResult
	cascadeErr   error
	deleted      []string
	revokedToken []string
	audits       []*models.AuditLog
}

func newUserRepoStub(users ...*models.User) *userRepoStub {
	stub := &userRepoStub{users: map[string]*models.User{}}
	for _, u := range users {
		stub.users[u.ID] = u
	}
	return stub
}

func (r *userRepoStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	out := make([]models.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, *u)
	}
	return out, len(out), nil
}

func (r *userRepoStub) FindByID(ctx context.Context, id string) (*models.User, error) {
	u, ok := r.users[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *u
	return &clone, nil
}

func (r *userRepoStub) CountByStatus(ctx context.Context) (models.UserStatusCounts, error) {
	return r.counts, nil
}

func (r *userRepoStub) CountActivity(ctx context.Context) (int, int, error) {
	r.countCalls++
	return r.total, r.active, nil
}

func (r *userRepoStub) SaveLifecycle(ctx context.Context, user *models.User) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saved = append(r.saved, *user)
	clone := *user
	r.users[user.ID] = &clone
	return nil
}

func (r *userRepoStub) DeleteCascade(ctx context.Context, id string) (repository.CascadeResult, error) {
	if r.cascadeErr != nil {
		return repository.CascadeResult{}, r.cascadeErr
	}
	r.deleted = append(r.deleted, id)
	delete(r.users, id)
	return r.cascade, nil
}

func (r *userRepoStub) RevokeUserRefreshTokens(ctx context.Context, userID string) error {
	r.revokedToken = append(r.revokedToken, userID)
	return nil
}

func (r *userRepoStub) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	r.audits = append(r.audits, log)
	return nil
}

type messageCounterStub struct {
	counts repository.MessageCounts
}

func (m messageCounterStub) CountUserMessages(ctx context.Context) (repository.MessageCounts, error) {
	return m.counts, nil
}

type revokerStub struct {
	ids []string
	err error
}

func (r *revokerStub) EnqueueRevoke(userID string) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	r.ids = append(r.ids, userID)
	return "job-" + userID, nil
}

type purgerStub struct {
	owners []string
}

func (p *purgerStub) PurgeOwner(ownerID string) error {
	p.owners = append(p.owners, ownerID)
	return nil
}

// memoryCache is an in-process CacheRepository.
type memoryCache struct {
	entries map[string][]byte
}

func newMemoryCache() *memoryCache {
	return &memoryCache{entries: map[string][]byte{}}
}

func (c *memoryCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := c.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.entries[key] = raw
	return nil
}

func (c *memoryCache) Delete(ctx context.Context, keys ...string) error {
	for _, key := range keys {
		delete(c.entries, key)
	}
	return nil
}

func pendingMember(id string) *models.User {
	return &models.User{
		ID:                 id,
		Email:              id + "@upi.edu",
		Role:               models.RoleUser,
		FullName:           "Budi Santoso",
		NIM:                "2101234",
		Prodi:              "Pendidikan Jasmani",
		VerificationStatus: models.VerificationPending,
		IsActive:           true,
	}
}

var adminActor = Actor{ID: "admin-1", Email: "admin@upi.edu"}

func TestUserServiceApprovePendingMember(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	pub := &recordingPublisher{}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	cache.Store(context.Background(), adminStatsCacheKey, models.AdminStats{TotalUsers: 9}, time.Minute)
	svc := NewUserService(repo, UserServiceDeps{Cache: cache, Publisher: pub}, nil, zap.NewNop())

	user, err := svc.Approve(context.Background(), adminActor, "u1", ReviewRequest{IsIbafMember: true})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationApproved, user.VerificationStatus)
	assert.True(t, user.IsActive)
	assert.True(t, user.IsIbafMember)
	assert.Equal(t, "Budi Santoso", user.Name)
	require.NotNil(t, user.ApprovedBy)
	assert.Equal(t, "admin@upi.edu", *user.ApprovedBy)

	require.Len(t, repo.audits, 1)
	assert.Equal(t, models.AuditActionApprove, repo.audits[0].Action)
	assert.ElementsMatch(t, []string{realtime.TopicUsers, realtime.TopicUser("u1")}, pub.topics())

	var cached models.AdminStats
	assert.False(t, cache.Lookup(context.Background(), adminStatsCacheKey, &cached))
}

func TestUserServiceApproveRejectsNonPending(t *testing.T) {
	member := pendingMember("u1")
	member.VerificationStatus = models.VerificationApproved
	repo := newUserRepoStub(member)
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	_, err := svc.Approve(context.Background(), adminActor, "u1", ReviewRequest{})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidTransition.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.saved)
}

func TestUserServiceRejectRequiresReason(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	_, err := svc.Reject(context.Background(), adminActor, "u1", RejectRequest{Reason: ""})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	user, err := svc.Reject(context.Background(), adminActor, "u1", RejectRequest{Reason: "NIM tidak valid"})
	require.NoError(t, err)
	assert.Equal(t, models.VerificationRejected, user.VerificationStatus)
	assert.False(t, user.IsActive)
	assert.Equal(t, "NIM tidak valid", user.RejectionReason)
}

func TestUserServiceBanRevokesSessions(t *testing.T) {
	member := pendingMember("u1")
	member.VerificationStatus = models.VerificationApproved
	repo := newUserRepoStub(member)
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	user, err := svc.Ban(context.Background(), adminActor, "u1")
	require.NoError(t, err)
	assert.True(t, user.IsBanned)
	assert.False(t, user.IsActive)
	assert.Equal(t, models.VerificationApproved, user.VerificationStatus)
	assert.Equal(t, []string{"u1"}, repo.revokedToken)

	user, err = svc.Unban(context.Background(), adminActor, "u1")
	require.NoError(t, err)
	assert.False(t, user.IsBanned)
	assert.True(t, user.IsActive)
}

func TestUserServiceSetActiveRequiresValue(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	_, err := svc.SetActive(context.Background(), adminActor, "u1", SetActiveRequest{})
	require.Error(t, err)

	off := false
	user, err := svc.SetActive(context.Background(), adminActor, "u1", SetActiveRequest{IsActive: &off})
	require.NoError(t, err)
	assert.False(t, user.IsActive)
	assert.Equal(t, models.VerificationPending, user.VerificationStatus)
}

func TestUserServiceTransitionOnMissingUser(t *testing.T) {
	svc := NewUserService(newUserRepoStub(), UserServiceDeps{}, nil, zap.NewNop())

	_, err := svc.Ban(context.Background(), adminActor, "ghost")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUserServiceStatsAreCached(t *testing.T) {
	repo := newUserRepoStub()
	repo.total, repo.active = 10, 7
	repo.counts = models.UserStatusCounts{Pending: 3}
	cache := NewCacheService(newMemoryCache(), nil, time.Minute, zap.NewNop(), true)
	svc := NewUserService(repo, UserServiceDeps{
		Cache:    cache,
		Messages: messageCounterStub{counts: repository.MessageCounts{Total: 5, Pending: 2}},
	}, nil, zap.NewNop())

	stats, hit, err := svc.Stats(context.Background())
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, models.AdminStats{TotalUsers: 10, ActiveUsers: 7, PendingVerifications: 3, TotalMessages: 5, PendingMessages: 2}, *stats)

	_, hit, err = svc.Stats(context.Background())
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, 1, repo.countCalls)
}

func TestUserServiceDeleteRequiresConfirmation(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	_, err := svc.Delete(context.Background(), adminActor, "u1", DeleteUserRequest{Confirmation: "hapus"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConfirmationNeeded.Code, appErrors.FromError(err).Code)
	assert.Empty(t, repo.deleted)
}

func TestUserServiceDeleteCascadesAndSchedulesRevocation(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	repo.cascade = repository.CascadeResult{WorkoutLogs: 3, UserMessages: 1}
	revoker := &revokerStub{}
	purger := &purgerStub{}
	pub := &recordingPublisher{}
	svc := NewUserService(repo, UserServiceDeps{Revoker: revoker, Exports: purger, Publisher: pub}, nil, zap.NewNop())

	result, err := svc.Delete(context.Background(), adminActor, "u1", DeleteUserRequest{Confirmation: lifecycle.ConfirmDeleteWord})
	require.NoError(t, err)
	assert.Equal(t, "u1", result.UserID)
	assert.Equal(t, int64(3), result.Removed.WorkoutLogs)
	assert.Equal(t, "job-u1", result.IdentityJobID)
	assert.Equal(t, []string{"u1"}, revoker.ids)
	assert.Equal(t, []string{"u1"}, purger.owners)
	assert.Contains(t, pub.topics(), realtime.TopicWorkoutLogs("u1"))
}

func TestUserServiceDeleteSucceedsWhenRevocationCannotBeQueued(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	svc := NewUserService(repo, UserServiceDeps{Revoker: &revokerStub{err: errors.New("queue stopped")}}, nil, zap.NewNop())

	result, err := svc.Delete(context.Background(), adminActor, "u1", DeleteUserRequest{Confirmation: "HAPUS"})
	require.NoError(t, err)
	assert.Empty(t, result.IdentityJobID)
	assert.Equal(t, []string{"u1"}, repo.deleted)
}

func TestUserServiceDeleteRefusesAdmins(t *testing.T) {
	repo := newUserRepoStub(&models.User{ID: "a1", Role: models.RoleAdmin})
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	_, err := svc.Delete(context.Background(), adminActor, "a1", DeleteUserRequest{Confirmation: "HAPUS"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrForbidden.Code, appErrors.FromError(err).Code)
}

func TestUserServiceListDefaultsPagination(t *testing.T) {
	repo := newUserRepoStub(pendingMember("u1"))
	repo.counts = models.UserStatusCounts{All: 1, Pending: 1}
	svc := NewUserService(repo, UserServiceDeps{}, nil, zap.NewNop())

	result, page, err := svc.List(context.Background(), models.UserFilter{PageSize: 1000})
	require.NoError(t, err)
	assert.Len(t, result.Users, 1)
	assert.Equal(t, 1, result.Counts.Pending)
	assert.Equal(t, 1, page.Page)
	assert.Equal(t, 20, page.PageSize)
}
