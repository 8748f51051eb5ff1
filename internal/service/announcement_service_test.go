package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type announcementRepoStub struct {
	items      map[string]*models.Announcement
	activeOnly bool
}

func (r *announcementRepoStub) List(ctx context.Context, activeOnly bool) ([]models.Announcement, error) {
	r.activeOnly = activeOnly
	var out []models.Announcement
	for _, item := range r.items {
		if activeOnly && !item.IsActive {
			continue
		}
		out = append(out, *item)
	}
	return out, nil
}

func (r *announcementRepoStub) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	item, ok := r.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *item
	return &clone, nil
}

func (r *announcementRepoStub) Create(ctx context.Context, item *models.Announcement) error {
	item.ID = "ann-1"
	r.items[item.ID] = item
	return nil
}

func (r *announcementRepoStub) Update(ctx context.Context, item *models.Announcement) error {
	r.items[item.ID] = item
	return nil
}

func (r *announcementRepoStub) Delete(ctx context.Context, id string) error {
	if _, ok := r.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(r.items, id)
	return nil
}

func TestAnnouncementServiceLifecycle(t *testing.T) {
	repo := &announcementRepoStub{items: map[string]*models.Announcement{}}
	pub := &recordingPublisher{}
	svc := NewAnnouncementService(repo, pub, nil, zap.NewNop())

	item, err := svc.Create(context.Background(), adminActor, models.AnnouncementRequest{Title: " Jadwal Pre-Test ", Content: "Senin 07.00 di GOR"})
	require.NoError(t, err)
	assert.True(t, item.IsActive)
	assert.Equal(t, "Jadwal Pre-Test", item.Title)
	assert.Equal(t, "admin@upi.edu", item.CreatedBy)

	off := false
	updated, err := svc.Update(context.Background(), item.ID, models.AnnouncementRequest{Title: "Jadwal", Content: "Diundur", IsActive: &off})
	require.NoError(t, err)
	assert.False(t, updated.IsActive)

	active, err := svc.List(context.Background(), true)
	require.NoError(t, err)
	assert.Empty(t, active)
	assert.True(t, repo.activeOnly)

	require.NoError(t, svc.Delete(context.Background(), item.ID))
	err = svc.Delete(context.Background(), item.ID)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)

	require.Len(t, pub.events, 3)
	for _, evt := range pub.events {
		assert.Equal(t, realtime.TopicAnnouncements, evt.Topic)
	}
	assert.Equal(t, realtime.EventDeleted, pub.events[2].Type)
}

func TestAnnouncementServiceValidation(t *testing.T) {
	svc := NewAnnouncementService(&announcementRepoStub{items: map[string]*models.Announcement{}}, nil, nil, zap.NewNop())

	_, err := svc.Create(context.Background(), adminActor, models.AnnouncementRequest{Title: "  ", Content: "x"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)

	_, err = svc.Update(context.Background(), "missing", models.AnnouncementRequest{Title: "t", Content: "c"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}
