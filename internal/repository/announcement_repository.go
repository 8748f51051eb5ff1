package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

const announcementColumns = `id, title, content, is_active, created_by, created_at, updated_at`

// AnnouncementRepository persists announcements.
type AnnouncementRepository struct {
	db *sqlx.DB
}

// NewAnnouncementRepository constructs the repository.
func NewAnnouncementRepository(db *sqlx.DB) *AnnouncementRepository {
	return &AnnouncementRepository{db: db}
}

// List returns announcements newest first, optionally only active ones.
func (r *AnnouncementRepository) List(ctx context.Context, activeOnly bool) ([]models.Announcement, error) {
	query := `SELECT ` + announcementColumns + ` FROM announcements`
	if activeOnly {
		query += ` WHERE is_active = TRUE`
	}
	query += ` ORDER BY created_at DESC`
	var items []models.Announcement
	if err := r.db.SelectContext(ctx, &items, query); err != nil {
		return nil, fmt.Errorf("list announcements: %w", err)
	}
	return items, nil
}

// FindByID returns one announcement.
func (r *AnnouncementRepository) FindByID(ctx context.Context, id string) (*models.Announcement, error) {
	var item models.Announcement
	if err := r.db.GetContext(ctx, &item, `SELECT `+announcementColumns+` FROM announcements WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find announcement: %w", err)
	}
	return &item, nil
}

// Create inserts an announcement.
func (r *AnnouncementRepository) Create(ctx context.Context, item *models.Announcement) error {
	if item.ID == "" {
		item.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	item.CreatedAt = now
	item.UpdatedAt = now
	const query = `INSERT INTO announcements (id, title, content, is_active, created_by, created_at, updated_at)
		VALUES (:id, :title, :content, :is_active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, item); err != nil {
		return fmt.Errorf("create announcement: %w", err)
	}
	return nil
}

// Update replaces title, content and active flag.
func (r *AnnouncementRepository) Update(ctx context.Context, item *models.Announcement) error {
	item.UpdatedAt = time.Now().UTC()
	const query = `UPDATE announcements SET title = :title, content = :content, is_active = :is_active, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, item)
	if err != nil {
		return fmt.Errorf("update announcement: %w", err)
	}
	return expectAffected(res, "update announcement")
}

// Delete removes an announcement.
func (r *AnnouncementRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM announcements WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete announcement: %w", err)
	}
	return expectAffected(res, "delete announcement")
}
