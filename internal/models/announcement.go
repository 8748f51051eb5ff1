package models

import "time"

// Announcement is an admin-authored notice shown on member dashboards.
type Announcement struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Content   string    `db:"content" json:"content"`
	IsActive  bool      `db:"is_active" json:"isActive"`
	CreatedBy string    `db:"created_by" json:"createdBy,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt time.Time `db:"updated_at" json:"updatedAt"`
}

// AnnouncementRequest creates or replaces an announcement.
type AnnouncementRequest struct {
	Title    string `json:"title" validate:"required,max=200"`
	Content  string `json:"content" validate:"required"`
	IsActive *bool  `json:"isActive"`
}
