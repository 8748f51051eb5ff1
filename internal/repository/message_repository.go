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

const (
	userMessageColumns  = `id, user_id, user_name, user_email, message, status, reply, replied_at, replied_by, reply_read_at, read_at, created_at`
	adminMessageColumns = `id, user_id, message, sent_by, sent_at, read, status, read_at`
)

// MessageCounts feeds the admin dashboard counters.
type MessageCounts struct {
	Total   int `db:"total"`
	Pending int `db:"pending"`
}

// MessageRepository persists both message collections.
type MessageRepository struct {
	db *sqlx.DB
}

// NewMessageRepository constructs the repository.
func NewMessageRepository(db *sqlx.DB) *MessageRepository {
	return &MessageRepository{db: db}
}

// ListUserMessages returns member-to-admin messages; an empty userID lists all.
func (r *MessageRepository) ListUserMessages(ctx context.Context, userID string) ([]models.UserMessage, error) {
	query := `SELECT ` + userMessageColumns + ` FROM user_messages`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	var msgs []models.UserMessage
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("list user messages: %w", err)
	}
	return msgs, nil
}

// ListAdminMessages returns admin-to-member messages; an empty userID lists all.
func (r *MessageRepository) ListAdminMessages(ctx context.Context, userID string) ([]models.AdminMessage, error) {
	query := `SELECT ` + adminMessageColumns + ` FROM admin_messages`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE user_id = $1`
		args = append(args, userID)
	}
	var msgs []models.AdminMessage
	if err := r.db.SelectContext(ctx, &msgs, query, args...); err != nil {
		return nil, fmt.Errorf("list admin messages: %w", err)
	}
	return msgs, nil
}

// FindUserMessage loads one member message.
func (r *MessageRepository) FindUserMessage(ctx context.Context, id string) (*models.UserMessage, error) {
	var msg models.UserMessage
	if err := r.db.GetContext(ctx, &msg, `SELECT `+userMessageColumns+` FROM user_messages WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find user message: %w", err)
	}
	return &msg, nil
}

// FindAdminMessage loads one admin message.
func (r *MessageRepository) FindAdminMessage(ctx context.Context, id string) (*models.AdminMessage, error) {
	var msg models.AdminMessage
	if err := r.db.GetContext(ctx, &msg, `SELECT `+adminMessageColumns+` FROM admin_messages WHERE id = $1`, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin message: %w", err)
	}
	return &msg, nil
}

// CreateUserMessage inserts a member message with status pending.
func (r *MessageRepository) CreateUserMessage(ctx context.Context, msg *models.UserMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}
	if msg.Status == "" {
		msg.Status = models.UserMessagePending
	}
	const query = `INSERT INTO user_messages (id, user_id, user_name, user_email, message, status, created_at)
		VALUES (:id, :user_id, :user_name, :user_email, :message, :status, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create user message: %w", err)
	}
	return nil
}

// CreateAdminMessage inserts an unread admin message.
func (r *MessageRepository) CreateAdminMessage(ctx context.Context, msg *models.AdminMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.SentAt.IsZero() {
		msg.SentAt = time.Now().UTC()
	}
	msg.Read = false
	msg.Status = models.AdminMessageUnread
	const query = `INSERT INTO admin_messages (id, user_id, message, sent_by, sent_at, read, status)
		VALUES (:id, :user_id, :message, :sent_by, :sent_at, :read, :status)`
	if _, err := r.db.NamedExecContext(ctx, query, msg); err != nil {
		return fmt.Errorf("create admin message: %w", err)
	}
	return nil
}

// Reply stores an admin reply; reply, status and reply metadata change together.
func (r *MessageRepository) Reply(ctx context.Context, id, reply, repliedBy string, at time.Time) error {
	const query = `UPDATE user_messages SET reply = $2, status = 'replied', replied_at = $3, replied_by = $4, reply_read_at = NULL,
		read_at = COALESCE(read_at, $3) WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, reply, at, repliedBy)
	if err != nil {
		return fmt.Errorf("reply user message: %w", err)
	}
	return expectAffected(res, "reply user message")
}

// MarkUserMessageRead records that an admin opened a pending member message.
// Replied messages keep their status.
func (r *MessageRepository) MarkUserMessageRead(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE user_messages SET status = CASE WHEN status = 'pending' THEN 'read' ELSE status END,
		read_at = COALESCE(read_at, $2) WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark user message read: %w", err)
	}
	return expectAffected(res, "mark user message read")
}

// MarkReplyRead records that the member has seen the reply on their message.
func (r *MessageRepository) MarkReplyRead(ctx context.Context, id, userID string, at time.Time) error {
	const query = `UPDATE user_messages SET reply_read_at = COALESCE(reply_read_at, $3) WHERE id = $1 AND user_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return fmt.Errorf("mark reply read: %w", err)
	}
	return expectAffected(res, "mark reply read")
}

// MarkAdminMessageRead marks an admin message as read. Repeated calls keep the
// first read timestamp.
func (r *MessageRepository) MarkAdminMessageRead(ctx context.Context, id string, at time.Time) error {
	const query = `UPDATE admin_messages SET read = TRUE, status = 'read', read_at = COALESCE(read_at, $2) WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return fmt.Errorf("mark admin message read: %w", err)
	}
	return expectAffected(res, "mark admin message read")
}

// DeleteUserMessage removes a member message.
func (r *MessageRepository) DeleteUserMessage(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM user_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete user message: %w", err)
	}
	return expectAffected(res, "delete user message")
}

// DeleteAdminMessage removes an admin message.
func (r *MessageRepository) DeleteAdminMessage(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM admin_messages WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete admin message: %w", err)
	}
	return expectAffected(res, "delete admin message")
}

// CountUserMessages returns total and pending member message counts.
func (r *MessageRepository) CountUserMessages(ctx context.Context) (MessageCounts, error) {
	var counts MessageCounts
	const query = `SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE status = 'pending') AS pending FROM user_messages`
	if err := r.db.GetContext(ctx, &counts, query); err != nil {
		return MessageCounts{}, fmt.Errorf("count user messages: %w", err)
	}
	return counts, nil
}
