package models

import "time"

// UserMessageStatus tracks a member-to-admin message.
type UserMessageStatus string

const (
	UserMessagePending UserMessageStatus = "pending"
	UserMessageRead    UserMessageStatus = "read"
	UserMessageReplied UserMessageStatus = "replied"
)

// AdminMessageStatus tracks an admin-to-member message.
type AdminMessageStatus string

const (
	AdminMessageUnread AdminMessageStatus = "unread"
	AdminMessageRead   AdminMessageStatus = "read"
)

// MessageKind distinguishes the two message collections.
type MessageKind string

const (
	MessageKindUser  MessageKind = "user"
	MessageKindAdmin MessageKind = "admin"
)

// UserMessage is sent by a member to the admins. userName and userEmail are
// copied at send time.
type UserMessage struct {
	ID          string            `db:"id" json:"id"`
	UserID      string            `db:"user_id" json:"userId"`
	UserName    string            `db:"user_name" json:"userName"`
	UserEmail   string            `db:"user_email" json:"userEmail"`
	Message     string            `db:"message" json:"message"`
	Status      UserMessageStatus `db:"status" json:"status"`
	Reply       *string           `db:"reply" json:"reply,omitempty"`
	RepliedAt   *time.Time        `db:"replied_at" json:"repliedAt,omitempty"`
	RepliedBy   *string           `db:"replied_by" json:"repliedBy,omitempty"`
	ReplyReadAt *time.Time        `db:"reply_read_at" json:"replyReadAt,omitempty"`
	ReadAt      *time.Time        `db:"read_at" json:"readAt,omitempty"`
	CreatedAt   time.Time         `db:"created_at" json:"createdAt"`
}

// AdminMessage is sent by an admin to one member.
type AdminMessage struct {
	ID      string             `db:"id" json:"id"`
	UserID  string             `db:"user_id" json:"userId"`
	Message string             `db:"message" json:"message"`
	SentBy  string             `db:"sent_by" json:"sentBy"`
	SentAt  time.Time          `db:"sent_at" json:"sentAt"`
	Read    bool               `db:"read" json:"read"`
	Status  AdminMessageStatus `db:"status" json:"status"`
	ReadAt  *time.Time         `db:"read_at" json:"readAt,omitempty"`
}

// ThreadMessage is one entry of a combined conversation view.
type ThreadMessage struct {
	ID          string      `json:"id"`
	Kind        MessageKind `json:"type"`
	UserID      string      `json:"userId"`
	Message     string      `json:"message"`
	Status      string      `json:"status"`
	Reply       *string     `json:"reply,omitempty"`
	RepliedAt   *time.Time  `json:"repliedAt,omitempty"`
	ReplyReadAt *time.Time  `json:"replyReadAt,omitempty"`
	SentBy      string      `json:"sentBy,omitempty"`
	Read        bool        `json:"read"`
	At          time.Time   `json:"createdAt"`
}

// MemberThread is the member's conversation with the admins.
type MemberThread struct {
	Messages    []ThreadMessage `json:"messages"`
	UnreadCount int             `json:"unreadCount"`
}

// InboxEntry groups every message exchanged with one member.
type InboxEntry struct {
	UserID       string          `json:"userId"`
	UserName     string          `json:"userName"`
	UserEmail    string          `json:"userEmail"`
	Messages     []ThreadMessage `json:"messages"`
	UnreadCount  int             `json:"unreadCount"`
	LastActivity time.Time       `json:"lastActivity"`
}

// SendMessageRequest carries a new message body.
type SendMessageRequest struct {
	Message string `json:"message" validate:"required,max=2000"`
}

// ReplyRequest carries an admin reply.
type ReplyRequest struct {
	Reply string `json:"reply" validate:"required,max=2000"`
}

// MarkReadResult reports whether the read state was stored or only kept as a
// local marker.
type MarkReadResult struct {
	ID       string `json:"id"`
	Degraded bool   `json:"degraded"`
}
