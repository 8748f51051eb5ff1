package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/repository"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/realtime"
)

type messageRepository interface {
	ListUserMessages(ctx context.Context, userID string) ([]models.UserMessage, error)
	ListAdminMessages(ctx context.Context, userID string) ([]models.AdminMessage, error)
	FindUserMessage(ctx context.Context, id string) (*models.UserMessage, error)
	FindAdminMessage(ctx context.Context, id string) (*models.AdminMessage, error)
	CreateUserMessage(ctx context.Context, msg *models.UserMessage) error
	CreateAdminMessage(ctx context.Context, msg *models.AdminMessage) error
	Reply(ctx context.Context, id, reply, repliedBy string, at time.Time) error
	MarkUserMessageRead(ctx context.Context, id string, at time.Time) error
	MarkReplyRead(ctx context.Context, id, userID string, at time.Time) error
	MarkAdminMessageRead(ctx context.Context, id string, at time.Time) error
	DeleteUserMessage(ctx context.Context, id string) error
	DeleteAdminMessage(ctx context.Context, id string) error
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// MessageService serves both sides of the member/admin conversation.
type MessageService struct {
	repo      messageRepository
	users     userFinder
	markers   *ReadMarkers
	cache     *CacheService
	metrics   *MetricsService
	publisher realtime.Publisher
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// MessageServiceDeps groups optional collaborators.
type MessageServiceDeps struct {
	Markers   *ReadMarkers
	Cache     *CacheService
	Metrics   *MetricsService
	Publisher realtime.Publisher
}

// NewMessageService constructs a MessageService.
func NewMessageService(repo messageRepository, users userFinder, deps MessageServiceDeps, validate *validator.Validate, logger *zap.Logger) *MessageService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &MessageService{
		repo:      repo,
		users:     users,
		markers:   deps.Markers,
		cache:     deps.Cache,
		metrics:   deps.Metrics,
		publisher: deps.Publisher,
		validator: validate,
		logger:    logger,
		now:       time.Now,
	}
}

// Thread returns the member's combined conversation and unread count.
func (s *MessageService) Thread(ctx context.Context, userID string) (*models.MemberThread, error) {
	userMsgs, adminMsgs, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	markers := s.markers.Load(ctx, userID)
	return &models.MemberThread{
		Messages:    CombineThread(userMsgs, adminMsgs, s.now().UTC()),
		UnreadCount: MemberUnread(userMsgs, adminMsgs, markers),
	}, nil
}

// Send stores a member message addressed to the admins.
func (s *MessageService) Send(ctx context.Context, user *models.User, req models.SendMessageRequest) (*models.UserMessage, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message is required")
	}
	msg := &models.UserMessage{
		UserID:    user.ID,
		UserName:  user.DisplayName(),
		UserEmail: user.Email,
		Message:   req.Message,
		Status:    models.UserMessagePending,
		CreatedAt: s.now().UTC(),
	}
	if err := s.repo.CreateUserMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	s.changed(ctx, user.ID, msg.ID, realtime.EventCreated)
	return msg, nil
}

// MemberMarkRead marks an admin message, or the reply on the member's own
// message, as read. A write rejected by the store degrades to a local marker.
func (s *MessageService) MemberMarkRead(ctx context.Context, userID string, kind models.MessageKind, id string) (*models.MarkReadResult, error) {
	at := s.now().UTC()
	var writeErr error
	switch kind {
	case models.MessageKindAdmin:
		msg, err := s.findAdminMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg.UserID != userID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		writeErr = s.repo.MarkAdminMessageRead(ctx, id, at)
	case models.MessageKindUser:
		msg, err := s.findUserMessage(ctx, id)
		if err != nil {
			return nil, err
		}
		if msg.UserID != userID {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		writeErr = s.repo.MarkReplyRead(ctx, id, userID, at)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "unknown message type")
	}
	return s.markResult(ctx, userID, userID, kind, id, writeErr)
}

// MemberDelete removes one of the member's messages in either direction.
func (s *MessageService) MemberDelete(ctx context.Context, userID string, kind models.MessageKind, id string) error {
	switch kind {
	case models.MessageKindAdmin:
		msg, err := s.findAdminMessage(ctx, id)
		if err != nil {
			return err
		}
		if msg.UserID != userID {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
	case models.MessageKindUser:
		msg, err := s.findUserMessage(ctx, id)
		if err != nil {
			return err
		}
		if msg.UserID != userID {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown message type")
	}
	return s.delete(ctx, userID, kind, id)
}

// Inbox returns every conversation grouped by member for the admin view.
func (s *MessageService) Inbox(ctx context.Context, adminID string) ([]models.InboxEntry, error) {
	userMsgs, adminMsgs, err := s.load(ctx, "")
	if err != nil {
		return nil, err
	}
	entries := GroupInbox(userMsgs, adminMsgs, s.markers.Load(ctx, adminID), s.now().UTC())
	s.fillIdentity(ctx, entries)
	return entries, nil
}

// Conversation returns the inbox entry of one member.
func (s *MessageService) Conversation(ctx context.Context, adminID, userID string) (*models.InboxEntry, error) {
	userMsgs, adminMsgs, err := s.load(ctx, userID)
	if err != nil {
		return nil, err
	}
	entries := GroupInbox(userMsgs, adminMsgs, s.markers.Load(ctx, adminID), s.now().UTC())
	if len(entries) == 0 {
		entries = []models.InboxEntry{{UserID: userID, Messages: []models.ThreadMessage{}}}
	}
	s.fillIdentity(ctx, entries)
	return &entries[0], nil
}

// fillIdentity resolves name and email for threads that only hold admin
// messages, which carry no member details of their own.
func (s *MessageService) fillIdentity(ctx context.Context, entries []models.InboxEntry) {
	for i := range entries {
		e := &entries[i]
		if e.UserName != "" && e.UserEmail != "" {
			continue
		}
		user, err := s.users.FindByID(ctx, e.UserID)
		if err != nil {
			s.logger.Debug("inbox member lookup failed", zap.String("user_id", e.UserID), zap.Error(err))
			continue
		}
		if e.UserName == "" {
			e.UserName = user.DisplayName()
		}
		if e.UserEmail == "" {
			e.UserEmail = user.Email
		}
	}
}

// Reply answers a member message.
func (s *MessageService) Reply(ctx context.Context, actor Actor, id string, req models.ReplyRequest) (*models.UserMessage, error) {
	req.Reply = strings.TrimSpace(req.Reply)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "reply is required")
	}
	msg, err := s.findUserMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	at := s.now().UTC()
	if err := s.repo.Reply(ctx, id, req.Reply, actor.Email, at); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reply")
	}

	reply := req.Reply
	by := actor.Email
	msg.Reply = &reply
	msg.Status = models.UserMessageReplied
	msg.RepliedAt = &at
	msg.RepliedBy = &by
	msg.ReplyReadAt = nil
	if msg.ReadAt == nil {
		msg.ReadAt = &at
	}
	s.changed(ctx, msg.UserID, id, realtime.EventUpdated)
	return msg, nil
}

// AdminMarkRead marks a member message as read by the admins.
func (s *MessageService) AdminMarkRead(ctx context.Context, actor Actor, id string) (*models.MarkReadResult, error) {
	msg, err := s.findUserMessage(ctx, id)
	if err != nil {
		return nil, err
	}
	writeErr := s.repo.MarkUserMessageRead(ctx, id, s.now().UTC())
	return s.markResult(ctx, actor.ID, msg.UserID, models.MessageKindUser, id, writeErr)
}

// AdminDelete removes any message.
func (s *MessageService) AdminDelete(ctx context.Context, kind models.MessageKind, id string) error {
	var ownerID string
	switch kind {
	case models.MessageKindAdmin:
		msg, err := s.findAdminMessage(ctx, id)
		if err != nil {
			return err
		}
		ownerID = msg.UserID
	case models.MessageKindUser:
		msg, err := s.findUserMessage(ctx, id)
		if err != nil {
			return err
		}
		ownerID = msg.UserID
	default:
		return appErrors.Clone(appErrors.ErrValidation, "unknown message type")
	}
	return s.delete(ctx, ownerID, kind, id)
}

// SendToUser stores an admin message addressed to one member.
func (s *MessageService) SendToUser(ctx context.Context, actor Actor, userID string, req models.SendMessageRequest) (*models.AdminMessage, error) {
	req.Message = strings.TrimSpace(req.Message)
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "message is required")
	}
	if _, err := s.users.FindByID(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load user")
	}
	msg := &models.AdminMessage{
		UserID:  userID,
		Message: req.Message,
		SentBy:  actor.Email,
		SentAt:  s.now().UTC(),
	}
	if err := s.repo.CreateAdminMessage(ctx, msg); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to send message")
	}
	s.changed(ctx, userID, msg.ID, realtime.EventCreated)
	return msg, nil
}

func (s *MessageService) markResult(ctx context.Context, readerID, ownerID string, kind models.MessageKind, id string, writeErr error) (*models.MarkReadResult, error) {
	switch {
	case writeErr == nil:
		s.changed(ctx, ownerID, id, realtime.EventUpdated)
		return &models.MarkReadResult{ID: id}, nil
	case errors.Is(writeErr, sql.ErrNoRows):
		return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
	case repository.IsWriteRejected(writeErr):
		s.logger.Warn("mark read rejected by store, keeping local marker",
			zap.String("reader_id", readerID), zap.String("message_id", id), zap.Error(writeErr))
		s.metrics.RecordReadMarkerFallback()
		if err := s.markers.Mark(ctx, readerID, kind, id); err != nil {
			s.logger.Warn("failed to record read marker", zap.String("reader_id", readerID), zap.Error(err))
		}
		return &models.MarkReadResult{ID: id, Degraded: true}, nil
	default:
		return nil, appErrors.Wrap(writeErr, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark message as read")
	}
}

func (s *MessageService) delete(ctx context.Context, ownerID string, kind models.MessageKind, id string) error {
	var err error
	if kind == models.MessageKindAdmin {
		err = s.repo.DeleteAdminMessage(ctx, id)
	} else {
		err = s.repo.DeleteUserMessage(ctx, id)
	}
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete message")
	}
	s.changed(ctx, ownerID, id, realtime.EventDeleted)
	return nil
}

func (s *MessageService) load(ctx context.Context, userID string) ([]models.UserMessage, []models.AdminMessage, error) {
	userMsgs, err := s.repo.ListUserMessages(ctx, userID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load messages")
	}
	adminMsgs, err := s.repo.ListAdminMessages(ctx, userID)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load messages")
	}
	return userMsgs, adminMsgs, nil
}

func (s *MessageService) findUserMessage(ctx context.Context, id string) (*models.UserMessage, error) {
	msg, err := s.repo.FindUserMessage(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	return msg, nil
}

func (s *MessageService) findAdminMessage(ctx context.Context, id string) (*models.AdminMessage, error) {
	msg, err := s.repo.FindAdminMessage(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "message not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load message")
	}
	return msg, nil
}

func (s *MessageService) changed(ctx context.Context, userID, messageID, typ string) {
	s.cache.Forget(ctx, adminStatsCacheKey)
	publish(ctx, s.publisher, s.logger, messageEvents(userID, messageID, typ)...)
}
