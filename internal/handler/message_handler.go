package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

type messageService interface {
	Thread(ctx context.Context, userID string) (*models.MemberThread, error)
	Send(ctx context.Context, user *models.User, req models.SendMessageRequest) (*models.UserMessage, error)
	MemberMarkRead(ctx context.Context, userID string, kind models.MessageKind, id string) (*models.MarkReadResult, error)
	MemberDelete(ctx context.Context, userID string, kind models.MessageKind, id string) error
	Inbox(ctx context.Context, adminID string) ([]models.InboxEntry, error)
	Conversation(ctx context.Context, adminID, userID string) (*models.InboxEntry, error)
	Reply(ctx context.Context, actor service.Actor, id string, req models.ReplyRequest) (*models.UserMessage, error)
	AdminMarkRead(ctx context.Context, actor service.Actor, id string) (*models.MarkReadResult, error)
	AdminDelete(ctx context.Context, kind models.MessageKind, id string) error
	SendToUser(ctx context.Context, actor service.Actor, userID string, req models.SendMessageRequest) (*models.AdminMessage, error)
}

// MessageHandler serves the member thread and the admin inbox.
type MessageHandler struct {
	service messageService
}

// NewMessageHandler creates a message handler.
func NewMessageHandler(svc messageService) *MessageHandler {
	return &MessageHandler{service: svc}
}

// Thread godoc
// @Summary Own message thread
// @Description Both directions merged newest first, with the unread count
// @Tags Messages
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/messages [get]
func (h *MessageHandler) Thread(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	thread, err := h.service.Thread(c.Request.Context(), session.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, thread, nil)
}

// Send godoc
// @Summary Message the admins
// @Tags Messages
// @Accept json
// @Produce json
// @Param payload body models.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/messages [post]
func (h *MessageHandler) Send(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var req models.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}

	msg, err := h.service.Send(c.Request.Context(), session.User, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, msg)
}

// MarkRead godoc
// @Summary Mark a message read
// @Description kind is "admin" for admin messages or "user" for the reply on an own message
// @Tags Messages
// @Produce json
// @Param kind path string true "admin or user"
// @Param id path string true "Message ID"
// @Success 200 {object} response.Envelope
// @Router /me/messages/{kind}/{id}/read [post]
func (h *MessageHandler) MarkRead(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	result, err := h.service.MemberMarkRead(c.Request.Context(), session.User.ID, models.MessageKind(c.Param("kind")), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// Delete godoc
// @Summary Delete an own message
// @Tags Messages
// @Param kind path string true "admin or user"
// @Param id path string true "Message ID"
// @Success 204
// @Router /me/messages/{kind}/{id} [delete]
func (h *MessageHandler) Delete(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	if err := h.service.MemberDelete(c.Request.Context(), session.User.ID, models.MessageKind(c.Param("kind")), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// Inbox godoc
// @Summary Admin inbox
// @Description Conversations grouped by member, most recent activity first
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/conversations [get]
func (h *MessageHandler) Inbox(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	entries, err := h.service.Inbox(c.Request.Context(), session.User.ID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entries, nil)
}

// Conversation godoc
// @Summary Conversation with one member
// @Tags Admin
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/conversations/{userId} [get]
func (h *MessageHandler) Conversation(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	entry, err := h.service.Conversation(c.Request.Context(), session.User.ID, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, entry, nil)
}

// Reply godoc
// @Summary Reply to a member message
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User message ID"
// @Param payload body models.ReplyRequest true "Reply"
// @Success 200 {object} response.Envelope
// @Router /admin/messages/{id}/reply [post]
func (h *MessageHandler) Reply(c *gin.Context) {
	var req models.ReplyRequest
	if !bindJSON(c, &req, "invalid reply payload") {
		return
	}

	msg, err := h.service.Reply(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, msg, nil)
}

// AdminMarkRead godoc
// @Summary Mark a member message read
// @Tags Admin
// @Produce json
// @Param id path string true "User message ID"
// @Success 200 {object} response.Envelope
// @Router /admin/messages/{id}/read [post]
func (h *MessageHandler) AdminMarkRead(c *gin.Context) {
	result, err := h.service.AdminMarkRead(c.Request.Context(), actorFromContext(c), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// AdminDelete godoc
// @Summary Delete any message
// @Tags Admin
// @Param kind path string true "admin or user"
// @Param id path string true "Message ID"
// @Success 204
// @Router /admin/messages/{kind}/{id} [delete]
func (h *MessageHandler) AdminDelete(c *gin.Context) {
	if err := h.service.AdminDelete(c.Request.Context(), models.MessageKind(c.Param("kind")), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}

	response.NoContent(c)
}

// SendToUser godoc
// @Summary Message a member
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.SendMessageRequest true "Message"
// @Success 201 {object} response.Envelope
// @Router /admin/users/{id}/messages [post]
func (h *MessageHandler) SendToUser(c *gin.Context) {
	var req models.SendMessageRequest
	if !bindJSON(c, &req, "invalid message payload") {
		return
	}

	msg, err := h.service.SendToUser(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, msg)
}
