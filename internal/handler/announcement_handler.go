package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

type announcementService interface {
	List(ctx context.Context, activeOnly bool) ([]models.Announcement, error)
	Create(ctx context.Context, actor service.Actor, req models.AnnouncementRequest) (*models.Announcement, error)
	Update(ctx context.Context, id string, req models.AnnouncementRequest) (*models.Announcement, error)
	Delete(ctx context.Context, id string) error
}

// AnnouncementHandler serves announcements.
type AnnouncementHandler struct {
	service announcementService
}

// NewAnnouncementHandler creates an announcement handler.
func NewAnnouncementHandler(svc announcementService) *AnnouncementHandler {
	return &AnnouncementHandler{service: svc}
}

// List godoc
// @Summary Active announcements
// @Tags Announcements
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /announcements [get]
func (h *AnnouncementHandler) List(c *gin.Context) {
	h.list(c, true)
}

// AdminList godoc
// @Summary All announcements
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/announcements [get]
func (h *AnnouncementHandler) AdminList(c *gin.Context) {
	h.list(c, false)
}

func (h *AnnouncementHandler) list(c *gin.Context, activeOnly bool) {
	items, err := h.service.List(c.Request.Context(), activeOnly)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, nil)
}

// Create godoc
// @Summary Create announcement
// @Tags Admin
// @Accept json
// @Produce json
// @Param payload body models.AnnouncementRequest true "Announcement"
// @Success 201 {object} response.Envelope
// @Router /admin/announcements [post]
func (h *AnnouncementHandler) Create(c *gin.Context) {
	var req models.AnnouncementRequest
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}

	item, err := h.service.Create(c.Request.Context(), actorFromContext(c), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, item)
}

// Update godoc
// @Summary Update announcement
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "Announcement ID"
// @Param payload body models.AnnouncementRequest true "Announcement"
// @Success 200 {object} response.Envelope
// @Router /admin/announcements/{id} [put]
func (h *AnnouncementHandler) Update(c *gin.Context) {
	var req models.AnnouncementRequest
	if !bindJSON(c, &req, "invalid announcement payload") {
		return
	}

	item, err := h.service.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, item, nil)
}

// Delete godoc
// @Summary Delete announcement
// @Tags Admin
// @Param id path string true "Announcement ID"
// @Success 204
// @Router /admin/announcements/{id} [delete]
func (h *AnnouncementHandler) Delete(c *gin.Context) {
	if err := h.service.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
