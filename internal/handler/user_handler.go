package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/middleware"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

type userService interface {
	List(ctx context.Context, filter models.UserFilter) (*service.UserListResult, *models.Pagination, error)
	Get(ctx context.Context, id string) (*models.User, error)
	Stats(ctx context.Context) (*models.AdminStats, bool, error)
	Approve(ctx context.Context, actor service.Actor, id string, req service.ReviewRequest) (*models.User, error)
	Reject(ctx context.Context, actor service.Actor, id string, req service.RejectRequest) (*models.User, error)
	Ban(ctx context.Context, actor service.Actor, id string) (*models.User, error)
	Unban(ctx context.Context, actor service.Actor, id string) (*models.User, error)
	SetActive(ctx context.Context, actor service.Actor, id string, req service.SetActiveRequest) (*models.User, error)
	Delete(ctx context.Context, actor service.Actor, id string, req service.DeleteUserRequest) (*service.DeleteUserResult, error)
}

// UserHandler handles admin user management endpoints.
type UserHandler struct {
	service userService
}

// NewUserHandler creates a new user handler.
func NewUserHandler(svc userService) *UserHandler {
	return &UserHandler{service: svc}
}

// List godoc
// @Summary List users
// @Description List users by verification tab with pagination and per-tab counts
// @Tags Admin
// @Produce json
// @Param tab query string false "all, approved, pending, rejected, not_submitted"
// @Param page query int false "Page number"
// @Param page_size query int false "Page size"
// @Param role query string false "Role filter"
// @Param search query string false "Search name, email or NIM"
// @Param sort_by query string false "Sort by"
// @Param sort_order query string false "Sort order"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /admin/users [get]
func (h *UserHandler) List(c *gin.Context) {
	filter := models.UserFilter{Tab: models.UserStatusTab(c.DefaultQuery("tab", string(models.UserTabAll)))}

	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("page_size", "20")); err == nil {
		filter.PageSize = size
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filter.Role = &r
	}

	filter.Search = c.Query("search")
	filter.SortBy = c.Query("sort_by")
	filter.SortOrder = c.Query("sort_order")

	result, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, pagination)
}

// Get godoc
// @Summary Get user
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /admin/users/{id} [get]
func (h *UserHandler) Get(c *gin.Context) {
	user, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}

// Stats godoc
// @Summary Dashboard counters
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /admin/stats [get]
func (h *UserHandler) Stats(c *gin.Context) {
	stats, hit, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	middleware.SetCacheHit(c, hit)
	response.JSON(c, http.StatusOK, stats, nil, middleware.ExtractMeta(c))
}

// Approve godoc
// @Summary Approve a pending member
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.ReviewRequest false "Review"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/users/{id}/approve [post]
func (h *UserHandler) Approve(c *gin.Context) {
	var req service.ReviewRequest
	if c.Request.ContentLength > 0 && !bindJSON(c, &req, "invalid review payload") {
		return
	}
	h.respondUser(c)(h.service.Approve(c.Request.Context(), actorFromContext(c), c.Param("id"), req))
}

// Reject godoc
// @Summary Reject a pending member
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.RejectRequest true "Reason"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/users/{id}/reject [post]
func (h *UserHandler) Reject(c *gin.Context) {
	var req service.RejectRequest
	if !bindJSON(c, &req, "invalid reject payload") {
		return
	}
	h.respondUser(c)(h.service.Reject(c.Request.Context(), actorFromContext(c), c.Param("id"), req))
}

// Ban godoc
// @Summary Ban a member
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/ban [post]
func (h *UserHandler) Ban(c *gin.Context) {
	h.respondUser(c)(h.service.Ban(c.Request.Context(), actorFromContext(c), c.Param("id")))
}

// Unban godoc
// @Summary Lift a ban
// @Tags Admin
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/unban [post]
func (h *UserHandler) Unban(c *gin.Context) {
	h.respondUser(c)(h.service.Unban(c.Request.Context(), actorFromContext(c), c.Param("id")))
}

// SetActive godoc
// @Summary Toggle isActive
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.SetActiveRequest true "Active flag"
// @Success 200 {object} response.Envelope
// @Router /admin/users/{id}/active [put]
func (h *UserHandler) SetActive(c *gin.Context) {
	var req service.SetActiveRequest
	if !bindJSON(c, &req, "invalid payload") {
		return
	}
	h.respondUser(c)(h.service.SetActive(c.Request.Context(), actorFromContext(c), c.Param("id"), req))
}

// Delete godoc
// @Summary Hard delete a member
// @Description Removes the member and all their data. Requires the confirmation word HAPUS.
// @Tags Admin
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body service.DeleteUserRequest true "Confirmation"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /admin/users/{id} [delete]
func (h *UserHandler) Delete(c *gin.Context) {
	var req service.DeleteUserRequest
	if !bindJSON(c, &req, "confirmation required") {
		return
	}

	result, err := h.service.Delete(c.Request.Context(), actorFromContext(c), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

func (h *UserHandler) respondUser(c *gin.Context) func(*models.User, error) {
	return func(user *models.User, err error) {
		if err != nil {
			response.Error(c, err)
			return
		}
		response.JSON(c, http.StatusOK, user, nil)
	}
}
