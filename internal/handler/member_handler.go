package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/lifecycle"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

type memberService interface {
	Access(session *models.Session) (*service.AccessResult, error)
	SubmitVerification(ctx context.Context, session *models.Session, form lifecycle.VerificationForm) (*service.AccessResult, error)
	UpdateProfile(ctx context.Context, session *models.Session, req service.ProfileRequest) (*models.User, error)
}

// MemberHandler serves the member's own account endpoints.
type MemberHandler struct {
	service memberService
}

// NewMemberHandler creates a member handler.
func NewMemberHandler(svc memberService) *MemberHandler {
	return &MemberHandler{service: svc}
}

// Access godoc
// @Summary Current access view
// @Description Returns the stored account document and the view it routes to
// @Tags Me
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Router /me/access [get]
func (h *MemberHandler) Access(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	result, err := h.service.Access(session)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// SubmitVerification godoc
// @Summary Submit verification
// @Description Submit or resubmit the membership verification form
// @Tags Me
// @Accept json
// @Produce json
// @Param payload body lifecycle.VerificationForm true "Verification form"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /me/verification [post]
func (h *MemberHandler) SubmitVerification(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var form lifecycle.VerificationForm
	if !bindJSON(c, &form, "invalid verification payload") {
		return
	}

	result, err := h.service.SubmitVerification(c.Request.Context(), session, form)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, result, nil)
}

// UpdateProfile godoc
// @Summary Update profile
// @Description Update the member's display name
// @Tags Me
// @Accept json
// @Produce json
// @Param payload body service.ProfileRequest true "Profile"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /me/profile [put]
func (h *MemberHandler) UpdateProfile(c *gin.Context) {
	session := requireSession(c)
	if session == nil {
		return
	}

	var req service.ProfileRequest
	if !bindJSON(c, &req, "invalid profile payload") {
		return
	}

	user, err := h.service.UpdateProfile(c.Request.Context(), session, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.JSON(c, http.StatusOK, user, nil)
}
