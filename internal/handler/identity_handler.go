package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/service"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

type identityService interface {
	DeleteIdentity(ctx context.Context, actor service.Actor, uid string) error
	CleanupOrphans(ctx context.Context, actor service.Actor) (*service.OrphanCleanupResult, error)
}

// IdentityHandler manages federated sign-in identities.
type IdentityHandler struct {
	service identityService
}

// NewIdentityHandler creates an identity handler.
func NewIdentityHandler(svc identityService) *IdentityHandler {
	return &IdentityHandler{service: svc}
}

// Delete godoc
// @Summary Delete a sign-in identity
// @Description Removes the identity from the provider. An already missing identity succeeds.
// @Tags Admin
// @Param uid path string true "Identity UID"
// @Success 204
// @Failure 503 {object} response.Envelope
// @Router /admin/identities/{uid} [delete]
func (h *IdentityHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteIdentity(c.Request.Context(), actorFromContext(c), c.Param("uid")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// CleanupOrphans godoc
// @Summary Remove orphaned identities
// @Description Deletes provider identities that have no user document
// @Tags Admin
// @Produce json
// @Success 200 {object} response.Envelope
// @Failure 503 {object} response.Envelope
// @Router /admin/identities/cleanup [post]
func (h *IdentityHandler) CleanupOrphans(c *gin.Context) {
	result, err := h.service.CleanupOrphans(c.Request.Context(), actorFromContext(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}
