package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/middleware"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	"github.com/ibaf-upi/ibaf-api/internal/service"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	return middleware.ClaimsFromContext(c)
}

// requireSession writes 401 and returns nil when no session was loaded.
func requireSession(c *gin.Context) *models.Session {
	session := middleware.SessionFromContext(c)
	if session == nil || session.User == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return nil
	}
	return session
}

// actorFromContext describes the admin behind the request for audit trails.
func actorFromContext(c *gin.Context) service.Actor {
	actor := service.ActorFromSession(middleware.SessionFromContext(c))
	actor.IP = c.ClientIP()
	actor.Agent = c.GetHeader("User-Agent")
	return actor
}

func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	if err := c.ShouldBindJSON(dest); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
		return false
	}
	return true
}
