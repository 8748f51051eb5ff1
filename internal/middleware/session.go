package middleware

import (
	"context"
	"database/sql"
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/lifecycle"
	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

// ContextSessionKey is the gin context key storing the request session.
const ContextSessionKey = "currentSession"

type sessionUserLoader interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// Session loads the stored user document behind the token claims and
// evaluates its view. Role, ban and verification state always come from the
// stored document, never from the token.
func Session(users sessionUserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := ClaimsFromContext(c)
		if claims == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		user, err := users.FindByID(c.Request.Context(), claims.UserID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "account no longer exists"))
			} else {
				response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load session"))
			}
			c.Abort()
			return
		}

		c.Set(ContextSessionKey, &models.Session{
			Claims: claims,
			User:   user,
			View:   lifecycle.Evaluate(user),
		})
		c.Next()
	}
}

// RequireView allows the request only when the session view is one of kinds.
func RequireView(kinds ...models.ViewKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFromContext(c)
		if session == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if session.View.Kind == models.ViewBanned {
			response.Error(c, appErrors.ErrBanned)
			c.Abort()
			return
		}
		if !lifecycle.Allows(session.View, kinds...) {
			response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "not available for the current account state"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// NotBanned rejects banned accounts and lets every other view through.
func NotBanned() gin.HandlerFunc {
	return func(c *gin.Context) {
		session := SessionFromContext(c)
		if session == nil {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if session.View.Kind == models.ViewBanned {
			response.Error(c, appErrors.ErrBanned)
			c.Abort()
			return
		}
		c.Next()
	}
}

// ClaimsFromContext returns the verified token claims, if any.
func ClaimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil
	}
	claims, _ := value.(*models.JWTClaims)
	return claims
}

// SessionFromContext returns the session loaded by Session, if any.
func SessionFromContext(c *gin.Context) *models.Session {
	value, exists := c.Get(ContextSessionKey)
	if !exists {
		return nil
	}
	session, _ := value.(*models.Session)
	return session
}
