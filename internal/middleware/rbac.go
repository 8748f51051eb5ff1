package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/models"
	appErrors "github.com/ibaf-upi/ibaf-api/pkg/errors"
	"github.com/ibaf-upi/ibaf-api/pkg/response"
)

// RequireRoles enforces role-based access using the stored role of the
// session user. Token claims are only consulted when no session was loaded.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		var role models.UserRole
		if session := SessionFromContext(c); session != nil && session.User != nil {
			role = session.User.Role
		} else if claims := ClaimsFromContext(c); claims != nil {
			role = claims.Role
		} else {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if _, ok := allowed[role]; ok {
			c.Next()
			return
		}

		response.Error(c, appErrors.ErrForbidden)
		c.Abort()
	}
}
