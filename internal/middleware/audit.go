package middleware

import (
	"context"
	"encoding/json"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/ibaf-upi/ibaf-api/internal/models"
)

type auditWriter interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// Audit records an audit log entry after a successful admin write.
func Audit(repo auditWriter, action, resource string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now().UTC()
		c.Next()

		if repo == nil || c.Writer.Status() >= 400 {
			return
		}

		var userID *string
		if claims := ClaimsFromContext(c); claims != nil {
			id := claims.UserID
			userID = &id
		}
		resourceID := auditTarget(c)

		entry := map[string]interface{}{
			"path":    c.FullPath(),
			"method":  c.Request.Method,
			"status":  c.Writer.Status(),
			"latency": time.Since(start).Milliseconds(),
		}
		if session := SessionFromContext(c); session != nil && session.User != nil {
			entry["actor_email"] = session.User.Email
		}
		body, _ := json.Marshal(entry)

		_ = repo.CreateAuditLog(c.Request.Context(), &models.AuditLog{
			UserID:     userID,
			Action:     action,
			Resource:   resource,
			ResourceID: resourceID,
			NewValues:  body,
			IPAddress:  c.ClientIP(),
			UserAgent:  c.GetHeader("User-Agent"),
		})
	}
}

// auditTarget picks the affected record from the route params.
func auditTarget(c *gin.Context) *string {
	for _, key := range []string{"id", "userId", "uid"} {
		if id := c.Param(key); id != "" {
			return &id
		}
	}
	return nil
}
