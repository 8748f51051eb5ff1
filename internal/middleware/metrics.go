package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

type requestObserver interface {
	ObserveHTTPRequest(method, path string, status int, duration time.Duration)
}

// unmatchedRoute labels requests that hit no registered route, keeping raw
// paths out of the metric labels.
const unmatchedRoute = "unmatched"

// Metrics returns middleware that records request duration and status.
// Websocket upgrades are long lived and are tracked by the realtime gauge instead.
func Metrics(observer requestObserver) gin.HandlerFunc {
	return func(c *gin.Context) {
		if observer == nil || c.IsWebsocket() {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()
		path := c.FullPath()
		if path == "" {
			path = unmatchedRoute
		}
		observer.ObserveHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
