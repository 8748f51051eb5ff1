package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
)

const (
	responseMetaKey = "responseMeta"
	metaStartedKey  = "responseMetaStarted"
	cacheHitField   = "cache_hit"
	processingField = "processing_time_ms"
)

// WithResponseMeta lets handlers attach envelope metadata such as cache hits.
func WithResponseMeta() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(metaStartedKey, time.Now())
		c.Set(responseMetaKey, map[string]interface{}{})
		c.Next()
	}
}

// SetCacheHit records whether the payload came from cache.
func SetCacheHit(c *gin.Context, hit bool) {
	meta := ensureMeta(c)
	if meta != nil {
		meta[cacheHitField] = hit
	}
}

// ExtractMeta returns the metadata collected so far, stamped with the elapsed
// handler time. It returns nil when the route does not carry metadata.
func ExtractMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	raw, ok := c.Get(responseMetaKey)
	if !ok {
		return nil
	}
	meta, ok := raw.(map[string]interface{})
	if !ok {
		return nil
	}
	if started, ok := c.Get(metaStartedKey); ok {
		if at, ok := started.(time.Time); ok {
			meta[processingField] = time.Since(at).Milliseconds()
		}
	}
	return meta
}

func ensureMeta(c *gin.Context) map[string]interface{} {
	if c == nil {
		return nil
	}
	if raw, ok := c.Get(responseMetaKey); ok {
		if meta, ok := raw.(map[string]interface{}); ok {
			return meta
		}
	}
	meta := map[string]interface{}{}
	c.Set(responseMetaKey, meta)
	return meta
}
