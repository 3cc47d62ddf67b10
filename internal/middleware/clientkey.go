package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
)

// ContextClientKey is the gin context key holding the rate-limit scope of
// the request.
const ContextClientKey = "client_key"

// ClientKey derives the key that scopes cooldowns and abuse tracking: a
// client-supplied identifier when present, the source IP otherwise. No
// identity behind it; trivially spoofable.
func ClientKey(idHeader string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := ""
		if idHeader != "" {
			key = strings.TrimSpace(c.GetHeader(idHeader))
		}
		if key == "" {
			key = c.ClientIP()
		}

		c.Set(ContextClientKey, key)
		c.Next()
	}
}

// GetClientKey reads the key set by ClientKey, falling back to the IP.
func GetClientKey(c *gin.Context) string {
	if key := c.GetString(ContextClientKey); key != "" {
		return key
	}
	return c.ClientIP()
}
