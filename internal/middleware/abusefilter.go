package middleware

import (
	"net/http"

	"github.com/boostgw/boostgw/internal/filter"
	"github.com/gin-gonic/gin"
)

// AbuseFilter rejects requests matching the abuse heuristics with a 403
// before the body is ever read, so filter rejection takes precedence over
// validation errors.
func AbuseFilter(f *filter.Filter) gin.HandlerFunc {
	return func(c *gin.Context) {
		ua := c.GetHeader("User-Agent")
		ip := c.ClientIP()

		verdict := f.Check(ua, ip)
		if !verdict.Allowed {
			c.JSON(http.StatusForbidden, gin.H{
				"error": "Access denied",
			})
			c.Abort()
			return
		}

		c.Next()
	}
}
