package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/studio-agenda-api/internal/service"
)

// AuditClient copies the caller's address and user agent onto the request
// context so audit entries written by services can be traced to a client.
func AuditClient() gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := service.WithAuditClient(c.Request.Context(), service.AuditClient{
			IPAddress: c.ClientIP(),
			UserAgent: c.GetHeader("User-Agent"),
		})
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
