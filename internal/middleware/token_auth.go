package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"

	"accelo-slack-notifier/internal/log"
)

// WebhookTokenMiddleware drops webhook calls whose token query parameter does
// not match the shared secret. A mismatch is answered exactly like a handled
// call, 200 with an empty JSON object, so the response says nothing about the
// secret.
func WebhookTokenMiddleware(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := c.Query("token")
		if secret == "" || subtle.ConstantTimeCompare([]byte(token), []byte(secret)) != 1 {
			log.Warn(c.Request.Context(), "Dropping webhook with invalid token",
				"has_token", token != "",
				"app", c.Query("app"),
				"type", c.Query("type"),
			)
			c.AbortWithStatusJSON(http.StatusOK, gin.H{})
			return
		}
		c.Next()
	}
}
