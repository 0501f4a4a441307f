package mw

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// DeviceAuth authenticates the field device with a single shared-secret
// bearer token. Adequate for a single-device deployment; a multi-device
// setup would need per-device credentials.
func DeviceAuth(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		presented, ok := strings.CutPrefix(header, "Bearer ")
		if !ok || token == "" ||
			subtle.ConstantTimeCompare([]byte(presented), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
				"error":   "auth_error",
				"message": "missing or invalid device token",
			})
			return
		}
		c.Next()
	}
}
