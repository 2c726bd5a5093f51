package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

// DeviceAuthMiddleware creates middleware for scanner device API key
// authentication. hashKey must hash the presented key the same way
// registration hashed the stored one.
func DeviceAuthMiddleware(getAPIKeyHash func(deviceID string) (string, error), hashKey func(string) string) gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := c.GetHeader("X-Device-ID")
		apiKey := c.GetHeader("X-API-Key")

		if deviceID == "" || apiKey == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing credentials"})
			c.Abort()
			return
		}

		expectedHash, err := getAPIKeyHash(deviceID)
		if err != nil {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			c.Abort()
			return
		}

		presented := hashKey(apiKey)
		if subtle.ConstantTimeCompare([]byte(presented), []byte(expectedHash)) != 1 {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid credentials"})
			c.Abort()
			return
		}

		c.Set("device_id", deviceID)
		c.Next()
	}
}
