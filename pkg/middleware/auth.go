package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/gin-gonic/gin"
)

const SensorIDKey = "sensor_id"

// SensorTokenMiddleware admits requests carrying the shared sensor token.
// The reporting node identifies itself with X-Sensor-ID.
func SensorTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Sensor-Token")
		if got == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "missing token"})
			return
		}
		if subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid token"})
			return
		}
		if id := c.GetHeader("X-Sensor-ID"); id != "" {
			c.Set(SensorIDKey, id)
		}
		c.Next()
	}
}
