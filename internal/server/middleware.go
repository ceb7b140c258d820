package server

import (
	"strings"

	"github.com/gin-gonic/gin"
)

const contextDeviceIDKey = "device_id"

// RequireDeviceID rejects blank :deviceId path segments and stores the trimmed id.
func RequireDeviceID() gin.HandlerFunc {
	return func(c *gin.Context) {
		deviceID := strings.TrimSpace(c.Param("deviceId"))
		if deviceID == "" {
			AbortWithError(c, newValidationError("deviceId", "invalid_device_id", "invalid device id"))
			return
		}
		c.Set(contextDeviceIDKey, deviceID)
		c.Next()
	}
}

func deviceIDFrom(c *gin.Context) string {
	return c.GetString(contextDeviceIDKey)
}
