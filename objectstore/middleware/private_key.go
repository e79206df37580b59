package middleware

import (
	"crypto/subtle"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/utils"
)

// PrivateKeyMiddleware admits only callers presenting the shared Private-Key
// header. Health and metrics endpoints are mounted outside of it.
func PrivateKeyMiddleware(privateKey string) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.GetHeader("Private-Key")
		if key == "" {
			utils.JSON401(c, "Private-Key header is required")
			return
		}
		if subtle.ConstantTimeCompare([]byte(key), []byte(privateKey)) != 1 {
			utils.JSON403(c, "Invalid private key")
			return
		}
		c.Next()
	}
}
