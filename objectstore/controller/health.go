package controller

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

func (ctrl *Controller) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 3*time.Second)
	defer cancel()

	if err := ctrl.Backend.Ping(ctx); err != nil {
		ctrl.Logger.WarningWithContextf(ctx, "[ObjectStore] Health check failed: %v", err)
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "backend": ctrl.Backend.Name()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok", "backend": ctrl.Backend.Name()})
}
