package route

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/objectstore/controller"
	"github.com/tnqbao/gau-platform/objectstore/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(ctrl.Metrics.GinMiddleware())

	r.GET("/healthz", ctrl.Health)
	r.GET("/metrics", ctrl.Metrics.Handler())

	internal := r.Group("/internal/v1")
	{
		internal.Use(middleware.PrivateKeyMiddleware(ctrl.Config.EnvConfig.PrivateKey))

		internal.PUT("/buckets/:bucket", ctrl.CreateBucket)
		internal.DELETE("/buckets/:bucket", ctrl.DeleteBucket)

		internal.PUT("/objects/:bucket/*key", ctrl.PutObject)
		internal.GET("/objects/:bucket/*key", ctrl.GetObject)
		internal.HEAD("/objects/:bucket/*key", ctrl.GetObject)
		internal.DELETE("/objects/:bucket/*key", ctrl.DeleteObject)

		internal.DELETE("/prefixes/:bucket/*prefix", ctrl.DeletePrefix)
		internal.POST("/compose/:bucket/*key", ctrl.ComposeObject)
	}
	return r
}
