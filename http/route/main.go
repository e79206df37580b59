package routes

import (
	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/http/controller"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	middlewares "github.com/tnqbao/gau-platform/http/middleware"
)

func SetupRouter(ctrl *controller.Controller) *gin.Engine {
	if err := dto.RegisterValidators(); err != nil {
		panic(err)
	}

	r := gin.New()
	r.Use(gin.Recovery(), ctrl.Metrics.GinMiddleware())
	middles, err := middlewares.NewMiddlewares(ctrl)
	if err != nil {
		panic(err)
	}
	r.Use(middles.CORSMiddleware)

	r.GET("/healthz", ctrl.Health)
	r.GET("/metrics", ctrl.Metrics.Handler())

	publicRoutes := r.Group("/public")
	{
		publicRoutes.GET("/:owner_id/:bucket/*path", ctrl.PublicDownload)
		publicRoutes.HEAD("/:owner_id/:bucket/*path", ctrl.PublicDownload)
	}

	r.POST("/hooks/:id", ctrl.ReceiveWebhook)

	apiRoutes := r.Group("/api/v1")
	{
		apiRoutes.Use(middles.AuthMiddleware)

		bucketRoutes := apiRoutes.Group("/buckets")
		{
			bucketRoutes.POST("", ctrl.CreateBucket)
			bucketRoutes.GET("", ctrl.ListBuckets)
			bucketRoutes.GET("/:id", ctrl.GetBucket)
			bucketRoutes.PATCH("/:id", ctrl.UpdateBucket)
			bucketRoutes.DELETE("/:id", ctrl.DeleteBucketByID)

			bucketRoutes.POST("/:id/files", ctrl.UploadFile)
			bucketRoutes.GET("/:id/files", ctrl.ListFiles)

			bucketRoutes.POST("/:id/uploads", ctrl.InitChunkedUpload)
			bucketRoutes.GET("/:id/uploads/:upload_id", ctrl.GetUploadProgress)
			bucketRoutes.DELETE("/:id/uploads/:upload_id", ctrl.AbortChunkedUpload)
			bucketRoutes.PUT("/:id/uploads/:upload_id/chunks/:index", ctrl.UploadChunk)
			bucketRoutes.POST("/:id/uploads/:upload_id/complete", ctrl.CompleteChunkedUpload)
		}

		fileRoutes := apiRoutes.Group("/files")
		{
			fileRoutes.DELETE("/uploads/:upload_id", ctrl.CancelUpload)
			fileRoutes.GET("/:id", ctrl.GetFile)
			fileRoutes.DELETE("/:id", ctrl.DeleteFile)
			fileRoutes.GET("/:id/download", ctrl.DownloadFile)
			fileRoutes.HEAD("/:id/download", ctrl.DownloadFile)
		}

		functionRoutes := apiRoutes.Group("/functions")
		{
			functionRoutes.POST("", ctrl.CreateFunction)
			functionRoutes.GET("", ctrl.ListFunctions)
			functionRoutes.GET("/:id", ctrl.GetFunction)
			functionRoutes.PUT("/:id", ctrl.UpdateFunction)
			functionRoutes.DELETE("/:id", ctrl.DeleteFunction)
			functionRoutes.POST("/:id/deploy", ctrl.DeployFunction)
			functionRoutes.POST("/:id/undeploy", ctrl.UndeployFunction)
			functionRoutes.POST("/:id/invoke", ctrl.InvokeFunction)
			functionRoutes.GET("/:id/executions", ctrl.ListExecutions)
			functionRoutes.GET("/:id/logs", ctrl.ListFunctionLogs)
		}

		webhookRoutes := apiRoutes.Group("/webhooks")
		{
			webhookRoutes.POST("", ctrl.CreateWebhook)
			webhookRoutes.GET("", ctrl.ListWebhooks)
			webhookRoutes.GET("/:id", ctrl.GetWebhook)
			webhookRoutes.PATCH("/:id", ctrl.UpdateWebhook)
			webhookRoutes.DELETE("/:id", ctrl.DeleteWebhook)
			webhookRoutes.POST("/:id/rotate-secret", ctrl.RotateWebhookSecret)
			webhookRoutes.GET("/:id/deliveries", ctrl.ListWebhookDeliveries)
		}

		apiKeyRoutes := apiRoutes.Group("/api-keys")
		{
			apiKeyRoutes.POST("", ctrl.CreateAPIKey)
			apiKeyRoutes.GET("", ctrl.ListAPIKeys)
			apiKeyRoutes.DELETE("/:id", ctrl.RevokeAPIKey)
		}
	}
	return r
}
