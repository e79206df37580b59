package controller

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/utils"
)

type composeRequest struct {
	SourceBucket string   `json:"source_bucket" binding:"required"`
	Sources      []string `json:"sources" binding:"required,min=1,dive,required"`
	ContentType  string   `json:"content_type"`
}

// ComposeObject concatenates the listed sources, in order, into the target
// key. Used to assemble chunked uploads.
func (ctrl *Controller) ComposeObject(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")
	key := objectKey(c, "key")
	if key == "" {
		utils.JSON400(c, "object key is required")
		return
	}

	var req composeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid compose request: "+err.Error())
		return
	}
	if req.ContentType == "" {
		req.ContentType = "application/octet-stream"
	}

	started := time.Now()
	info, err := ctrl.Backend.ComposeObject(ctx, bucket, key, req.SourceBucket, req.Sources, req.ContentType)
	ctrl.Metrics.ObserveStorage("compose_object", ctrl.Backend.Name(), err, started)
	if err != nil {
		ctrl.fail(c, err, bucket, key, "compose object")
		return
	}

	ctrl.Logger.InfoWithContextf(ctx, "[ObjectStore] Composed %d parts into %s/%s (%d bytes)", len(req.Sources), bucket, key, info.Size)
	utils.JSON201(c, objectResponse{
		Bucket:      bucket,
		Key:         key,
		ETag:        utils.NormalizeETag(info.ETag),
		Size:        info.Size,
		ContentType: req.ContentType,
	})
}
