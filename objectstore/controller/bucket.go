package controller

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/utils"
)

func (ctrl *Controller) CreateBucket(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")

	var quota int64
	if raw := c.GetHeader("X-Quota-Bytes"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			utils.JSON400(c, "X-Quota-Bytes must be a non-negative integer")
			return
		}
		quota = parsed
	}

	started := time.Now()
	err := ctrl.Backend.EnsureBucket(ctx, bucket, quota)
	ctrl.Metrics.ObserveStorage("create_bucket", ctrl.Backend.Name(), err, started)
	if err != nil {
		ctrl.fail(c, err, bucket, "", "create bucket")
		return
	}

	ctrl.Logger.InfoWithContextf(ctx, "[ObjectStore] Bucket %s ready (quota %d bytes)", bucket, quota)
	utils.JSON201(c, gin.H{"bucket": bucket})
}

func (ctrl *Controller) DeleteBucket(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")

	started := time.Now()
	err := ctrl.Backend.DeleteBucket(ctx, bucket)
	ctrl.Metrics.ObserveStorage("delete_bucket", ctrl.Backend.Name(), err, started)
	if err != nil {
		ctrl.fail(c, err, bucket, "", "delete bucket")
		return
	}

	ctrl.Logger.InfoWithContextf(ctx, "[ObjectStore] Bucket %s deleted", bucket)
	utils.JSON200(c, gin.H{"bucket": bucket, "deleted": true})
}

func (ctrl *Controller) DeletePrefix(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")
	prefix := objectKey(c, "prefix")

	started := time.Now()
	deleted, err := ctrl.Backend.DeletePrefix(ctx, bucket, prefix)
	ctrl.Metrics.ObserveStorage("delete_prefix", ctrl.Backend.Name(), err, started)
	if err != nil {
		ctrl.fail(c, err, bucket, prefix, "delete prefix")
		return
	}

	ctrl.Logger.InfoWithContextf(ctx, "[ObjectStore] Deleted %d objects under %s/%s", deleted, bucket, prefix)
	utils.JSON200(c, gin.H{"bucket": bucket, "prefix": prefix, "deleted": deleted})
}
