package controller

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/objectstore/backend"
	"github.com/tnqbao/gau-platform/utils"
)

// objectKey returns the wildcard key without its leading slash. gin has
// already unescaped the path segments.
func objectKey(c *gin.Context, param string) string {
	return strings.TrimPrefix(c.Param(param), "/")
}

// translateBackendError maps backend sentinels to the codes the storage
// client expects.
func translateBackendError(err error, bucket, key string) error {
	switch {
	case errors.Is(err, backend.ErrBucketNotFound):
		return apperror.BucketNotFound(bucket).WithCause(err)
	case errors.Is(err, backend.ErrObjectNotFound):
		return apperror.FileNotFound(key).WithCause(err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperror.Timeout("storage").WithCause(err)
	case errors.Is(err, context.Canceled):
		return apperror.TransferCancelled("").WithCause(err)
	}
	if appErr := apperror.As(err); appErr.Code != apperror.ErrCodeInternal {
		return appErr
	}
	return apperror.StorageUnavailable(err)
}

func (ctrl *Controller) fail(c *gin.Context, err error, bucket, key, operation string) {
	mapped := translateBackendError(err, bucket, key)
	if appErr := apperror.As(mapped); appErr.HTTPStatus >= 500 {
		ctrl.Logger.ErrorWithContextf(c.Request.Context(), err, "[ObjectStore] %s %s/%s failed", operation, bucket, key)
	}
	utils.JSONError(c, mapped)
}
