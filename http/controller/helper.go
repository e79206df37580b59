package controller

import (
	"context"
	"errors"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/utils"
)

// paramUUID parses a path parameter, writing a 400 when it is malformed.
func paramUUID(c *gin.Context, name string) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param(name))
	if err != nil {
		utils.JSONError(c, apperror.InvalidInput(name, "must be a valid UUID"))
		return uuid.Nil, false
	}
	return id, true
}

func currentUser(c *gin.Context) (uuid.UUID, bool) {
	userID, err := utils.GetUserIDFromContext(c)
	if err != nil {
		utils.JSONError(c, err)
		return uuid.Nil, false
	}
	return userID, true
}

// ownedBucket loads the bucket in :id and checks it belongs to the caller.
// Buckets owned by someone else are reported as missing.
func (ctrl *Controller) ownedBucket(c *gin.Context) (*entity.Bucket, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	bucketID, ok := paramUUID(c, "id")
	if !ok {
		return nil, uuid.Nil, false
	}
	bucket, err := ctrl.Repository.BucketRepo.FindOwned(bucketID, userID)
	if err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to load bucket %s", bucketID)
		return nil, uuid.Nil, false
	}
	return bucket, userID, true
}

// respondError logs server-side failures and renders err. Client errors
// are not logged at error level.
func (ctrl *Controller) respondError(c *gin.Context, err error, format string, args ...interface{}) {
	ctx := c.Request.Context()
	appErr := apperror.As(err)
	if appErr.HTTPStatus >= 500 {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, format, args...)
	} else {
		ctrl.Infra.Logger.DebugWithContextf(ctx, format+": %v", append(args, err)...)
	}
	utils.JSONError(c, appErr)
}

func contextWithTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, d)
}

// transferError maps the failure of a streamed transfer run under ctx.
// cancelled is the cause the transfer registry sets on explicit cancels.
func transferError(ctx context.Context, err error, uploadID string, cancelled error) error {
	if cause := context.Cause(ctx); cause != nil && errors.Is(cause, cancelled) {
		return apperror.TransferCancelled(uploadID).WithCause(err)
	}
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.Timeout("upload").WithCause(err)
	}
	if errors.Is(err, context.Canceled) {
		return apperror.TransferCancelled(uploadID).WithCause(err)
	}
	return err
}
