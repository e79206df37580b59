package controller

import (
	"encoding/json"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/repository"
	"github.com/tnqbao/gau-platform/utils"
	"gorm.io/datatypes"
)

type bucketResponse struct {
	entity.Bucket
	UsageBytes int64 `json:"usage_bytes"`
	FileCount  int64 `json:"file_count"`
}

func mimeTypesJSON(types []string) datatypes.JSON {
	if len(types) == 0 {
		return nil
	}
	raw, _ := json.Marshal(types)
	return datatypes.JSON(raw)
}

func (ctrl *Controller) CreateBucket(c *gin.Context) {
	ctx := c.Request.Context()
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	var req dto.CreateBucketRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Bucket] Failed to bind JSON: %v", err)
		utils.JSON400(c, "Invalid request payload: "+err.Error())
		return
	}

	if _, err := ctrl.Repository.BucketRepo.FindByOwnerAndName(userID, req.Name); err == nil {
		utils.JSONError(c, apperror.BucketAlreadyExists(req.Name))
		return
	} else if !apperror.HasCode(err, apperror.ErrCodeBucketNotFound) {
		ctrl.respondError(c, err, "[Bucket] Failed to check bucket name %s", req.Name)
		return
	}

	bucket := &entity.Bucket{
		ID:               uuid.New(),
		OwnerID:          userID,
		Name:             req.Name,
		Public:           req.Public,
		FileSizeLimit:    req.FileSizeLimit,
		AllowedMimeTypes: mimeTypesJSON(req.AllowedMimeTypes),
		QuotaBytes:       req.QuotaBytes,
	}
	bucket.StorageName = entity.StorageNameFor(bucket.ID)

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Bucket] Creating bucket '%s' (%s) for user_id: %s", bucket.Name, bucket.StorageName, userID)

	if err := ctrl.Infra.StorageService.CreateBucket(ctx, bucket.StorageName, bucket.QuotaBytes); err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to provision storage bucket %s", bucket.StorageName)
		return
	}

	if err := ctrl.Repository.BucketRepo.Create(bucket); err != nil {
		// Rollback
		if rollbackErr := ctrl.Infra.StorageService.DeleteBucket(ctx, bucket.StorageName); rollbackErr != nil {
			ctrl.Infra.Logger.ErrorWithContextf(ctx, rollbackErr, "[Bucket] Failed to rollback storage bucket %s", bucket.StorageName)
		}
		ctrl.respondError(c, err, "[Bucket] Failed to create bucket in database")
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Bucket] Successfully created bucket: %s", bucket.ID)
	utils.JSON201(c, gin.H{
		"message": "Bucket created successfully",
		"bucket":  bucket,
	})
}

func (ctrl *Controller) ListBuckets(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}

	buckets, err := ctrl.Repository.BucketRepo.ListByOwner(userID)
	if err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to list buckets for %s", userID)
		return
	}

	utils.JSON200(c, gin.H{
		"buckets": buckets,
		"count":   len(buckets),
	})
}

func (ctrl *Controller) GetBucket(c *gin.Context) {
	bucket, _, ok := ctrl.ownedBucket(c)
	if !ok {
		return
	}

	usage, err := ctrl.Repository.BucketRepo.UsageBytes(bucket.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to compute usage for %s", bucket.ID)
		return
	}
	count, err := ctrl.Repository.FileRepo.CountByBucket(bucket.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to count files for %s", bucket.ID)
		return
	}

	utils.JSON200(c, bucketResponse{Bucket: *bucket, UsageBytes: usage, FileCount: count})
}

func (ctrl *Controller) UpdateBucket(c *gin.Context) {
	ctx := c.Request.Context()
	bucket, _, ok := ctrl.ownedBucket(c)
	if !ok {
		return
	}

	var req dto.UpdateBucketRequestDTO
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request payload: "+err.Error())
		return
	}

	updates := map[string]interface{}{}
	if req.Public != nil {
		updates["public"] = *req.Public
	}
	if req.FileSizeLimit != nil {
		updates["file_size_limit"] = *req.FileSizeLimit
	}
	if req.AllowedMimeTypes != nil {
		updates["allowed_mime_types"] = mimeTypesJSON(*req.AllowedMimeTypes)
	}
	if req.QuotaBytes != nil && *req.QuotaBytes != bucket.QuotaBytes {
		if err := ctrl.Infra.StorageService.CreateBucket(ctx, bucket.StorageName, *req.QuotaBytes); err != nil {
			ctrl.respondError(c, err, "[Bucket] Failed to apply quota to %s", bucket.StorageName)
			return
		}
		updates["quota_bytes"] = *req.QuotaBytes
	}
	if len(updates) == 0 {
		utils.JSON200(c, gin.H{"bucket": bucket})
		return
	}

	if err := ctrl.Repository.BucketRepo.Update(bucket, updates); err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to update bucket %s", bucket.ID)
		return
	}
	// Cached file rows embed the bucket's public flag.
	ctrl.Infra.FileCache.Purge()

	updated, err := ctrl.Repository.BucketRepo.FindByID(bucket.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to reload bucket %s", bucket.ID)
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Bucket] Updated bucket %s", bucket.ID)
	utils.JSON200(c, gin.H{"bucket": updated})
}

// DeleteBucketByID removes the bucket metadata immediately and queues the
// storage cleanup. Non-empty buckets need ?force=true.
func (ctrl *Controller) DeleteBucketByID(c *gin.Context) {
	ctx := c.Request.Context()
	bucket, userID, ok := ctrl.ownedBucket(c)
	if !ok {
		return
	}

	count, err := ctrl.Repository.FileRepo.CountByBucket(bucket.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to count files for %s", bucket.ID)
		return
	}
	if count > 0 && c.Query("force") != "true" {
		utils.JSONError(c, apperror.BucketNotEmpty(bucket.ID.String()).WithDetail("file_count", count))
		return
	}

	if err := ctrl.Repository.Transaction(func(tx *repository.Repository) error {
		if err := tx.FileRepo.DeleteByBucket(bucket.ID); err != nil {
			return err
		}
		return tx.BucketRepo.Delete(bucket.ID)
	}); err != nil {
		ctrl.respondError(c, err, "[Bucket] Failed to delete bucket %s", bucket.ID)
		return
	}
	ctrl.Infra.FileCache.Purge()

	if err := ctrl.Infra.Produce.StorageService.PublishDeleteBucket(ctx, bucket.StorageName, userID.String()); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Bucket] Failed to queue storage deletion for %s", bucket.StorageName)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Bucket] Deleted bucket %s (%d files)", bucket.ID, count)
	utils.JSON200(c, gin.H{
		"message":       "Bucket deleted successfully",
		"deleted_files": count,
	})
}
