package controller

import (
	"encoding/json"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"path/filepath"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/utils"
)

const (
	maxFormFieldSize  = 4096
	multipartOverhead = 64 * 1024
	defaultListLimit  = 100
)

var errSizeLimitExceeded = errors.New("upload exceeds size limit")

// limitReader fails the stream with errSizeLimitExceeded once more than
// limit bytes have been read.
type limitReader struct {
	r        io.Reader
	limit    int64
	n        int64
	exceeded bool
}

func (l *limitReader) Read(p []byte) (int, error) {
	n, err := l.r.Read(p)
	l.n += int64(n)
	if l.n > l.limit {
		l.exceeded = true
		return 0, errSizeLimitExceeded
	}
	return n, err
}

// detectContentType prefers the part header, then the file extension.
func detectContentType(header, name string) string {
	if header != "" && header != "application/octet-stream" {
		if mediaType, _, err := mime.ParseMediaType(header); err == nil {
			return mediaType
		}
	}
	if byExt := mime.TypeByExtension(strings.ToLower(filepath.Ext(name))); byExt != "" {
		if mediaType, _, err := mime.ParseMediaType(byExt); err == nil {
			return mediaType
		}
	}
	return "application/octet-stream"
}

// mimeAllowed checks contentType against the bucket's list. Entries may use
// a wildcard subtype such as "image/*".
func mimeAllowed(bucket *entity.Bucket, contentType string) bool {
	if len(bucket.AllowedMimeTypes) == 0 {
		return true
	}
	var allowed []string
	if err := json.Unmarshal(bucket.AllowedMimeTypes, &allowed); err != nil || len(allowed) == 0 {
		return true
	}
	for _, a := range allowed {
		a = strings.ToLower(strings.TrimSpace(a))
		if a == contentType || a == "*/*" {
			return true
		}
		if strings.HasSuffix(a, "/*") && strings.HasPrefix(contentType, strings.TrimSuffix(a, "*")) {
			return true
		}
	}
	return false
}

// uploadLimit is the smallest of the global limit, the bucket limit and
// the quota left in the bucket.
func (ctrl *Controller) uploadLimit(bucket *entity.Bucket) (int64, error) {
	limit := ctrl.Config.EnvConfig.Upload.MaxSize
	if bucket.FileSizeLimit > 0 && bucket.FileSizeLimit < limit {
		limit = bucket.FileSizeLimit
	}
	if bucket.QuotaBytes > 0 {
		used, err := ctrl.Repository.BucketRepo.UsageBytes(bucket.ID)
		if err != nil {
			return 0, err
		}
		if remaining := bucket.QuotaBytes - used; remaining < limit {
			limit = remaining
		}
	}
	if limit < 0 {
		limit = 0
	}
	return limit, nil
}

// UploadFile streams a multipart upload straight to the object store. The
// optional "path" field must precede the "file" part; the body is never
// buffered.
func (ctrl *Controller) UploadFile(c *gin.Context) {
	ctx := c.Request.Context()
	started := time.Now()

	bucket, userID, ok := ctrl.ownedBucket(c)
	if !ok {
		return
	}
	overwrite := c.Query("overwrite") == "true"

	limit, err := ctrl.uploadLimit(bucket)
	if err != nil {
		ctrl.respondError(c, err, "[File] Failed to compute upload limit for bucket %s", bucket.ID)
		return
	}
	if c.Request.ContentLength > limit+multipartOverhead {
		utils.JSONError(c, apperror.FileTooLarge(limit))
		return
	}

	reader, err := c.Request.MultipartReader()
	if err != nil {
		utils.JSON400(c, "Request must be multipart/form-data")
		return
	}

	folder := c.Query("path")
	var part *multipart.Part
	for {
		p, err := reader.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			utils.JSON400(c, "Malformed multipart body")
			return
		}
		if p.FormName() == "path" {
			raw, err := io.ReadAll(io.LimitReader(p, maxFormFieldSize))
			if err != nil {
				utils.JSON400(c, "Malformed path field")
				return
			}
			folder = string(raw)
			continue
		}
		if p.FormName() == "file" {
			part = p
			break
		}
	}
	if part == nil || part.FileName() == "" {
		utils.JSON400(c, "A file part named 'file' is required")
		return
	}

	key, err := utils.JoinObjectPath(folder, part.FileName())
	if err != nil || key == "" {
		if err == nil {
			err = apperror.InvalidInput("path", "file name is empty")
		}
		utils.JSONError(c, err)
		return
	}

	contentType := detectContentType(part.Header.Get("Content-Type"), key)
	if !mimeAllowed(bucket, contentType) {
		utils.JSONError(c, apperror.UnsupportedMediaType(contentType))
		return
	}

	existing, err := ctrl.Repository.FileRepo.FindByBucketAndPath(bucket.ID, key)
	switch {
	case err == nil && !overwrite:
		utils.JSONError(c, apperror.FileAlreadyExists(key))
		return
	case err != nil && !apperror.HasCode(err, apperror.ErrCodeFileNotFound):
		ctrl.respondError(c, err, "[File] Failed to check existing file %s", key)
		return
	case err != nil:
		existing = nil
	}

	uploadID := c.GetHeader("X-Upload-ID")
	if uploadID == "" {
		uploadID = uuid.NewString()
	} else if _, err := uuid.Parse(uploadID); err != nil {
		utils.JSONError(c, apperror.InvalidInput("X-Upload-ID", "must be a valid UUID"))
		return
	}
	c.Header("X-Upload-ID", uploadID)

	timeoutCtx, cancelTimeout := contextWithTimeout(ctx, ctrl.Config.EnvConfig.Upload.Timeout)
	defer cancelTimeout()
	transferCtx, release, err := ctrl.Infra.Transfers.Register(timeoutCtx, uploadID, userID.String())
	if err != nil {
		utils.JSONError(c, err)
		return
	}
	defer release()

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[File] Streaming upload %s to %s/%s", uploadID, bucket.Name, key)

	body := &limitReader{r: part, limit: limit}
	info, err := ctrl.Infra.StorageService.PutObject(transferCtx, bucket.StorageName, key, body, -1, contentType)
	if err != nil {
		switch {
		case body.exceeded:
			err = apperror.FileTooLarge(limit)
		default:
			err = transferError(transferCtx, err, uploadID, infra.ErrTransferCancelled)
		}
		if existing == nil && (apperror.HasCode(err, apperror.ErrCodeTransferCancelled) || apperror.HasCode(err, apperror.ErrCodeTimeout)) {
			if qErr := ctrl.Infra.Produce.StorageService.PublishDeleteObject(ctx, bucket.StorageName, key, userID.String(), "upload aborted"); qErr != nil {
				ctrl.Infra.Logger.ErrorWithContextf(ctx, qErr, "[File] Failed to queue cleanup of %s", key)
			}
		}
		ctrl.Metrics.ObserveTransfer("upload", string(apperror.As(err).Code), body.n, started)
		ctrl.respondError(c, err, "[File] Upload %s to %s/%s failed", uploadID, bucket.Name, key)
		return
	}

	parent, name := utils.SplitObjectPath(key)
	file := &entity.File{
		BucketID:    bucket.ID,
		OwnerID:     userID,
		Path:        key,
		Name:        name,
		ParentPath:  parent,
		ContentType: contentType,
		Size:        info.Size,
		ETag:        info.ETag,
	}
	if existing != nil {
		err = ctrl.Repository.FileRepo.Save(file)
		ctrl.Infra.FileCache.Invalidate(&entity.File{ID: existing.ID, Path: existing.Path, Bucket: bucket})
	} else {
		err = ctrl.Repository.FileRepo.Create(file)
	}
	if err != nil {
		if existing == nil {
			_ = ctrl.Infra.Produce.StorageService.PublishDeleteObject(ctx, bucket.StorageName, key, userID.String(), "metadata write failed")
		}
		ctrl.Metrics.ObserveTransfer("upload", "error", body.n, started)
		ctrl.respondError(c, err, "[File] Failed to record file %s", key)
		return
	}

	ctrl.Metrics.ObserveTransfer("upload", "ok", info.Size, started)
	ctrl.Infra.Logger.InfoWithContextf(ctx, "[File] Uploaded %s/%s (%d bytes) in %s", bucket.Name, key, info.Size, time.Since(started))
	utils.JSON201(c, gin.H{
		"message":   "File uploaded successfully",
		"upload_id": uploadID,
		"file":      file,
	})
}

// CancelUpload aborts an in-flight streamed upload owned by the caller,
// wherever it is being served.
func (ctrl *Controller) CancelUpload(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	uploadID, ok := paramUUID(c, "upload_id")
	if !ok {
		return
	}

	if err := ctrl.Infra.Transfers.Cancel(c.Request.Context(), uploadID.String(), userID.String()); err != nil {
		ctrl.respondError(c, err, "[File] Failed to cancel upload %s", uploadID)
		return
	}
	ctrl.Infra.Logger.InfoWithContextf(c.Request.Context(), "[File] Cancel requested for upload %s", uploadID)
	utils.JSON202(c, gin.H{"upload_id": uploadID, "status": "cancelling"})
}

func (ctrl *Controller) ListFiles(c *gin.Context) {
	bucket, _, ok := ctrl.ownedBucket(c)
	if !ok {
		return
	}

	var query dto.ListFilesQueryDTO
	if err := c.ShouldBindQuery(&query); err != nil {
		utils.JSON400(c, "Invalid query: "+err.Error())
		return
	}
	if query.Limit == 0 {
		query.Limit = defaultListLimit
	}

	files, total, err := ctrl.Repository.FileRepo.ListByBucket(bucket.ID, query.Prefix, query.Limit, query.Offset)
	if err != nil {
		ctrl.respondError(c, err, "[File] Failed to list files in %s", bucket.ID)
		return
	}
	if files == nil {
		files = []entity.File{}
	}
	utils.JSON200(c, dto.ListFilesResponseDTO{Files: files, Total: total, Limit: query.Limit, Offset: query.Offset})
}

// ownedFile loads :id with its bucket and hides files of other owners.
func (ctrl *Controller) ownedFile(c *gin.Context) (*entity.File, uuid.UUID, bool) {
	userID, ok := currentUser(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	fileID, ok := paramUUID(c, "id")
	if !ok {
		return nil, uuid.Nil, false
	}

	file, hit := ctrl.Infra.FileCache.GetByID(fileID)
	ctrl.Metrics.CacheLookup("file_metadata", hit)
	if !hit {
		loaded, err := ctrl.Repository.FileRepo.FindByIDWithBucket(fileID)
		if err != nil {
			ctrl.respondError(c, err, "[File] Failed to load file %s", fileID)
			return nil, uuid.Nil, false
		}
		file = loaded
		ctrl.Infra.FileCache.Add(file)
	}
	if file.Bucket == nil || file.Bucket.OwnerID != userID {
		utils.JSONError(c, apperror.FileNotFound(fileID.String()))
		return nil, uuid.Nil, false
	}
	return file, userID, true
}

func (ctrl *Controller) GetFile(c *gin.Context) {
	file, _, ok := ctrl.ownedFile(c)
	if !ok {
		return
	}
	utils.JSON200(c, file)
}

func (ctrl *Controller) DeleteFile(c *gin.Context) {
	ctx := c.Request.Context()
	file, userID, ok := ctrl.ownedFile(c)
	if !ok {
		return
	}

	if err := ctrl.Repository.FileRepo.Delete(file.ID); err != nil {
		ctrl.respondError(c, err, "[File] Failed to delete file %s", file.ID)
		return
	}
	ctrl.Infra.FileCache.Invalidate(file)

	if err := ctrl.Infra.Produce.StorageService.PublishDeleteObject(ctx, file.Bucket.StorageName, file.Path, userID.String(), "file deleted"); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[File] Failed to queue object deletion for %s", file.ID)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[File] Deleted file %s (%s)", file.ID, file.Path)
	utils.JSON200(c, gin.H{"message": "File deleted successfully", "id": file.ID})
}
