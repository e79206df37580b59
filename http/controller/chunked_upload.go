package controller

import (
	"fmt"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/http/controller/dto"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/infra/produce"
	"github.com/tnqbao/gau-platform/utils"
)

// maxComposeParts is the part limit of S3-compatible multipart composition.
const maxComposeParts = 10000

// chooseChunkSize clamps preferred into [min, max] and grows it when the
// file would otherwise need more than maxComposeParts chunks.
func chooseChunkSize(fileSize, preferred, min, max int64) (int64, int) {
	size := preferred
	if size <= 0 {
		size = min
	}
	if size < min {
		size = min
	}
	if max > 0 && size > max {
		size = max
	}
	if need := (fileSize + maxComposeParts - 1) / maxComposeParts; size < need {
		size = need
	}
	if size > fileSize {
		size = fileSize
	}
	total := int((fileSize + size - 1) / size)
	return size, total
}

func (ctrl *Controller) InitChunkedUpload(c *gin.Context) {
	ctx := c.Request.Context()
	bucket, userID, ok := ctrl.ownedBucket(c)
	if !ok {
		return
	}

	var req dto.InitUploadRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		utils.JSON400(c, "Invalid request: "+err.Error())
		return
	}

	key, err := utils.JoinObjectPath(req.Path, req.FileName)
	if err != nil || key == "" {
		if err == nil {
			err = apperror.InvalidInput("file_name", "file name is empty")
		}
		utils.JSONError(c, err)
		return
	}

	limit, err := ctrl.uploadLimit(bucket)
	if err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to compute upload limit for bucket %s", bucket.ID)
		return
	}
	if req.FileSize > limit {
		utils.JSONError(c, apperror.FileTooLarge(limit))
		return
	}

	contentType := detectContentType(req.ContentType, key)
	if !mimeAllowed(bucket, contentType) {
		utils.JSONError(c, apperror.UnsupportedMediaType(contentType))
		return
	}

	if !req.Overwrite {
		_, err := ctrl.Repository.FileRepo.FindByBucketAndPath(bucket.ID, key)
		if err == nil {
			utils.JSONError(c, apperror.FileAlreadyExists(key))
			return
		}
		if !apperror.HasCode(err, apperror.ErrCodeFileNotFound) {
			ctrl.respondError(c, err, "[Upload] Failed to check existing file %s", key)
			return
		}
	}

	uploadCfg := ctrl.Config.EnvConfig.Upload
	chunkSize, totalChunks := chooseChunkSize(req.FileSize, req.PreferredChunkSize, uploadCfg.MinChunkSize, uploadCfg.MaxChunkSize)
	if uploadCfg.MaxChunkSize > 0 && chunkSize > uploadCfg.MaxChunkSize {
		utils.JSONError(c, apperror.FileTooLarge(uploadCfg.MaxChunkSize*maxComposeParts))
		return
	}

	_, name := utils.SplitObjectPath(key)
	sessionID := uuid.New()
	session := &entity.UploadSession{
		ID:          sessionID,
		BucketID:    bucket.ID,
		UserID:      userID,
		FileName:    name,
		Path:        key,
		FileSize:    req.FileSize,
		ContentType: contentType,
		Overwrite:   req.Overwrite,
		ChunkSize:   chunkSize,
		TotalChunks: totalChunks,
		Status:      entity.UploadStatusInit,
		TempBucket:  uploadCfg.TempBucket,
		TempPrefix:  userID.String() + "/" + sessionID.String() + "/",
		ExpiresAt:   time.Now().Add(uploadCfg.SessionTTL),
	}
	if err := ctrl.Repository.UploadSessionRepo.Create(session); err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to create upload session for %s", key)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Upload] Session %s started for %s/%s: %d bytes in %d chunks",
		session.ID, bucket.Name, key, req.FileSize, totalChunks)
	utils.JSON201(c, dto.InitUploadResponse{
		UploadID:    session.ID.String(),
		Path:        key,
		ChunkSize:   chunkSize,
		TotalChunks: totalChunks,
		ExpiresAt:   session.ExpiresAt,
	})
}

// ownedSession loads :upload_id within the caller's bucket.
func (ctrl *Controller) ownedSession(c *gin.Context) (*entity.Bucket, *entity.UploadSession, bool) {
	bucket, userID, ok := ctrl.ownedBucket(c)
	if !ok {
		return nil, nil, false
	}
	sessionID, ok := paramUUID(c, "upload_id")
	if !ok {
		return nil, nil, false
	}
	session, err := ctrl.Repository.UploadSessionRepo.FindByIDAndBucketID(sessionID, bucket.ID)
	if err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to load session %s", sessionID)
		return nil, nil, false
	}
	if session.UserID != userID {
		utils.JSONError(c, apperror.UploadSessionNotFound(sessionID.String()))
		return nil, nil, false
	}
	return bucket, session, true
}

// openSession rejects sessions that can no longer take chunks.
func openSession(session *entity.UploadSession, now time.Time) error {
	switch {
	case session.Status == entity.UploadStatusExpired:
		return apperror.UploadExpired(session.ID.String())
	case session.Status == entity.UploadStatusProcessing, session.Status.IsTerminal():
		return apperror.Conflict("Upload session is " + string(session.Status) + ".").
			WithDetail("upload_id", session.ID.String())
	case now.After(session.ExpiresAt):
		return apperror.UploadExpired(session.ID.String())
	}
	return nil
}

// receivedChunks reads the chunk indexes recorded for session.
func (ctrl *Controller) receivedChunks(c *gin.Context, session *entity.UploadSession) (map[int]bool, error) {
	members, err := ctrl.Infra.Redis.SetMembers(c.Request.Context(), session.ChunkSetKey())
	if err != nil {
		return nil, apperror.ServiceUnavailable("cache").WithCause(err)
	}
	received := make(map[int]bool, len(members))
	for _, m := range members {
		if idx, err := strconv.Atoi(m); err == nil && idx >= 0 && idx < session.TotalChunks {
			received[idx] = true
		}
	}
	return received, nil
}

func missingChunks(received map[int]bool, total int) []int {
	missing := []int{}
	for i := 0; i < total; i++ {
		if !received[i] {
			missing = append(missing, i)
		}
	}
	return missing
}

// UploadChunk streams one chunk into the temp bucket. Re-sending an index
// replaces the stored chunk and is counted once.
func (ctrl *Controller) UploadChunk(c *gin.Context) {
	ctx := c.Request.Context()
	started := time.Now()

	_, session, ok := ctrl.ownedSession(c)
	if !ok {
		return
	}
	if err := openSession(session, time.Now()); err != nil {
		utils.JSONError(c, err)
		return
	}

	index, err := strconv.Atoi(c.Param("index"))
	if err != nil || index < 0 || index >= session.TotalChunks {
		utils.JSONError(c, apperror.InvalidInput("index", fmt.Sprintf("must be between 0 and %d", session.TotalChunks-1)))
		return
	}
	expected := session.ExpectedChunkSize(index)
	if c.Request.ContentLength >= 0 && c.Request.ContentLength != expected {
		utils.JSONError(c, apperror.InvalidInput("body", fmt.Sprintf("chunk %d must be exactly %d bytes", index, expected)))
		return
	}

	timeoutCtx, cancel := contextWithTimeout(ctx, ctrl.Config.EnvConfig.Upload.Timeout)
	defer cancel()

	body := &limitReader{r: c.Request.Body, limit: expected}
	info, err := ctrl.Infra.StorageService.PutObject(timeoutCtx, session.TempBucket, session.ChunkObjectKey(index),
		body, c.Request.ContentLength, "application/octet-stream")
	if err != nil {
		if body.exceeded {
			err = apperror.InvalidInput("body", fmt.Sprintf("chunk %d must be exactly %d bytes", index, expected))
		} else {
			err = transferError(timeoutCtx, err, session.ID.String(), infra.ErrTransferCancelled)
		}
		ctrl.Metrics.ObserveTransfer("chunk", string(apperror.As(err).Code), body.n, started)
		ctrl.respondError(c, err, "[Upload] Chunk %d of session %s failed", index, session.ID)
		return
	}
	if info.Size != expected {
		ctrl.Metrics.ObserveTransfer("chunk", "short", info.Size, started)
		utils.JSONError(c, apperror.InvalidInput("body", fmt.Sprintf("chunk %d must be exactly %d bytes, got %d", index, expected, info.Size)))
		return
	}

	ttl := time.Until(session.ExpiresAt) + time.Hour
	if _, err := ctrl.Infra.Redis.AddToSet(ctx, session.ChunkSetKey(), strconv.Itoa(index), ttl); err != nil {
		ctrl.respondError(c, apperror.ServiceUnavailable("cache").WithCause(err), "[Upload] Failed to record chunk %d of %s", index, session.ID)
		return
	}
	received, err := ctrl.receivedChunks(c, session)
	if err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to count chunks of %s", session.ID)
		return
	}
	if err := ctrl.Repository.UploadSessionRepo.SetUploadedChunks(session.ID, len(received)); err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to update session %s", session.ID)
		return
	}

	ctrl.Metrics.ObserveTransfer("chunk", "ok", info.Size, started)
	utils.JSON200(c, dto.UploadChunkResponse{
		ChunkIndex:     index,
		UploadedChunks: len(received),
		TotalChunks:    session.TotalChunks,
		Status:         string(entity.UploadStatusUploading),
	})
}

func (ctrl *Controller) CompleteChunkedUpload(c *gin.Context) {
	ctx := c.Request.Context()
	bucket, session, ok := ctrl.ownedSession(c)
	if !ok {
		return
	}
	if err := openSession(session, time.Now()); err != nil {
		utils.JSONError(c, err)
		return
	}

	received, err := ctrl.receivedChunks(c, session)
	if err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to count chunks of %s", session.ID)
		return
	}
	if missing := missingChunks(received, session.TotalChunks); len(missing) > 0 {
		utils.JSONError(c, apperror.InvalidInput("chunks", fmt.Sprintf("%d of %d chunks are missing", len(missing), session.TotalChunks)).
			WithDetail("missing_chunks", missing))
		return
	}

	open := []entity.UploadStatus{entity.UploadStatusInit, entity.UploadStatusUploading}
	changed, err := ctrl.Repository.UploadSessionRepo.Transition(session.ID, open, entity.UploadStatusProcessing, "")
	if err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to mark session %s processing", session.ID)
		return
	}
	if !changed {
		utils.JSONError(c, apperror.Conflict("Upload session is already being completed.").WithDetail("upload_id", session.ID.String()))
		return
	}

	msg := produce.ComposeUploadMessage{
		UploadID: session.ID.String(),
		BucketID: bucket.ID.String(),
		UserID:   session.UserID.String(),
	}
	if err := ctrl.Infra.Produce.StorageService.PublishComposeUpload(ctx, msg); err != nil {
		_, _ = ctrl.Repository.UploadSessionRepo.Transition(session.ID,
			[]entity.UploadStatus{entity.UploadStatusProcessing}, entity.UploadStatusUploading, "")
		ctrl.respondError(c, apperror.ServiceUnavailable("queue").WithCause(err), "[Upload] Failed to queue compose for %s", session.ID)
		return
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Upload] Session %s queued for composition", session.ID)
	utils.JSON202(c, dto.CompleteUploadResponse{
		UploadID:  session.ID.String(),
		Status:    string(entity.UploadStatusProcessing),
		StatusURL: fmt.Sprintf("/api/v1/buckets/%s/uploads/%s", bucket.ID, session.ID),
	})
}

func (ctrl *Controller) GetUploadProgress(c *gin.Context) {
	_, session, ok := ctrl.ownedSession(c)
	if !ok {
		return
	}

	status := session.Status
	if !status.IsTerminal() && status != entity.UploadStatusProcessing && time.Now().After(session.ExpiresAt) {
		status = entity.UploadStatusExpired
	}

	resp := dto.UploadProgressResponse{
		UploadID:       session.ID.String(),
		Path:           session.Path,
		UploadedChunks: session.UploadedChunks,
		TotalChunks:    session.TotalChunks,
		Status:         string(status),
		Error:          session.Error,
		ExpiresAt:      session.ExpiresAt,
	}
	if session.FileID != nil {
		id := session.FileID.String()
		resp.FileID = &id
	}

	if status == entity.UploadStatusInit || status == entity.UploadStatusUploading {
		if received, err := ctrl.receivedChunks(c, session); err == nil {
			resp.UploadedChunks = len(received)
			resp.MissingChunks = missingChunks(received, session.TotalChunks)
		} else {
			ctrl.Infra.Logger.WarningWithContextf(c.Request.Context(), "[Upload] Falling back to stored chunk count for %s: %v", session.ID, err)
		}
	}
	if status == entity.UploadStatusCompleted {
		resp.UploadedChunks = session.TotalChunks
	}
	if session.TotalChunks > 0 {
		resp.Progress = float64(resp.UploadedChunks) * 100 / float64(session.TotalChunks)
	}
	utils.JSON200(c, resp)
}

func (ctrl *Controller) AbortChunkedUpload(c *gin.Context) {
	ctx := c.Request.Context()
	_, session, ok := ctrl.ownedSession(c)
	if !ok {
		return
	}

	open := []entity.UploadStatus{entity.UploadStatusInit, entity.UploadStatusUploading}
	changed, err := ctrl.Repository.UploadSessionRepo.Transition(session.ID, open, entity.UploadStatusAborted, "aborted by user")
	if err != nil {
		ctrl.respondError(c, err, "[Upload] Failed to abort session %s", session.ID)
		return
	}
	if !changed {
		utils.JSONError(c, apperror.Conflict("Upload session is "+string(session.Status)+".").WithDetail("upload_id", session.ID.String()))
		return
	}

	if err := ctrl.Infra.Produce.StorageService.PublishDeletePrefix(ctx, session.TempBucket, session.TempPrefix, session.UserID.String(), "upload aborted"); err != nil {
		ctrl.Infra.Logger.ErrorWithContextf(ctx, err, "[Upload] Failed to queue temp cleanup for %s", session.ID)
	}
	if err := ctrl.Infra.Redis.Delete(ctx, session.ChunkSetKey()); err != nil {
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Upload] Failed to drop chunk set of %s: %v", session.ID, err)
	}

	ctrl.Infra.Logger.InfoWithContextf(ctx, "[Upload] Session %s aborted", session.ID)
	utils.JSON200(c, gin.H{"upload_id": session.ID, "status": entity.UploadStatusAborted})
}
