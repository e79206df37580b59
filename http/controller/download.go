package controller

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"github.com/tnqbao/gau-platform/infra"
	"github.com/tnqbao/gau-platform/utils"
)

// DownloadFile serves GET and HEAD for an owned file.
func (ctrl *Controller) DownloadFile(c *gin.Context) {
	file, _, ok := ctrl.ownedFile(c)
	if !ok {
		return
	}
	ctrl.serveFile(c, file)
}

// PublicDownload serves files of public buckets without authentication.
// Private buckets answer 404 so their contents cannot be probed.
func (ctrl *Controller) PublicDownload(c *gin.Context) {
	ownerID, err := uuid.Parse(c.Param("owner_id"))
	if err != nil {
		utils.JSONError(c, apperror.FileNotFound(""))
		return
	}
	bucketName := c.Param("bucket")
	path, err := utils.NormalizeObjectPath(strings.TrimPrefix(c.Param("path"), "/"))
	if err != nil || path == "" {
		utils.JSONError(c, apperror.FileNotFound(""))
		return
	}

	file, hit := ctrl.Infra.FileCache.GetByPath(ownerID, bucketName, path)
	ctrl.Metrics.CacheLookup("file_metadata", hit)
	if !hit {
		loaded, err := ctrl.Repository.FileRepo.FindByPublicPath(ownerID, bucketName, path)
		if err != nil {
			ctrl.respondError(c, err, "[Download] Failed to resolve public file %s/%s", bucketName, path)
			return
		}
		file = loaded
		ctrl.Infra.FileCache.Add(file)
	}
	if file.Bucket == nil || !file.Bucket.Public {
		utils.JSONError(c, apperror.FileNotFound(path))
		return
	}
	ctrl.serveFile(c, file)
}

// serveFile answers conditional and range requests from metadata where it
// can and only contacts the object store for the bytes themselves.
func (ctrl *Controller) serveFile(c *gin.Context, file *entity.File) {
	ctx := c.Request.Context()
	started := time.Now()
	head := c.Request.Method == http.MethodHead

	etag := utils.QuoteETag(file.ETag)
	header := c.Writer.Header()
	header.Set("Accept-Ranges", "bytes")
	if etag != "" {
		header.Set("ETag", etag)
	}
	if !file.UpdatedAt.IsZero() {
		header.Set("Last-Modified", file.UpdatedAt.UTC().Format(http.TimeFormat))
	}
	if file.Bucket.Public {
		header.Set("Cache-Control", fmt.Sprintf("public, max-age=%d", ctrl.Config.EnvConfig.Storage.PublicMaxAge))
	} else {
		header.Set("Cache-Control", "private, no-cache")
	}

	if utils.MatchesIfNoneMatch(c.GetHeader("If-None-Match"), etag) {
		ctrl.Metrics.ObserveTransfer("download", "not_modified", 0, started)
		c.Status(http.StatusNotModified)
		return
	}

	var rng *utils.ByteRange
	if utils.IfRangeAllows(c.GetHeader("If-Range"), etag, file.UpdatedAt) {
		parsed, err := utils.ParseRange(c.GetHeader("Range"), file.Size)
		if err != nil {
			header.Set("Content-Range", utils.UnsatisfiedContentRange(file.Size))
			ctrl.Metrics.ObserveTransfer("download", "range_not_satisfiable", 0, started)
			utils.JSONError(c, err)
			return
		}
		rng = parsed
	}

	// The range was resolved against cached metadata, so the store only
	// honours it while the object still carries that ETag.
	stream, err := ctrl.Infra.StorageService.GetObject(ctx, file.Bucket.StorageName, file.Path, infra.GetObjectOptions{
		Head:    head,
		Range:   rng,
		IfRange: etag,
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			ctrl.Infra.Logger.DebugWithContextf(ctx, "[Download] Client went away before %s was opened", file.ID)
			c.Abort()
			return
		}
		if appErr := apperror.As(err); appErr.Code == apperror.ErrCodeRangeNotSatisfiable {
			header.Set("Content-Range", utils.UnsatisfiedContentRange(file.Size))
		}
		if apperror.HasCode(err, apperror.ErrCodeFileNotFound) {
			ctrl.Infra.FileCache.Invalidate(file)
		}
		ctrl.Metrics.ObserveTransfer("download", string(apperror.As(err).Code), 0, started)
		ctrl.respondError(c, err, "[Download] Failed to open %s/%s", file.Bucket.StorageName, file.Path)
		return
	}
	defer stream.Body.Close()

	upstream := stream.Header.Clone()
	utils.RemoveHopByHopHeaders(upstream)
	if rng != nil && stream.StatusCode == http.StatusOK {
		ctrl.Infra.Logger.DebugWithContextf(ctx, "[Download] %s changed since it was cached, serving the full object", file.ID)
		ctrl.Infra.FileCache.Invalidate(file)
		for _, name := range []string{"ETag", "Last-Modified"} {
			if v := upstream.Get(name); v != "" {
				header.Set(name, v)
			}
		}
	}
	for _, name := range []string{"Content-Type", "Content-Length", "Content-Range"} {
		if v := upstream.Get(name); v != "" {
			header.Set(name, v)
		}
	}
	if header.Get("Content-Type") == "" && file.ContentType != "" {
		header.Set("Content-Type", file.ContentType)
	}
	header.Set("Content-Disposition", utils.ContentDisposition(file.Name, c.Query("inline") == "true"))

	c.Status(stream.StatusCode)
	if head || stream.StatusCode == http.StatusNotModified {
		c.Writer.WriteHeaderNow()
		ctrl.Metrics.ObserveTransfer("download", "ok", 0, started)
		return
	}

	written, err := io.Copy(c.Writer, stream.Body)
	if err != nil {
		ctrl.Metrics.ObserveTransfer("download", "aborted", written, started)
		ctrl.Infra.Logger.WarningWithContextf(ctx, "[Download] Stream of %s aborted after %d bytes: %v", file.ID, written, err)
		return
	}
	ctrl.Metrics.ObserveTransfer("download", "ok", written, started)
}
