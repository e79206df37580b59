package controller

import (
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/utils"
)

type objectResponse struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// PutObject streams the request body to the backend. Requests without a
// Content-Length arrive chunked and are passed on with an unknown size.
func (ctrl *Controller) PutObject(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")
	key := objectKey(c, "key")
	if key == "" {
		utils.JSON400(c, "object key is required")
		return
	}

	contentType := c.GetHeader("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	started := time.Now()
	body := &countingReader{r: c.Request.Body}
	info, err := ctrl.Backend.PutObject(ctx, bucket, key, body, c.Request.ContentLength, contentType)
	ctrl.Metrics.ObserveStorage("put_object", ctrl.Backend.Name(), err, started)
	if err != nil {
		ctrl.Metrics.ObserveTransfer("upload", "error", body.n, started)
		ctrl.fail(c, err, bucket, key, "put object")
		return
	}
	ctrl.Metrics.ObserveTransfer("upload", "ok", body.n, started)

	ctrl.Logger.InfoWithContextf(ctx, "[ObjectStore] Stored %s/%s (%d bytes)", bucket, key, info.Size)
	utils.JSON201(c, objectResponse{
		Bucket:      bucket,
		Key:         key,
		ETag:        utils.NormalizeETag(info.ETag),
		Size:        info.Size,
		ContentType: contentType,
	})
}

// GetObject serves GET and HEAD. A single byte range is honoured; an
// unsatisfiable one yields 416 before the backend is read.
func (ctrl *Controller) GetObject(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")
	key := objectKey(c, "key")
	started := time.Now()

	info, err := ctrl.Backend.StatObject(ctx, bucket, key)
	if err != nil {
		ctrl.Metrics.ObserveStorage("stat_object", ctrl.Backend.Name(), err, started)
		ctrl.fail(c, err, bucket, key, "stat object")
		return
	}

	etag := utils.QuoteETag(utils.NormalizeETag(info.ETag))
	header := c.Writer.Header()
	header.Set("Accept-Ranges", "bytes")
	if etag != "" {
		header.Set("ETag", etag)
	}
	if !info.LastModified.IsZero() {
		header.Set("Last-Modified", info.LastModified.UTC().Format(http.TimeFormat))
	}

	if utils.MatchesIfNoneMatch(c.GetHeader("If-None-Match"), etag) {
		c.Status(http.StatusNotModified)
		return
	}

	var rng *utils.ByteRange
	if utils.IfRangeAllows(c.GetHeader("If-Range"), etag, info.LastModified) {
		rng, err = utils.ParseRange(c.GetHeader("Range"), info.Size)
		if err != nil {
			header.Set("Content-Range", utils.UnsatisfiedContentRange(info.Size))
			utils.JSONError(c, err)
			return
		}
	}

	contentType := info.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	header.Set("Content-Type", contentType)

	status := http.StatusOK
	length := info.Size
	if rng != nil {
		status = http.StatusPartialContent
		length = rng.Length()
		header.Set("Content-Range", rng.ContentRange(info.Size))
	}
	header.Set("Content-Length", strconv.FormatInt(length, 10))

	if c.Request.Method == http.MethodHead {
		c.Status(status)
		return
	}

	reader, err := ctrl.Backend.GetObject(ctx, bucket, key, rng)
	ctrl.Metrics.ObserveStorage("get_object", ctrl.Backend.Name(), err, started)
	if err != nil {
		header.Del("Content-Range")
		header.Del("Content-Length")
		ctrl.fail(c, err, bucket, key, "get object")
		return
	}
	defer reader.Close()

	c.Status(status)
	written, err := io.Copy(c.Writer, reader)
	if err != nil {
		// Headers are already sent; the client sees a short body.
		ctrl.Metrics.ObserveTransfer("download", "aborted", written, started)
		ctrl.Logger.WarningWithContextf(ctx, "[ObjectStore] Download of %s/%s aborted after %d bytes: %v", bucket, key, written, err)
		return
	}
	ctrl.Metrics.ObserveTransfer("download", "ok", written, started)
}

func (ctrl *Controller) DeleteObject(c *gin.Context) {
	ctx := c.Request.Context()
	bucket := c.Param("bucket")
	key := objectKey(c, "key")

	started := time.Now()
	err := ctrl.Backend.DeleteObject(ctx, bucket, key)
	ctrl.Metrics.ObserveStorage("delete_object", ctrl.Backend.Name(), err, started)
	if err != nil && !apperror.HasCode(translateBackendError(err, bucket, key), apperror.ErrCodeFileNotFound) {
		ctrl.fail(c, err, bucket, key, "delete object")
		return
	}

	utils.JSON200(c, gin.H{"bucket": bucket, "key": key, "deleted": true})
}

type countingReader struct {
	r io.Reader
	n int64
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	cr.n += int64(n)
	return n, err
}
