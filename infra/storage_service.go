package infra

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/utils"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// StorageService is the client for the internal object store service. It
// never buffers object bodies: uploads stream from the caller's reader and
// downloads hand back the live response body.
type StorageService struct {
	BaseURL    string
	PrivateKey string
	// Timeout bounds metadata calls (bucket and delete operations). Transfers
	// are bounded by the caller's context only.
	Timeout time.Duration

	client *http.Client
}

type ObjectInfo struct {
	Bucket      string `json:"bucket"`
	Key         string `json:"key"`
	ETag        string `json:"etag"`
	Size        int64  `json:"size"`
	ContentType string `json:"content_type"`
}

// ObjectStream is an upstream download response. Body must be closed.
type ObjectStream struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

type GetObjectOptions struct {
	Head        bool
	Range       *utils.ByteRange
	IfRange     string
	IfNoneMatch string
}

type ComposeRequest struct {
	SourceBucket string   `json:"source_bucket"`
	Sources      []string `json:"sources"`
	ContentType  string   `json:"content_type"`
}

func InitStorageService(cfg *config.EnvConfig) *StorageService {
	if cfg.Storage.ServiceURL == "" {
		panic("Storage service URL is not configured")
	}
	if cfg.PrivateKey == "" {
		panic("Private key is not configured")
	}
	return NewStorageService(cfg.Storage.ServiceURL, cfg.PrivateKey, cfg.Storage.Timeout, otelhttp.NewTransport(http.DefaultTransport))
}

func NewStorageService(baseURL, privateKey string, timeout time.Duration, transport http.RoundTripper) *StorageService {
	return &StorageService{
		BaseURL:    baseURL,
		PrivateKey: privateKey,
		Timeout:    timeout,
		client:     &http.Client{Transport: transport},
	}
}

func (s *StorageService) bucketURL(bucket string) string {
	return fmt.Sprintf("%s/internal/v1/buckets/%s", s.BaseURL, url.PathEscape(bucket))
}

func (s *StorageService) objectURL(kind, bucket, key string) string {
	return fmt.Sprintf("%s/internal/v1/%s/%s/%s", s.BaseURL, kind, url.PathEscape(bucket), utils.EscapePath(key))
}

func (s *StorageService) newRequest(ctx context.Context, method, target string, body io.Reader) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Private-Key", s.PrivateKey)
	return req, nil
}

func (s *StorageService) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.Timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.Timeout)
}

func (s *StorageService) CreateBucket(ctx context.Context, bucket string, quotaBytes int64) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodPut, s.bucketURL(bucket), nil)
	if err != nil {
		return err
	}
	if quotaBytes > 0 {
		req.Header.Set("X-Quota-Bytes", strconv.FormatInt(quotaBytes, 10))
	}
	return s.doDiscard(ctx, req, "create bucket")
}

func (s *StorageService) DeleteBucket(ctx context.Context, bucket string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodDelete, s.bucketURL(bucket), nil)
	if err != nil {
		return err
	}
	err = s.doDiscard(ctx, req, "delete bucket")
	if apperror.HasCode(err, apperror.ErrCodeBucketNotFound) {
		return nil
	}
	return err
}

// PutObject streams body to the object store. A negative size sends the
// body with chunked transfer encoding.
func (s *StorageService) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	req, err := s.newRequest(ctx, http.MethodPut, s.objectURL("objects", bucket, key), body)
	if err != nil {
		return nil, err
	}
	req.ContentLength = size
	if size < 0 {
		req.ContentLength = -1
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, "upload")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp, "upload")
	}

	var info ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperror.StorageUnavailable(fmt.Errorf("failed to decode upload response: %w", err))
	}
	info.ETag = utils.NormalizeETag(info.ETag)
	return &info, nil
}

// GetObject opens a download. 200, 206 and 304 responses are returned to the
// caller; every other status is mapped to an AppError.
func (s *StorageService) GetObject(ctx context.Context, bucket, key string, opts GetObjectOptions) (*ObjectStream, error) {
	method := http.MethodGet
	if opts.Head {
		method = http.MethodHead
	}
	req, err := s.newRequest(ctx, method, s.objectURL("objects", bucket, key), nil)
	if err != nil {
		return nil, err
	}
	if opts.Range != nil {
		req.Header.Set("Range", opts.Range.Header())
		if opts.IfRange != "" {
			req.Header.Set("If-Range", opts.IfRange)
		}
	}
	if opts.IfNoneMatch != "" {
		req.Header.Set("If-None-Match", opts.IfNoneMatch)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, "download")
	}

	switch resp.StatusCode {
	case http.StatusOK, http.StatusPartialContent, http.StatusNotModified:
		return &ObjectStream{StatusCode: resp.StatusCode, Header: resp.Header, Body: resp.Body}, nil
	default:
		defer resp.Body.Close()
		return nil, statusError(resp, "download")
	}
}

func (s *StorageService) DeleteObject(ctx context.Context, bucket, key string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodDelete, s.objectURL("objects", bucket, key), nil)
	if err != nil {
		return err
	}
	err = s.doDiscard(ctx, req, "delete object")
	if apperror.HasCode(err, apperror.ErrCodeFileNotFound) {
		return nil
	}
	return err
}

func (s *StorageService) DeletePrefix(ctx context.Context, bucket, prefix string) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	req, err := s.newRequest(ctx, http.MethodDelete, s.objectURL("prefixes", bucket, prefix), nil)
	if err != nil {
		return err
	}
	err = s.doDiscard(ctx, req, "delete prefix")
	if apperror.HasCode(err, apperror.ErrCodeBucketNotFound) {
		return nil
	}
	return err
}

// ComposeObject concatenates sources (in order) into bucket/key.
func (s *StorageService) ComposeObject(ctx context.Context, bucket, key string, compose ComposeRequest) (*ObjectInfo, error) {
	body, err := json.Marshal(compose)
	if err != nil {
		return nil, err
	}
	req, err := s.newRequest(ctx, http.MethodPost, s.objectURL("compose", bucket, key), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, transportError(ctx, err, "compose")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return nil, statusError(resp, "compose")
	}

	var info ObjectInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, apperror.StorageUnavailable(fmt.Errorf("failed to decode compose response: %w", err))
	}
	info.ETag = utils.NormalizeETag(info.ETag)
	return &info, nil
}

func (s *StorageService) doDiscard(ctx context.Context, req *http.Request, operation string) error {
	resp, err := s.client.Do(req)
	if err != nil {
		return transportError(ctx, err, operation)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64*1024))
		return nil
	}
	return statusError(resp, operation)
}

// transportError classifies a failed round trip. Cancellation is returned
// as context.Canceled so callers can tell an aborted transfer apart from
// an unavailable backend.
func transportError(ctx context.Context, err error, operation string) error {
	if errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled) {
		return fmt.Errorf("%s: %w", operation, context.Canceled)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return apperror.Timeout(operation).WithCause(err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return apperror.Timeout(operation).WithCause(err)
	}
	return apperror.StorageUnavailable(err)
}

type upstreamError struct {
	Error struct {
		Code    apperror.ErrorCode `json:"code"`
		Message string             `json:"message"`
	} `json:"error"`
}

func statusError(resp *http.Response, operation string) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var body upstreamError
	_ = json.Unmarshal(raw, &body)
	cause := fmt.Errorf("%s: object store returned %d: %s", operation, resp.StatusCode, raw)

	switch {
	case resp.StatusCode == http.StatusNotFound && body.Error.Code == apperror.ErrCodeBucketNotFound:
		return apperror.BucketNotFound("").WithCause(cause)
	case resp.StatusCode == http.StatusNotFound:
		return apperror.FileNotFound("").WithCause(cause)
	case resp.StatusCode == http.StatusRequestedRangeNotSatisfiable:
		size := int64(-1)
		if _, total, err := utils.ParseContentRange(resp.Header.Get("Content-Range")); err == nil {
			size = total
		}
		return apperror.RangeNotSatisfiable(size).WithCause(cause)
	case resp.StatusCode == http.StatusRequestEntityTooLarge:
		return apperror.FileTooLarge(-1).WithCause(cause)
	case resp.StatusCode == http.StatusGatewayTimeout:
		return apperror.Timeout(operation).WithCause(cause)
	case resp.StatusCode == http.StatusBadRequest:
		msg := body.Error.Message
		if msg == "" {
			msg = "rejected by object store"
		}
		return apperror.InvalidInput("", msg).WithCause(cause)
	default:
		return apperror.StorageUnavailable(cause)
	}
}
