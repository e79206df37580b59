// Package backend adapts object storage providers to the operations the
// object store service exposes.
package backend

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/utils"
)

var (
	ErrObjectNotFound = errors.New("object not found")
	ErrBucketNotFound = errors.New("bucket not found")
)

// partSize bounds the memory a single streamed upload may buffer.
const partSize = 16 * 1024 * 1024

type ObjectInfo struct {
	Key          string
	ETag         string
	Size         int64
	ContentType  string
	LastModified time.Time
}

type Backend interface {
	Name() string
	Ping(ctx context.Context) error

	// EnsureBucket creates the bucket if missing and applies quotaBytes when
	// the provider supports quotas. Zero leaves the quota unset.
	EnsureBucket(ctx context.Context, bucket string, quotaBytes int64) error
	// DeleteBucket removes every object and then the bucket. A missing
	// bucket is not an error.
	DeleteBucket(ctx context.Context, bucket string) error

	// PutObject streams body into bucket/key. size is -1 when unknown.
	PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error)
	StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error)
	// GetObject opens the object, or only rng of it when rng is not nil.
	GetObject(ctx context.Context, bucket, key string, rng *utils.ByteRange) (io.ReadCloser, error)
	DeleteObject(ctx context.Context, bucket, key string) error
	// DeletePrefix removes every key starting with prefix and returns how
	// many were removed.
	DeletePrefix(ctx context.Context, bucket, prefix string) (int, error)
	// ComposeObject concatenates sources from srcBucket into bucket/key.
	ComposeObject(ctx context.Context, bucket, key, srcBucket string, sources []string, contentType string) (*ObjectInfo, error)
}

// New selects the backend named by STORAGE_DRIVER.
func New(ctx context.Context, cfg *config.EnvConfig) (Backend, error) {
	switch cfg.Storage.Driver {
	case "minio", "":
		return NewMinioBackend(cfg)
	case "s3":
		return NewS3Backend(ctx, cfg)
	case "memory":
		return NewMemoryBackend(), nil
	default:
		return nil, fmt.Errorf("unknown storage driver %q", cfg.Storage.Driver)
	}
}
