package backend

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/minio/madmin-go/v3"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/utils"
)

type MinioBackend struct {
	Admin    *madmin.AdminClient
	Client   *minio.Client
	Endpoint string
}

func NewMinioBackend(cfg *config.EnvConfig) (*MinioBackend, error) {
	endpoint := cfg.Minio.Endpoint
	if endpoint == "" {
		return nil, fmt.Errorf("MinIO endpoint is not configured")
	}
	if cfg.Minio.RootUser == "" || cfg.Minio.RootPassword == "" {
		return nil, fmt.Errorf("MinIO credentials are not configured")
	}

	adminClient, err := madmin.New(endpoint, cfg.Minio.RootUser, cfg.Minio.RootPassword, cfg.Minio.UseSSL)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO admin client: %w", err)
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.Minio.RootUser, cfg.Minio.RootPassword, ""),
		Secure: cfg.Minio.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize MinIO client: %w", err)
	}

	return &MinioBackend{Admin: adminClient, Client: client, Endpoint: endpoint}, nil
}

func (m *MinioBackend) Name() string { return "minio" }

func (m *MinioBackend) Ping(ctx context.Context) error {
	if _, err := m.Client.ListBuckets(ctx); err != nil {
		return fmt.Errorf("minio ping failed: %w", err)
	}
	return nil
}

func (m *MinioBackend) EnsureBucket(ctx context.Context, bucket string, quotaBytes int64) error {
	exists, err := m.Client.BucketExists(ctx, bucket)
	if err != nil {
		return fmt.Errorf("failed to check bucket existence: %w", err)
	}
	if !exists {
		if err := m.Client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}); err != nil {
			resp := minio.ToErrorResponse(err)
			if resp.Code != "BucketAlreadyOwnedByYou" && resp.Code != "BucketAlreadyExists" {
				return fmt.Errorf("failed to create bucket: %w", err)
			}
		}
	}

	if quotaBytes > 0 {
		quota := &madmin.BucketQuota{Size: uint64(quotaBytes), Type: madmin.HardQuota}
		if err := m.Admin.SetBucketQuota(ctx, bucket, quota); err != nil {
			return fmt.Errorf("failed to set bucket quota: %w", err)
		}
	}
	return nil
}

func (m *MinioBackend) DeleteBucket(ctx context.Context, bucket string) error {
	if _, err := m.DeletePrefix(ctx, bucket, ""); err != nil {
		if errors.Is(err, ErrBucketNotFound) {
			return nil
		}
		return err
	}
	if err := m.Client.RemoveBucket(ctx, bucket); err != nil {
		if minio.ToErrorResponse(err).Code == "NoSuchBucket" {
			return nil
		}
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	return nil
}

func (m *MinioBackend) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	info, err := m.Client.PutObject(ctx, bucket, key, body, size, minio.PutObjectOptions{
		ContentType: contentType,
		PartSize:    partSize,
	})
	if err != nil {
		return nil, m.translate(err)
	}
	return &ObjectInfo{Key: key, ETag: info.ETag, Size: info.Size, ContentType: contentType, LastModified: info.LastModified}, nil
}

func (m *MinioBackend) StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	stat, err := m.Client.StatObject(ctx, bucket, key, minio.StatObjectOptions{})
	if err != nil {
		return nil, m.translate(err)
	}
	return &ObjectInfo{
		Key:          key,
		ETag:         stat.ETag,
		Size:         stat.Size,
		ContentType:  stat.ContentType,
		LastModified: stat.LastModified,
	}, nil
}

func (m *MinioBackend) GetObject(ctx context.Context, bucket, key string, rng *utils.ByteRange) (io.ReadCloser, error) {
	opts := minio.GetObjectOptions{}
	if rng != nil {
		if err := opts.SetRange(rng.Start, rng.End); err != nil {
			return nil, err
		}
	}
	obj, err := m.Client.GetObject(ctx, bucket, key, opts)
	if err != nil {
		return nil, m.translate(err)
	}
	return obj, nil
}

func (m *MinioBackend) DeleteObject(ctx context.Context, bucket, key string) error {
	if err := m.Client.RemoveObject(ctx, bucket, key, minio.RemoveObjectOptions{}); err != nil {
		err = m.translate(err)
		if errors.Is(err, ErrObjectNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (m *MinioBackend) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	listed := m.Client.ListObjects(ctx, bucket, minio.ListObjectsOptions{
		Prefix:    prefix,
		Recursive: true,
	})

	toDelete := make(chan minio.ObjectInfo)
	listErr := make(chan error, 1)
	count := 0

	go func() {
		defer close(toDelete)
		for object := range listed {
			if object.Err != nil {
				listErr <- object.Err
				return
			}
			count++
			toDelete <- object
		}
	}()

	var removeErr error
	for result := range m.Client.RemoveObjects(ctx, bucket, toDelete, minio.RemoveObjectsOptions{}) {
		if result.Err != nil && removeErr == nil {
			removeErr = fmt.Errorf("failed to delete object %s: %w", result.ObjectName, result.Err)
		}
	}
	if removeErr != nil {
		return 0, removeErr
	}

	select {
	case err := <-listErr:
		return 0, m.translate(err)
	default:
	}
	return count, nil
}

func (m *MinioBackend) ComposeObject(ctx context.Context, bucket, key, srcBucket string, sources []string, contentType string) (*ObjectInfo, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("compose requires at least one source")
	}

	srcs := make([]minio.CopySrcOptions, 0, len(sources))
	for _, source := range sources {
		srcs = append(srcs, minio.CopySrcOptions{Bucket: srcBucket, Object: source})
	}

	dst := minio.CopyDestOptions{
		Bucket:          bucket,
		Object:          key,
		ReplaceMetadata: true,
		UserMetadata:    map[string]string{"Content-Type": contentType},
	}

	info, err := m.Client.ComposeObject(ctx, dst, srcs...)
	if err != nil {
		return nil, m.translate(err)
	}
	return &ObjectInfo{Key: key, ETag: info.ETag, Size: info.Size, ContentType: contentType, LastModified: info.LastModified}, nil
}

func (m *MinioBackend) translate(err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey":
		return ErrObjectNotFound
	case "NoSuchBucket":
		return ErrBucketNotFound
	default:
		return err
	}
}
