package backend

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	awshttp "github.com/aws/aws-sdk-go-v2/aws/transport/http"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/tnqbao/gau-platform/config"
	"github.com/tnqbao/gau-platform/utils"
)

// deleteBatchSize is the DeleteObjects per-request limit.
const deleteBatchSize = 1000

type S3Backend struct {
	client *s3.Client
	region string
}

func NewS3Backend(ctx context.Context, cfg *config.EnvConfig) (*S3Backend, error) {
	opts := []func(*awsconfig.LoadOptions) error{awsconfig.WithRegion(cfg.S3.Region)}
	if cfg.S3.AccessKeyID != "" && cfg.S3.SecretAccessKey != "" {
		opts = append(opts, awsconfig.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.S3.AccessKeyID, cfg.S3.SecretAccessKey, ""),
		))
	}

	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.S3.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.S3.Endpoint)
		}
		o.UsePathStyle = cfg.S3.UsePathStyle
	})

	return &S3Backend{client: client, region: cfg.S3.Region}, nil
}

// NewS3BackendWithClient wraps an existing client.
func NewS3BackendWithClient(client *s3.Client, region string) *S3Backend {
	return &S3Backend{client: client, region: region}
}

func (b *S3Backend) Name() string { return "s3" }

func (b *S3Backend) Ping(ctx context.Context) error {
	if _, err := b.client.ListBuckets(ctx, &s3.ListBucketsInput{MaxBuckets: aws.Int32(1)}); err != nil {
		return fmt.Errorf("s3 ping failed: %w", err)
	}
	return nil
}

// EnsureBucket creates the bucket. S3 has no bucket quotas, so quotaBytes
// is only enforced by the API's size accounting.
func (b *S3Backend) EnsureBucket(ctx context.Context, bucket string, _ int64) error {
	if _, err := b.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err == nil {
		return nil
	}

	input := &s3.CreateBucketInput{Bucket: aws.String(bucket)}
	if b.region != "" && b.region != "us-east-1" {
		input.CreateBucketConfiguration = &types.CreateBucketConfiguration{
			LocationConstraint: types.BucketLocationConstraint(b.region),
		}
	}
	if _, err := b.client.CreateBucket(ctx, input); err != nil {
		var owned *types.BucketAlreadyOwnedByYou
		var exists *types.BucketAlreadyExists
		if errors.As(err, &owned) || errors.As(err, &exists) {
			return nil
		}
		return fmt.Errorf("failed to create bucket: %w", err)
	}
	return nil
}

func (b *S3Backend) DeleteBucket(ctx context.Context, bucket string) error {
	if _, err := b.DeletePrefix(ctx, bucket, ""); err != nil {
		if errors.Is(err, ErrBucketNotFound) {
			return nil
		}
		return err
	}
	if _, err := b.client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String(bucket)}); err != nil {
		if errors.Is(b.translate(err), ErrBucketNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete bucket: %w", err)
	}
	return nil
}

// PutObject sends bodies that fit in one part with a single PutObject and
// streams anything larger as a multipart upload, buffering one part at a
// time.
func (b *S3Backend) PutObject(ctx context.Context, bucket, key string, body io.Reader, size int64, contentType string) (*ObjectInfo, error) {
	buf := make([]byte, partSize)
	n, err := io.ReadFull(body, buf)
	switch {
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return b.putSingle(ctx, bucket, key, buf[:n], contentType)
	case err != nil:
		return nil, err
	}

	created, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, b.translate(err)
	}
	uploadID := created.UploadId

	abort := func(cause error) (*ObjectInfo, error) {
		_, _ = b.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
			Bucket:   aws.String(bucket),
			Key:      aws.String(key),
			UploadId: uploadID,
		})
		return nil, cause
	}

	var parts []types.CompletedPart
	var total int64
	for partNumber := int32(1); ; partNumber++ {
		if n > 0 {
			out, err := b.client.UploadPart(ctx, &s3.UploadPartInput{
				Bucket:        aws.String(bucket),
				Key:           aws.String(key),
				UploadId:      uploadID,
				PartNumber:    aws.Int32(partNumber),
				Body:          bytes.NewReader(buf[:n]),
				ContentLength: aws.Int64(int64(n)),
			})
			if err != nil {
				return abort(b.translate(err))
			}
			parts = append(parts, types.CompletedPart{ETag: out.ETag, PartNumber: aws.Int32(partNumber)})
			total += int64(n)
		}

		n, err = io.ReadFull(body, buf)
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			if n == 0 {
				break
			}
			err = nil
		}
		if err != nil {
			return abort(err)
		}
	}

	done, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        uploadID,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	})
	if err != nil {
		return abort(b.translate(err))
	}
	if size >= 0 && size != total {
		return nil, fmt.Errorf("short body: expected %d bytes, got %d", size, total)
	}
	return &ObjectInfo{Key: key, ETag: aws.ToString(done.ETag), Size: total, ContentType: contentType}, nil
}

func (b *S3Backend) putSingle(ctx context.Context, bucket, key string, data []byte, contentType string) (*ObjectInfo, error) {
	out, err := b.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(bucket),
		Key:           aws.String(key),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
		ContentType:   aws.String(contentType),
	})
	if err != nil {
		return nil, b.translate(err)
	}
	return &ObjectInfo{Key: key, ETag: aws.ToString(out.ETag), Size: int64(len(data)), ContentType: contentType}, nil
}

func (b *S3Backend) StatObject(ctx context.Context, bucket, key string) (*ObjectInfo, error) {
	out, err := b.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		return nil, b.translate(err)
	}
	return &ObjectInfo{
		Key:          key,
		ETag:         aws.ToString(out.ETag),
		Size:         aws.ToInt64(out.ContentLength),
		ContentType:  aws.ToString(out.ContentType),
		LastModified: aws.ToTime(out.LastModified),
	}, nil
}

func (b *S3Backend) GetObject(ctx context.Context, bucket, key string, rng *utils.ByteRange) (io.ReadCloser, error) {
	input := &s3.GetObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	}
	if rng != nil {
		input.Range = aws.String(rng.Header())
	}
	out, err := b.client.GetObject(ctx, input)
	if err != nil {
		return nil, b.translate(err)
	}
	return out.Body, nil
}

func (b *S3Backend) DeleteObject(ctx context.Context, bucket, key string) error {
	_, err := b.client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String(bucket),
		Key:    aws.String(key),
	})
	if err != nil {
		if errors.Is(b.translate(err), ErrObjectNotFound) {
			return nil
		}
		return fmt.Errorf("failed to delete object: %w", err)
	}
	return nil
}

func (b *S3Backend) DeletePrefix(ctx context.Context, bucket, prefix string) (int, error) {
	paginator := s3.NewListObjectsV2Paginator(b.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(bucket),
		Prefix: aws.String(prefix),
	})

	deleted := 0
	batch := make([]types.ObjectIdentifier, 0, deleteBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		out, err := b.client.DeleteObjects(ctx, &s3.DeleteObjectsInput{
			Bucket: aws.String(bucket),
			Delete: &types.Delete{Objects: batch, Quiet: aws.Bool(true)},
		})
		if err != nil {
			return b.translate(err)
		}
		if len(out.Errors) > 0 {
			return fmt.Errorf("failed to delete %s: %s", aws.ToString(out.Errors[0].Key), aws.ToString(out.Errors[0].Message))
		}
		deleted += len(batch)
		batch = batch[:0]
		return nil
	}

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return 0, b.translate(err)
		}
		for _, object := range page.Contents {
			batch = append(batch, types.ObjectIdentifier{Key: object.Key})
			if len(batch) == deleteBatchSize {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}
	return deleted, nil
}

// ComposeObject copies each source as one part of a multipart upload, so
// every source except the last must be at least 5 MiB.
func (b *S3Backend) ComposeObject(ctx context.Context, bucket, key, srcBucket string, sources []string, contentType string) (*ObjectInfo, error) {
	if len(sources) == 0 {
		return nil, fmt.Errorf("compose requires at least one source")
	}

	created, err := b.client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		ContentType: aws.String(contentType),
	})
	if err != nil {
		return nil, b.translate(err)
	}

	parts := make([]types.CompletedPart, 0, len(sources))
	for i, source := range sources {
		partNumber := aws.Int32(int32(i + 1))
		out, err := b.client.UploadPartCopy(ctx, &s3.UploadPartCopyInput{
			Bucket:     aws.String(bucket),
			Key:        aws.String(key),
			UploadId:   created.UploadId,
			PartNumber: partNumber,
			CopySource: aws.String(copySource(srcBucket, source)),
		})
		if err != nil {
			_, _ = b.client.AbortMultipartUpload(context.WithoutCancel(ctx), &s3.AbortMultipartUploadInput{
				Bucket:   aws.String(bucket),
				Key:      aws.String(key),
				UploadId: created.UploadId,
			})
			return nil, b.translate(err)
		}
		parts = append(parts, types.CompletedPart{ETag: out.CopyPartResult.ETag, PartNumber: partNumber})
	}

	if _, err := b.client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String(bucket),
		Key:             aws.String(key),
		UploadId:        created.UploadId,
		MultipartUpload: &types.CompletedMultipartUpload{Parts: parts},
	}); err != nil {
		return nil, b.translate(err)
	}

	return b.StatObject(ctx, bucket, key)
}

func copySource(bucket, key string) string {
	return url.PathEscape(bucket) + "/" + utils.EscapePath(key)
}

func (b *S3Backend) translate(err error) error {
	var noKey *types.NoSuchKey
	var notFound *types.NotFound
	var noBucket *types.NoSuchBucket
	switch {
	case errors.As(err, &noBucket):
		return ErrBucketNotFound
	case errors.As(err, &noKey), errors.As(err, &notFound):
		return ErrObjectNotFound
	}

	var respErr *awshttp.ResponseError
	if errors.As(err, &respErr) && respErr.HTTPStatusCode() == http.StatusNotFound {
		if strings.Contains(respErr.Error(), "NoSuchBucket") {
			return ErrBucketNotFound
		}
		return ErrObjectNotFound
	}
	return err
}
