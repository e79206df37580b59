package backend

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/tnqbao/gau-platform/utils"
)

type memoryObject struct {
	data        []byte
	etag        string
	contentType string
	modified    time.Time
}

// MemoryBackend keeps objects in process memory. It is used for local
// development and by the object store tests.
type MemoryBackend struct {
	mu      sync.RWMutex
	buckets map[string]map[string]*memoryObject
}

func NewMemoryBackend() *MemoryBackend {
	return &MemoryBackend{buckets: make(map[string]map[string]*memoryObject)}
}

func (b *MemoryBackend) Name() string { return "memory" }

func (b *MemoryBackend) Ping(context.Context) error { return nil }

func (b *MemoryBackend) EnsureBucket(_ context.Context, bucket string, _ int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.buckets[bucket]; !ok {
		b.buckets[bucket] = make(map[string]*memoryObject)
	}
	return nil
}

func (b *MemoryBackend) DeleteBucket(_ context.Context, bucket string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.buckets, bucket)
	return nil
}

func (b *MemoryBackend) PutObject(ctx context.Context, bucket, key string, body io.Reader, _ int64, contentType string) (*ObjectInfo, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, contextReader{ctx: ctx, r: body}); err != nil {
		return nil, err
	}
	sum := md5.Sum(buf.Bytes())
	obj := &memoryObject{
		data:        buf.Bytes(),
		etag:        hex.EncodeToString(sum[:]),
		contentType: contentType,
		modified:    time.Now().UTC(),
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	objects, ok := b.buckets[bucket]
	if !ok {
		return nil, ErrBucketNotFound
	}
	objects[key] = obj
	return obj.info(key), nil
}

func (b *MemoryBackend) StatObject(_ context.Context, bucket, key string) (*ObjectInfo, error) {
	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	return obj.info(key), nil
}

func (b *MemoryBackend) GetObject(_ context.Context, bucket, key string, rng *utils.ByteRange) (io.ReadCloser, error) {
	obj, err := b.lookup(bucket, key)
	if err != nil {
		return nil, err
	}
	data := obj.data
	if rng != nil {
		end := rng.End + 1
		if end > int64(len(data)) {
			end = int64(len(data))
		}
		data = data[rng.Start:end]
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (b *MemoryBackend) DeleteObject(_ context.Context, bucket, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if objects, ok := b.buckets[bucket]; ok {
		delete(objects, key)
	}
	return nil
}

func (b *MemoryBackend) DeletePrefix(_ context.Context, bucket, prefix string) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	objects, ok := b.buckets[bucket]
	if !ok {
		return 0, ErrBucketNotFound
	}
	deleted := 0
	for key := range objects {
		if strings.HasPrefix(key, prefix) {
			delete(objects, key)
			deleted++
		}
	}
	return deleted, nil
}

func (b *MemoryBackend) ComposeObject(ctx context.Context, bucket, key, srcBucket string, sources []string, contentType string) (*ObjectInfo, error) {
	var buf bytes.Buffer
	for _, source := range sources {
		obj, err := b.lookup(srcBucket, source)
		if err != nil {
			return nil, err
		}
		buf.Write(obj.data)
	}
	return b.PutObject(ctx, bucket, key, &buf, int64(buf.Len()), contentType)
}

// Keys lists the keys of bucket in order.
func (b *MemoryBackend) Keys(bucket string) []string {
	b.mu.RLock()
	defer b.mu.RUnlock()
	keys := make([]string, 0, len(b.buckets[bucket]))
	for key := range b.buckets[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (b *MemoryBackend) lookup(bucket, key string) (*memoryObject, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	objects, ok := b.buckets[bucket]
	if !ok {
		return nil, ErrBucketNotFound
	}
	obj, ok := objects[key]
	if !ok {
		return nil, ErrObjectNotFound
	}
	return obj, nil
}

func (o *memoryObject) info(key string) *ObjectInfo {
	return &ObjectInfo{
		Key:          key,
		ETag:         o.etag,
		Size:         int64(len(o.data)),
		ContentType:  o.contentType,
		LastModified: o.modified,
	}
}

// contextReader stops a copy once ctx is done.
type contextReader struct {
	ctx context.Context
	r   io.Reader
}

func (r contextReader) Read(p []byte) (int, error) {
	if err := r.ctx.Err(); err != nil {
		return 0, err
	}
	return r.r.Read(p)
}
