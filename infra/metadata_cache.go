package infra

import (
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/tnqbao/gau-platform/entity"
)

// FileMetadataCache keeps recently downloaded file rows (with their bucket
// loaded) in process memory. Entries expire after ttl so that a change made
// through another instance becomes visible within that window.
type FileMetadataCache struct {
	lru *expirable.LRU[string, entity.File]
}

func NewFileMetadataCache(size int, ttl time.Duration) *FileMetadataCache {
	return &FileMetadataCache{lru: expirable.NewLRU[string, entity.File](size, nil, ttl)}
}

func fileIDKey(id uuid.UUID) string {
	return "id:" + id.String()
}

func filePathKey(ownerID uuid.UUID, bucketName, path string) string {
	return "path:" + ownerID.String() + "/" + bucketName + "/" + path
}

func (c *FileMetadataCache) GetByID(id uuid.UUID) (*entity.File, bool) {
	f, ok := c.lru.Get(fileIDKey(id))
	if !ok {
		return nil, false
	}
	return &f, true
}

func (c *FileMetadataCache) GetByPath(ownerID uuid.UUID, bucketName, path string) (*entity.File, bool) {
	f, ok := c.lru.Get(filePathKey(ownerID, bucketName, path))
	if !ok {
		return nil, false
	}
	return &f, true
}

// Add stores file under its id and, when the bucket is loaded, its public path.
func (c *FileMetadataCache) Add(file *entity.File) {
	c.lru.Add(fileIDKey(file.ID), *file)
	if file.Bucket != nil {
		c.lru.Add(filePathKey(file.Bucket.OwnerID, file.Bucket.Name, file.Path), *file)
	}
}

func (c *FileMetadataCache) Invalidate(file *entity.File) {
	c.lru.Remove(fileIDKey(file.ID))
	if file.Bucket != nil {
		c.lru.Remove(filePathKey(file.Bucket.OwnerID, file.Bucket.Name, file.Path))
	}
}

// Purge drops everything, used when a bucket's settings change.
func (c *FileMetadataCache) Purge() {
	c.lru.Purge()
}
