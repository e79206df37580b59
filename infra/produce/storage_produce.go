package produce

import (
	"context"
	"time"
)

const (
	StorageExchange = "storage.exchange"

	// StorageDeleteQueue receives object, prefix and bucket deletions.
	StorageDeleteQueue     = "storage.delete"
	DeleteObjectRoutingKey = "storage.delete_object"
	DeletePrefixRoutingKey = "storage.delete_prefix"
	DeleteBucketRoutingKey = "storage.delete_bucket"

	ComposeUploadQueue      = "upload.compose"
	ComposeUploadRoutingKey = "upload.compose"
)

type DeleteKind string

const (
	DeleteKindObject DeleteKind = "object"
	DeleteKindPrefix DeleteKind = "prefix"
	DeleteKindBucket DeleteKind = "bucket"
)

// StorageDeleteMessage asks the consumer to remove bytes from the object
// store after the metadata has already been deleted.
type StorageDeleteMessage struct {
	Kind          DeleteKind `json:"kind"`
	StorageBucket string     `json:"storage_bucket"`
	Key           string     `json:"key,omitempty"`
	Prefix        string     `json:"prefix,omitempty"`
	UserID        string     `json:"user_id,omitempty"`
	Reason        string     `json:"reason,omitempty"`
	Timestamp     int64      `json:"timestamp"`
}

type ComposeUploadMessage struct {
	UploadID  string `json:"upload_id"`
	BucketID  string `json:"bucket_id"`
	UserID    string `json:"user_id"`
	Timestamp int64  `json:"timestamp"`
}

type StorageProduceService struct {
	publisher Publisher
}

func NewStorageProduceService(publisher Publisher) *StorageProduceService {
	return &StorageProduceService{publisher: publisher}
}

func (s *StorageProduceService) PublishDeleteObject(ctx context.Context, storageBucket, key, userID, reason string) error {
	return s.publishDelete(ctx, DeleteObjectRoutingKey, StorageDeleteMessage{
		Kind:          DeleteKindObject,
		StorageBucket: storageBucket,
		Key:           key,
		UserID:        userID,
		Reason:        reason,
	})
}

func (s *StorageProduceService) PublishDeletePrefix(ctx context.Context, storageBucket, prefix, userID, reason string) error {
	return s.publishDelete(ctx, DeletePrefixRoutingKey, StorageDeleteMessage{
		Kind:          DeleteKindPrefix,
		StorageBucket: storageBucket,
		Prefix:        prefix,
		UserID:        userID,
		Reason:        reason,
	})
}

func (s *StorageProduceService) PublishDeleteBucket(ctx context.Context, storageBucket, userID string) error {
	return s.publishDelete(ctx, DeleteBucketRoutingKey, StorageDeleteMessage{
		Kind:          DeleteKindBucket,
		StorageBucket: storageBucket,
		UserID:        userID,
		Reason:        "bucket deleted",
	})
}

func (s *StorageProduceService) publishDelete(ctx context.Context, routingKey string, msg StorageDeleteMessage) error {
	msg.Timestamp = time.Now().Unix()
	return publishJSON(ctx, s.publisher, StorageExchange, routingKey, msg)
}

// PublishComposeUpload hands a fully uploaded chunked session to the consumer.
func (s *StorageProduceService) PublishComposeUpload(ctx context.Context, msg ComposeUploadMessage) error {
	msg.Timestamp = time.Now().Unix()
	return publishJSON(ctx, s.publisher, StorageExchange, ComposeUploadRoutingKey, msg)
}
