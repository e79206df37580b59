package entity

import (
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type UploadStatus string

const (
	UploadStatusInit       UploadStatus = "INIT"
	UploadStatusUploading  UploadStatus = "UPLOADING"
	UploadStatusProcessing UploadStatus = "PROCESSING"
	UploadStatusCompleted  UploadStatus = "COMPLETED"
	UploadStatusFailed     UploadStatus = "FAILED"
	UploadStatusExpired    UploadStatus = "EXPIRED"
	UploadStatusAborted    UploadStatus = "ABORTED"
)

// IsTerminal reports whether the session can no longer accept chunks.
func (s UploadStatus) IsTerminal() bool {
	switch s {
	case UploadStatusCompleted, UploadStatusFailed, UploadStatusExpired, UploadStatusAborted:
		return true
	}
	return false
}

// UploadSession represents a chunked upload session
type UploadSession struct {
	ID             uuid.UUID    `json:"id" gorm:"type:uuid;primaryKey"`
	BucketID       uuid.UUID    `json:"bucket_id" gorm:"type:uuid;not null;index"`
	UserID         uuid.UUID    `json:"user_id" gorm:"type:uuid;not null;index"`
	FileName       string       `json:"file_name" gorm:"type:varchar(512);not null"`
	Path           string       `json:"path" gorm:"type:varchar(1024);not null"`
	FileSize       int64        `json:"file_size" gorm:"not null"`
	ContentType    string       `json:"content_type" gorm:"type:varchar(255)"`
	Overwrite      bool         `json:"overwrite" gorm:"not null;default:false"`
	ChunkSize      int64        `json:"chunk_size" gorm:"not null"`
	TotalChunks    int          `json:"total_chunks" gorm:"not null"`
	UploadedChunks int          `json:"uploaded_chunks" gorm:"default:0"`
	Status         UploadStatus `json:"status" gorm:"type:varchar(32);not null;default:'INIT';index"`
	TempBucket     string       `json:"-" gorm:"type:varchar(255);not null"`
	TempPrefix     string       `json:"-" gorm:"type:varchar(512);not null"`
	FileID         *uuid.UUID   `json:"file_id,omitempty" gorm:"type:uuid"`
	Error          string       `json:"error,omitempty" gorm:"type:text"`
	CreatedAt      time.Time    `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time    `json:"updated_at" gorm:"autoUpdateTime"`
	ExpiresAt      time.Time    `json:"expires_at" gorm:"not null;index"`

	Bucket *Bucket `json:"bucket,omitempty" gorm:"foreignKey:BucketID;constraint:OnDelete:CASCADE"`
}

func (s *UploadSession) BeforeCreate(tx *gorm.DB) error {
	if s.ID == uuid.Nil {
		s.ID = uuid.New()
	}
	return nil
}

// ExpectedChunkSize is the exact byte count chunk index must carry.
func (s *UploadSession) ExpectedChunkSize(index int) int64 {
	if index < 0 || index >= s.TotalChunks {
		return -1
	}
	if index == s.TotalChunks-1 {
		return s.FileSize - int64(s.TotalChunks-1)*s.ChunkSize
	}
	return s.ChunkSize
}

// ChunkObjectKey is where chunk index is stored in the temp bucket.
func (s *UploadSession) ChunkObjectKey(index int) string {
	return fmt.Sprintf("%schunk_%05d.part", s.TempPrefix, index)
}

// ChunkObjectKeys lists every chunk key in order.
func (s *UploadSession) ChunkObjectKeys() []string {
	keys := make([]string, s.TotalChunks)
	for i := range keys {
		keys[i] = s.ChunkObjectKey(i)
	}
	return keys
}

// ChunkSetKey is the Redis set holding the indexes received so far.
func (s *UploadSession) ChunkSetKey() string {
	return "upload:chunks:" + s.ID.String()
}
