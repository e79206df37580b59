package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type File struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	BucketID    uuid.UUID `json:"bucket_id" gorm:"type:uuid;not null;uniqueIndex:idx_file_bucket_path"`
	OwnerID     uuid.UUID `json:"owner_id" gorm:"type:uuid;not null;index"`
	Path        string    `json:"path" gorm:"type:varchar(1024);not null;uniqueIndex:idx_file_bucket_path"`
	Name        string    `json:"name" gorm:"type:varchar(512);not null"`
	ParentPath  string    `json:"parent_path" gorm:"type:varchar(1024);index"`
	ContentType string    `json:"content_type" gorm:"type:varchar(255)"`
	Size        int64     `json:"size" gorm:"not null"`
	ETag        string    `json:"etag" gorm:"type:varchar(255)"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt   time.Time `json:"updated_at" gorm:"autoUpdateTime"`

	Bucket *Bucket `json:"bucket,omitempty" gorm:"foreignKey:BucketID;constraint:OnDelete:CASCADE"`
}

func (f *File) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}
