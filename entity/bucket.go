package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type Bucket struct {
	ID               uuid.UUID      `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID          uuid.UUID      `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_bucket_owner_name"`
	Name             string         `json:"name" gorm:"type:varchar(63);not null;uniqueIndex:idx_bucket_owner_name"`
	StorageName      string         `json:"-" gorm:"type:varchar(63);not null;uniqueIndex"`
	Public           bool           `json:"public" gorm:"not null;default:false"`
	FileSizeLimit    int64          `json:"file_size_limit" gorm:"not null;default:0"`
	AllowedMimeTypes datatypes.JSON `json:"allowed_mime_types" gorm:"type:json"`
	QuotaBytes       int64          `json:"quota_bytes" gorm:"not null;default:0"`
	CreatedAt        time.Time      `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt        time.Time      `json:"updated_at" gorm:"autoUpdateTime"`

	Files []File `json:"-" gorm:"foreignKey:BucketID;constraint:OnDelete:CASCADE"`
}

func (b *Bucket) BeforeCreate(tx *gorm.DB) error {
	if b.ID == uuid.Nil {
		b.ID = uuid.New()
	}
	if b.StorageName == "" {
		b.StorageName = StorageNameFor(b.ID)
	}
	return nil
}

// StorageNameFor derives the object store bucket name from the bucket ID so
// user-facing names can repeat across owners.
func StorageNameFor(id uuid.UUID) string {
	return "b-" + stripDashes(id.String())
}

func stripDashes(s string) string {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); i++ {
		if s[i] != '-' {
			out = append(out, s[i])
		}
	}
	return string(out)
}
