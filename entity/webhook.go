package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Webhook struct {
	ID             uuid.UUID  `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID        uuid.UUID  `json:"owner_id" gorm:"type:uuid;not null;index"`
	FunctionID     uuid.UUID  `json:"function_id" gorm:"type:uuid;not null;index"`
	Name           string     `json:"name" gorm:"type:varchar(128);not null"`
	Secret         string     `json:"-" gorm:"type:varchar(128);not null"`
	Enabled        bool       `json:"enabled" gorm:"not null;default:true"`
	LastDeliveryAt *time.Time `json:"last_delivery_at,omitempty"`
	CreatedAt      time.Time  `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time  `json:"updated_at" gorm:"autoUpdateTime"`

	Function *Function `json:"-" gorm:"foreignKey:FunctionID;constraint:OnDelete:CASCADE"`
}

func (w *Webhook) BeforeCreate(tx *gorm.DB) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return nil
}
