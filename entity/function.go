package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type DeploymentStatus string

const (
	DeploymentStatusPending    DeploymentStatus = "pending"
	DeploymentStatusDeployed   DeploymentStatus = "deployed"
	DeploymentStatusFailed     DeploymentStatus = "failed"
	DeploymentStatusUndeployed DeploymentStatus = "undeployed"
)

const RuntimeDeno = "deno"

type Function struct {
	ID             uuid.UUID        `json:"id" gorm:"type:uuid;primaryKey"`
	OwnerID        uuid.UUID        `json:"owner_id" gorm:"type:uuid;not null;uniqueIndex:idx_function_owner_name"`
	Name           string           `json:"name" gorm:"type:varchar(64);not null;uniqueIndex:idx_function_owner_name"`
	Description    string           `json:"description" gorm:"type:text"`
	Code           string           `json:"code" gorm:"type:text;not null"`
	Runtime        string           `json:"runtime" gorm:"type:varchar(32);not null;default:'deno'"`
	Env            datatypes.JSON   `json:"env" gorm:"type:json"`
	TimeoutSeconds int              `json:"timeout_seconds" gorm:"not null;default:30"`
	Version        int              `json:"version" gorm:"not null;default:1"`
	Status         DeploymentStatus `json:"status" gorm:"type:varchar(32);not null;default:'pending';index"`
	DeployError    string           `json:"deploy_error,omitempty" gorm:"type:text"`
	DeployedAt     *time.Time       `json:"deployed_at,omitempty"`
	CreatedAt      time.Time        `json:"created_at" gorm:"not null;autoCreateTime"`
	UpdatedAt      time.Time        `json:"updated_at" gorm:"autoUpdateTime"`
}

func (f *Function) BeforeCreate(tx *gorm.DB) error {
	if f.ID == uuid.Nil {
		f.ID = uuid.New()
	}
	return nil
}

// EnvMap decodes the stored environment. A malformed column yields an empty
// map.
func (f *Function) EnvMap() map[string]string {
	env := map[string]string{}
	if len(f.Env) > 0 {
		_ = json.Unmarshal(f.Env, &env)
	}
	return env
}
