package entity

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ExecutionStatus string

const (
	ExecutionStatusPending   ExecutionStatus = "pending"
	ExecutionStatusRunning   ExecutionStatus = "running"
	ExecutionStatusSucceeded ExecutionStatus = "succeeded"
	ExecutionStatusFailed    ExecutionStatus = "failed"
	ExecutionStatusTimedOut  ExecutionStatus = "timed_out"
)

const (
	TriggerInvoke  = "invoke"
	TriggerWebhook = "webhook"
)

type FunctionExecution struct {
	ID         uuid.UUID       `json:"id" gorm:"type:uuid;primaryKey"`
	FunctionID uuid.UUID       `json:"function_id" gorm:"type:uuid;not null;index"`
	WebhookID  *uuid.UUID      `json:"webhook_id,omitempty" gorm:"type:uuid;index"`
	Trigger    string          `json:"trigger" gorm:"type:varchar(16);not null"`
	Status     ExecutionStatus `json:"status" gorm:"type:varchar(16);not null;index"`
	Request    datatypes.JSON  `json:"request,omitempty" gorm:"type:json"`
	Response   datatypes.JSON  `json:"response,omitempty" gorm:"type:json"`
	StatusCode int             `json:"status_code"`
	Error      string          `json:"error,omitempty" gorm:"type:text"`
	DurationMs int64           `json:"duration_ms"`
	CreatedAt  time.Time       `json:"created_at" gorm:"not null;autoCreateTime;index"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`

	Function *Function `json:"-" gorm:"foreignKey:FunctionID;constraint:OnDelete:CASCADE"`
}

func (e *FunctionExecution) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

type FunctionLog struct {
	ID          uuid.UUID `json:"id" gorm:"type:uuid;primaryKey"`
	FunctionID  uuid.UUID `json:"function_id" gorm:"type:uuid;not null;index"`
	ExecutionID uuid.UUID `json:"execution_id" gorm:"type:uuid;not null;index"`
	Level       string    `json:"level" gorm:"type:varchar(16);not null"`
	Message     string    `json:"message" gorm:"type:text"`
	CreatedAt   time.Time `json:"created_at" gorm:"not null;autoCreateTime;index"`

	Function *Function `json:"-" gorm:"foreignKey:FunctionID;constraint:OnDelete:CASCADE"`
}

func (l *FunctionLog) BeforeCreate(tx *gorm.DB) error {
	if l.ID == uuid.Nil {
		l.ID = uuid.New()
	}
	return nil
}
