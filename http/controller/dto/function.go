package dto

import "encoding/json"

type CreateFunctionRequestDTO struct {
	Name           string            `json:"name" binding:"required,functionname"`
	Description    string            `json:"description" binding:"max=1024"`
	Code           string            `json:"code" binding:"required,max=1048576"`
	Env            map[string]string `json:"env"`
	TimeoutSeconds int               `json:"timeout_seconds" binding:"omitempty,min=1,max=900"`
}

type UpdateFunctionRequestDTO struct {
	Description    *string            `json:"description" binding:"omitempty,max=1024"`
	Code           *string            `json:"code" binding:"omitempty,min=1,max=1048576"`
	Env            *map[string]string `json:"env"`
	TimeoutSeconds *int               `json:"timeout_seconds" binding:"omitempty,min=1,max=900"`
}

type InvokeFunctionRequestDTO struct {
	Payload json.RawMessage   `json:"payload"`
	Headers map[string]string `json:"headers"`
}

type InvokeFunctionResponseDTO struct {
	ExecutionID string          `json:"execution_id"`
	Status      string          `json:"status"`
	StatusCode  int             `json:"status_code"`
	Body        json.RawMessage `json:"body,omitempty"`
	Error       string          `json:"error,omitempty"`
	DurationMs  int64           `json:"duration_ms"`
}
