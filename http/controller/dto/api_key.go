package dto

import (
	"time"

	"github.com/tnqbao/gau-platform/entity"
)

type CreateAPIKeyRequestDTO struct {
	Name      string     `json:"name" binding:"required,max=128"`
	ExpiresAt *time.Time `json:"expires_at"`
}

// CreateAPIKeyResponseDTO carries the plaintext key, shown once.
type CreateAPIKeyResponseDTO struct {
	APIKey entity.APIKey `json:"api_key"`
	Key    string        `json:"key"`
}
