package dto

type CreateWebhookRequestDTO struct {
	Name       string `json:"name" binding:"required,max=128"`
	FunctionID string `json:"function_id" binding:"required,uuid"`
	Enabled    *bool  `json:"enabled"`
}

type UpdateWebhookRequestDTO struct {
	Name       *string `json:"name" binding:"omitempty,min=1,max=128"`
	FunctionID *string `json:"function_id" binding:"omitempty,uuid"`
	Enabled    *bool   `json:"enabled"`
}

// WebhookSecretResponseDTO is only returned on creation and rotation.
type WebhookSecretResponseDTO struct {
	ID     string `json:"id"`
	Secret string `json:"secret"`
	URL    string `json:"url"`
}
