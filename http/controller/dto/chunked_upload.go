package dto

import "time"

// InitUploadRequest starts a resumable upload. The server picks the final
// chunk size inside its configured bounds.
type InitUploadRequest struct {
	FileName           string `json:"file_name" binding:"required,max=512"`
	Path               string `json:"path" binding:"omitempty,objectpath"`
	FileSize           int64  `json:"file_size" binding:"required,gt=0"`
	ContentType        string `json:"content_type" binding:"omitempty,max=255"`
	PreferredChunkSize int64  `json:"preferred_chunk_size" binding:"omitempty,gt=0"`
	Overwrite          bool   `json:"overwrite"`
}

type InitUploadResponse struct {
	UploadID    string    `json:"upload_id"`
	Path        string    `json:"path"`
	ChunkSize   int64     `json:"chunk_size"`
	TotalChunks int       `json:"total_chunks"`
	ExpiresAt   time.Time `json:"expires_at"`
}

type UploadChunkResponse struct {
	ChunkIndex     int    `json:"chunk_index"`
	UploadedChunks int    `json:"uploaded_chunks"`
	TotalChunks    int    `json:"total_chunks"`
	Status         string `json:"status"`
}

type CompleteUploadResponse struct {
	UploadID  string `json:"upload_id"`
	Status    string `json:"status"`
	StatusURL string `json:"status_url"`
}

type UploadProgressResponse struct {
	UploadID       string    `json:"upload_id"`
	Path           string    `json:"path"`
	UploadedChunks int       `json:"uploaded_chunks"`
	TotalChunks    int       `json:"total_chunks"`
	Status         string    `json:"status"`
	Progress       float64   `json:"progress"` // percentage 0-100
	FileID         *string   `json:"file_id,omitempty"`
	Error          string    `json:"error,omitempty"`
	ExpiresAt      time.Time `json:"expires_at"`
	MissingChunks  []int     `json:"missing_chunks,omitempty"`
}
