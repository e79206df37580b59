package dto

type CreateBucketRequestDTO struct {
	Name             string   `json:"name" binding:"required,bucketname"`
	Public           bool     `json:"public"`
	FileSizeLimit    int64    `json:"file_size_limit" binding:"gte=0"`
	AllowedMimeTypes []string `json:"allowed_mime_types" binding:"omitempty,dive,required,max=255"`
	QuotaBytes       int64    `json:"quota_bytes" binding:"gte=0"`
}

// UpdateBucketRequestDTO uses pointers so omitted fields stay untouched.
type UpdateBucketRequestDTO struct {
	Public           *bool     `json:"public"`
	FileSizeLimit    *int64    `json:"file_size_limit" binding:"omitempty,gte=0"`
	AllowedMimeTypes *[]string `json:"allowed_mime_types" binding:"omitempty,dive,required,max=255"`
	QuotaBytes       *int64    `json:"quota_bytes" binding:"omitempty,gte=0"`
}
