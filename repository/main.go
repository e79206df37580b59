package repository

import (
	"github.com/tnqbao/gau-platform/infra"
	"gorm.io/gorm"
)

type Repository struct {
	db *gorm.DB

	BucketRepo        *BucketRepository
	FileRepo          *FileRepository
	UploadSessionRepo *UploadSessionRepository
	FunctionRepo      *FunctionRepository
	ExecutionRepo     *FunctionExecutionRepository
	FunctionLogRepo   *FunctionLogRepository
	WebhookRepo       *WebhookRepository
	APIKeyRepo        *APIKeyRepository
}

var repository *Repository

func InitRepository(infra *infra.Infra) *Repository {
	repository = NewRepository(infra.Postgres.DB)
	return repository
}

func GetRepository() *Repository {
	if repository == nil {
		panic("repository not initialized")
	}
	return repository
}

func NewRepository(db *gorm.DB) *Repository {
	return &Repository{
		db:                db,
		BucketRepo:        NewBucketRepository(db),
		FileRepo:          NewFileRepository(db),
		UploadSessionRepo: NewUploadSessionRepository(db),
		FunctionRepo:      NewFunctionRepository(db),
		ExecutionRepo:     NewFunctionExecutionRepository(db),
		FunctionLogRepo:   NewFunctionLogRepository(db),
		WebhookRepo:       NewWebhookRepository(db),
		APIKeyRepo:        NewAPIKeyRepository(db),
	}
}

func (r *Repository) WithTransaction(tx *gorm.DB) *Repository {
	return NewRepository(tx)
}

// Transaction runs fn with a repository bound to a single transaction.
func (r *Repository) Transaction(fn func(tx *Repository) error) error {
	return r.db.Transaction(func(tx *gorm.DB) error {
		return fn(r.WithTransaction(tx))
	})
}
