package repository

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type APIKeyRepository struct {
	db *gorm.DB
}

func NewAPIKeyRepository(db *gorm.DB) *APIKeyRepository {
	return &APIKeyRepository{db: db}
}

func (r *APIKeyRepository) Create(key *entity.APIKey) error {
	return r.db.Create(key).Error
}

func (r *APIKeyRepository) FindByHash(hash string) (*entity.APIKey, error) {
	var key entity.APIKey
	if err := r.db.Where("key_hash = ?", hash).First(&key).Error; err != nil {
		return nil, translate(err, apperror.InvalidToken(), nil)
	}
	return &key, nil
}

func (r *APIKeyRepository) FindOwned(id, userID uuid.UUID) (*entity.APIKey, error) {
	var key entity.APIKey
	if err := r.db.Where("id = ? AND user_id = ?", id, userID).First(&key).Error; err != nil {
		return nil, translate(err, apperror.New(apperror.ErrCodeNotFound, "API key not found.", http.StatusNotFound), nil)
	}
	return &key, nil
}

func (r *APIKeyRepository) ListByUser(userID uuid.UUID) ([]entity.APIKey, error) {
	var keys []entity.APIKey
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&keys).Error
	return keys, err
}

func (r *APIKeyRepository) Revoke(id uuid.UUID, at time.Time) error {
	return r.db.Model(&entity.APIKey{}).Where("id = ? AND revoked_at IS NULL", id).Update("revoked_at", at).Error
}

func (r *APIKeyRepository) TouchLastUsed(id uuid.UUID, at time.Time) error {
	return r.db.Model(&entity.APIKey{}).Where("id = ?", id).Update("last_used_at", at).Error
}
