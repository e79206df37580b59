package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type WebhookRepository struct {
	db *gorm.DB
}

func NewWebhookRepository(db *gorm.DB) *WebhookRepository {
	return &WebhookRepository{db: db}
}

func (r *WebhookRepository) Create(webhook *entity.Webhook) error {
	return r.db.Create(webhook).Error
}

func (r *WebhookRepository) FindByID(id uuid.UUID) (*entity.Webhook, error) {
	var webhook entity.Webhook
	if err := r.db.Where("id = ?", id).First(&webhook).Error; err != nil {
		return nil, translate(err, apperror.WebhookNotFound(id.String()), nil)
	}
	return &webhook, nil
}

func (r *WebhookRepository) FindOwned(id, ownerID uuid.UUID) (*entity.Webhook, error) {
	var webhook entity.Webhook
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&webhook).Error; err != nil {
		return nil, translate(err, apperror.WebhookNotFound(id.String()), nil)
	}
	return &webhook, nil
}

func (r *WebhookRepository) ListByOwner(ownerID uuid.UUID) ([]entity.Webhook, error) {
	var webhooks []entity.Webhook
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&webhooks).Error
	return webhooks, err
}

func (r *WebhookRepository) Update(webhook *entity.Webhook, updates map[string]interface{}) error {
	return r.db.Model(webhook).Updates(updates).Error
}

func (r *WebhookRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&entity.Webhook{}).Error
}

func (r *WebhookRepository) TouchDelivery(id uuid.UUID, at time.Time) error {
	return r.db.Model(&entity.Webhook{}).Where("id = ?", id).Update("last_delivery_at", at).Error
}
