package repository

import (
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type BucketRepository struct {
	db *gorm.DB
}

func NewBucketRepository(db *gorm.DB) *BucketRepository {
	return &BucketRepository{db: db}
}

func (r *BucketRepository) Create(bucket *entity.Bucket) error {
	return translate(r.db.Create(bucket).Error, nil, apperror.BucketAlreadyExists(bucket.Name))
}

func (r *BucketRepository) FindByID(id uuid.UUID) (*entity.Bucket, error) {
	var bucket entity.Bucket
	if err := r.db.Where("id = ?", id).First(&bucket).Error; err != nil {
		return nil, translate(err, apperror.BucketNotFound(id.String()), nil)
	}
	return &bucket, nil
}

// FindOwned returns the bucket only when ownerID owns it. Other owners get
// the same not-found error so bucket IDs cannot be probed.
func (r *BucketRepository) FindOwned(id, ownerID uuid.UUID) (*entity.Bucket, error) {
	var bucket entity.Bucket
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&bucket).Error; err != nil {
		return nil, translate(err, apperror.BucketNotFound(id.String()), nil)
	}
	return &bucket, nil
}

func (r *BucketRepository) FindByOwnerAndName(ownerID uuid.UUID, name string) (*entity.Bucket, error) {
	var bucket entity.Bucket
	if err := r.db.Where("owner_id = ? AND name = ?", ownerID, name).First(&bucket).Error; err != nil {
		return nil, translate(err, apperror.BucketNotFound(name), nil)
	}
	return &bucket, nil
}

func (r *BucketRepository) ListByOwner(ownerID uuid.UUID) ([]entity.Bucket, error) {
	var buckets []entity.Bucket
	err := r.db.Where("owner_id = ?", ownerID).Order("created_at ASC").Find(&buckets).Error
	return buckets, err
}

func (r *BucketRepository) Update(bucket *entity.Bucket, updates map[string]interface{}) error {
	return r.db.Model(bucket).Updates(updates).Error
}

func (r *BucketRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&entity.Bucket{}).Error
}

// UsageBytes sums the size of every file recorded in the bucket.
func (r *BucketRepository) UsageBytes(id uuid.UUID) (int64, error) {
	var total int64
	err := r.db.Model(&entity.File{}).
		Where("bucket_id = ?", id).
		Select("COALESCE(SUM(size), 0)").
		Scan(&total).Error
	return total, err
}
