package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type FileRepository struct {
	db *gorm.DB
}

func NewFileRepository(db *gorm.DB) *FileRepository {
	return &FileRepository{db: db}
}

func (r *FileRepository) Create(file *entity.File) error {
	return translate(r.db.Create(file).Error, nil, apperror.FileAlreadyExists(file.Path))
}

// Save inserts the file or, when a row already exists at the same path,
// replaces its content metadata and keeps the original ID.
func (r *FileRepository) Save(file *entity.File) error {
	existing, err := r.FindByBucketAndPath(file.BucketID, file.Path)
	if err != nil {
		if apperror.HasCode(err, apperror.ErrCodeFileNotFound) {
			return r.Create(file)
		}
		return err
	}
	now := time.Now()
	if err := r.db.Model(existing).Updates(map[string]interface{}{
		"content_type": file.ContentType,
		"size":         file.Size,
		"etag":         file.ETag,
		"owner_id":     file.OwnerID,
		"updated_at":   now,
	}).Error; err != nil {
		return err
	}
	file.ID = existing.ID
	file.Name = existing.Name
	file.ParentPath = existing.ParentPath
	file.CreatedAt = existing.CreatedAt
	file.UpdatedAt = now
	return nil
}

func (r *FileRepository) FindByID(id uuid.UUID) (*entity.File, error) {
	var file entity.File
	if err := r.db.Where("id = ?", id).First(&file).Error; err != nil {
		return nil, translate(err, apperror.FileNotFound(id.String()), nil)
	}
	return &file, nil
}

func (r *FileRepository) FindByBucketAndPath(bucketID uuid.UUID, path string) (*entity.File, error) {
	var file entity.File
	if err := r.db.Where("bucket_id = ? AND path = ?", bucketID, path).First(&file).Error; err != nil {
		return nil, translate(err, apperror.FileNotFound(path), nil)
	}
	return &file, nil
}

// FindByIDWithBucket loads the file together with its bucket, as needed
// to serve a download.
func (r *FileRepository) FindByIDWithBucket(id uuid.UUID) (*entity.File, error) {
	var file entity.File
	if err := r.db.Preload("Bucket").Where("id = ?", id).First(&file).Error; err != nil {
		return nil, translate(err, apperror.FileNotFound(id.String()), nil)
	}
	return &file, nil
}

// FindByPublicPath resolves /public/<owner>/<bucket>/<path> URLs.
func (r *FileRepository) FindByPublicPath(ownerID uuid.UUID, bucketName, path string) (*entity.File, error) {
	var file entity.File
	err := r.db.Preload("Bucket").
		Joins("JOIN buckets ON buckets.id = files.bucket_id").
		Where("buckets.owner_id = ? AND buckets.name = ? AND files.path = ?", ownerID, bucketName, path).
		First(&file).Error
	if err != nil {
		return nil, translate(err, apperror.FileNotFound(path), nil)
	}
	return &file, nil
}

// ListByBucket returns files whose path starts with prefix, ordered by path.
func (r *FileRepository) ListByBucket(bucketID uuid.UUID, prefix string, limit, offset int) ([]entity.File, int64, error) {
	scope := func(db *gorm.DB) *gorm.DB {
		db = db.Where("bucket_id = ?", bucketID)
		if prefix != "" {
			db = db.Where(`path LIKE ? ESCAPE '\'`, likePrefix(prefix))
		}
		return db
	}

	var total int64
	if err := r.db.Model(&entity.File{}).Scopes(scope).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var files []entity.File
	err := r.db.Scopes(scope).Order("path ASC").Limit(limit).Offset(offset).Find(&files).Error
	return files, total, err
}

func (r *FileRepository) CountByBucket(bucketID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.Model(&entity.File{}).Where("bucket_id = ?", bucketID).Count(&count).Error
	return count, err
}

func (r *FileRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&entity.File{}).Error
}

func (r *FileRepository) DeleteByBucket(bucketID uuid.UUID) error {
	return r.db.Where("bucket_id = ?", bucketID).Delete(&entity.File{}).Error
}
