package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type UploadSessionRepository struct {
	db *gorm.DB
}

func NewUploadSessionRepository(db *gorm.DB) *UploadSessionRepository {
	return &UploadSessionRepository{db: db}
}

func (r *UploadSessionRepository) Create(session *entity.UploadSession) error {
	return r.db.Create(session).Error
}

func (r *UploadSessionRepository) FindByID(id uuid.UUID) (*entity.UploadSession, error) {
	var session entity.UploadSession
	if err := r.db.Where("id = ?", id).First(&session).Error; err != nil {
		return nil, translate(err, apperror.UploadSessionNotFound(id.String()), nil)
	}
	return &session, nil
}

// FindByIDAndBucketID finds an upload session by ID and bucket ID
func (r *UploadSessionRepository) FindByIDAndBucketID(id, bucketID uuid.UUID) (*entity.UploadSession, error) {
	var session entity.UploadSession
	if err := r.db.Where("id = ? AND bucket_id = ?", id, bucketID).First(&session).Error; err != nil {
		return nil, translate(err, apperror.UploadSessionNotFound(id.String()), nil)
	}
	return &session, nil
}

// Transition moves the session to status only if it is currently in one of
// from. It reports whether the row changed, which makes concurrent
// complete/abort calls race-safe.
func (r *UploadSessionRepository) Transition(id uuid.UUID, from []entity.UploadStatus, to entity.UploadStatus, errMsg string) (bool, error) {
	updates := map[string]interface{}{
		"status":     to,
		"updated_at": time.Now(),
	}
	if errMsg != "" {
		updates["error"] = errMsg
	}
	res := r.db.Model(&entity.UploadSession{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(updates)
	return res.RowsAffected > 0, res.Error
}

// SetUploadedChunks records the number of distinct chunks received.
func (r *UploadSessionRepository) SetUploadedChunks(id uuid.UUID, count int) error {
	return r.db.Model(&entity.UploadSession{}).
		Where("id = ? AND status IN ?", id, []entity.UploadStatus{entity.UploadStatusInit, entity.UploadStatusUploading}).
		Updates(map[string]interface{}{
			"uploaded_chunks": count,
			"status":          entity.UploadStatusUploading,
			"updated_at":      time.Now(),
		}).Error
}

func (r *UploadSessionRepository) MarkCompleted(id, fileID uuid.UUID) error {
	return r.db.Model(&entity.UploadSession{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"status":     entity.UploadStatusCompleted,
			"file_id":    fileID,
			"updated_at": time.Now(),
		}).Error
}

// FindExpired returns open sessions whose deadline passed before now.
func (r *UploadSessionRepository) FindExpired(now time.Time, limit int) ([]entity.UploadSession, error) {
	var sessions []entity.UploadSession
	err := r.db.Where("expires_at < ? AND status IN ?", now,
		[]entity.UploadStatus{entity.UploadStatusInit, entity.UploadStatusUploading}).
		Order("expires_at ASC").Limit(limit).Find(&sessions).Error
	return sessions, err
}
