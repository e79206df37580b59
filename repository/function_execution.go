package repository

import (
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type FunctionExecutionRepository struct {
	db *gorm.DB
}

func NewFunctionExecutionRepository(db *gorm.DB) *FunctionExecutionRepository {
	return &FunctionExecutionRepository{db: db}
}

func (r *FunctionExecutionRepository) Create(execution *entity.FunctionExecution) error {
	return r.db.Create(execution).Error
}

func (r *FunctionExecutionRepository) FindByID(id uuid.UUID) (*entity.FunctionExecution, error) {
	var execution entity.FunctionExecution
	if err := r.db.Where("id = ?", id).First(&execution).Error; err != nil {
		return nil, translate(err, apperror.New(apperror.ErrCodeNotFound, "Execution not found.", http.StatusNotFound), nil)
	}
	return &execution, nil
}

// MarkRunning claims a pending execution. It returns false when another
// worker already picked it up or it was finalised.
func (r *FunctionExecutionRepository) MarkRunning(id uuid.UUID, at time.Time) (bool, error) {
	res := r.db.Model(&entity.FunctionExecution{}).
		Where("id = ? AND status = ?", id, entity.ExecutionStatusPending).
		Updates(map[string]interface{}{
			"status":     entity.ExecutionStatusRunning,
			"started_at": at,
		})
	return res.RowsAffected > 0, res.Error
}

// Finish stores the outcome unless the execution was already finalised,
// for example by the stuck-execution sweeper.
func (r *FunctionExecutionRepository) Finish(execution *entity.FunctionExecution) error {
	return r.db.Model(&entity.FunctionExecution{}).
		Where("id = ? AND status IN ?", execution.ID,
			[]entity.ExecutionStatus{entity.ExecutionStatusPending, entity.ExecutionStatusRunning}).
		Updates(map[string]interface{}{
			"status":      execution.Status,
			"response":    execution.Response,
			"status_code": execution.StatusCode,
			"error":       execution.Error,
			"duration_ms": execution.DurationMs,
			"started_at":  execution.StartedAt,
			"finished_at": execution.FinishedAt,
		}).Error
}

func (r *FunctionExecutionRepository) ListByFunction(functionID uuid.UUID, limit int) ([]entity.FunctionExecution, error) {
	var executions []entity.FunctionExecution
	err := r.db.Where("function_id = ?", functionID).Order("created_at DESC").Limit(limit).Find(&executions).Error
	return executions, err
}

func (r *FunctionExecutionRepository) ListByWebhook(webhookID uuid.UUID, limit int) ([]entity.FunctionExecution, error) {
	var executions []entity.FunctionExecution
	err := r.db.Where("webhook_id = ?", webhookID).Order("created_at DESC").Limit(limit).Find(&executions).Error
	return executions, err
}

// FindUnfinishedBefore returns pending or running executions created before
// cutoff, oldest first, with their function preloaded for timeout checks.
// A non-nil after resumes the scan past that execution.
func (r *FunctionExecutionRepository) FindUnfinishedBefore(cutoff time.Time, after *entity.FunctionExecution, limit int) ([]entity.FunctionExecution, error) {
	var executions []entity.FunctionExecution
	query := r.db.Preload("Function").
		Where("status IN ? AND created_at < ?",
			[]entity.ExecutionStatus{entity.ExecutionStatusPending, entity.ExecutionStatusRunning}, cutoff)
	if after != nil {
		query = query.Where("created_at > ? OR (created_at = ? AND id > ?)", after.CreatedAt, after.CreatedAt, after.ID)
	}
	err := query.Order("created_at ASC").Order("id ASC").Limit(limit).Find(&executions).Error
	return executions, err
}

func (r *FunctionExecutionRepository) MarkTimedOut(id uuid.UUID, at time.Time) error {
	return r.db.Model(&entity.FunctionExecution{}).
		Where("id = ? AND status IN ?", id,
			[]entity.ExecutionStatus{entity.ExecutionStatusPending, entity.ExecutionStatusRunning}).
		Updates(map[string]interface{}{
			"status":      entity.ExecutionStatusTimedOut,
			"error":       "execution exceeded its timeout",
			"finished_at": at,
		}).Error
}
