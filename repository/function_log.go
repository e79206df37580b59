package repository

import (
	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type FunctionLogRepository struct {
	db *gorm.DB
}

func NewFunctionLogRepository(db *gorm.DB) *FunctionLogRepository {
	return &FunctionLogRepository{db: db}
}

func (r *FunctionLogRepository) CreateBatch(logs []entity.FunctionLog) error {
	if len(logs) == 0 {
		return nil
	}
	return r.db.CreateInBatches(logs, 100).Error
}

// List returns the newest logs of a function, optionally narrowed to one
// execution.
func (r *FunctionLogRepository) List(functionID uuid.UUID, executionID *uuid.UUID, limit int) ([]entity.FunctionLog, error) {
	query := r.db.Where("function_id = ?", functionID)
	if executionID != nil {
		query = query.Where("execution_id = ?", *executionID)
	}
	var logs []entity.FunctionLog
	err := query.Order("created_at DESC").Limit(limit).Find(&logs).Error
	return logs, err
}
