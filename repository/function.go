package repository

import (
	"time"

	"github.com/google/uuid"
	"github.com/tnqbao/gau-platform/apperror"
	"github.com/tnqbao/gau-platform/entity"
	"gorm.io/gorm"
)

type FunctionRepository struct {
	db *gorm.DB
}

func NewFunctionRepository(db *gorm.DB) *FunctionRepository {
	return &FunctionRepository{db: db}
}

func (r *FunctionRepository) Create(function *entity.Function) error {
	return translate(r.db.Create(function).Error, nil, apperror.FunctionAlreadyExists(function.Name))
}

func (r *FunctionRepository) FindByID(id uuid.UUID) (*entity.Function, error) {
	var function entity.Function
	if err := r.db.Where("id = ?", id).First(&function).Error; err != nil {
		return nil, translate(err, apperror.FunctionNotFound(id.String()), nil)
	}
	return &function, nil
}

func (r *FunctionRepository) FindOwned(id, ownerID uuid.UUID) (*entity.Function, error) {
	var function entity.Function
	if err := r.db.Where("id = ? AND owner_id = ?", id, ownerID).First(&function).Error; err != nil {
		return nil, translate(err, apperror.FunctionNotFound(id.String()), nil)
	}
	return &function, nil
}

func (r *FunctionRepository) ListByOwner(ownerID uuid.UUID) ([]entity.Function, error) {
	var functions []entity.Function
	err := r.db.Where("owner_id = ?", ownerID).Order("name ASC").Find(&functions).Error
	return functions, err
}

func (r *FunctionRepository) Update(function *entity.Function, updates map[string]interface{}) error {
	err := r.db.Model(function).Updates(updates).Error
	return translate(err, nil, apperror.FunctionAlreadyExists(function.Name))
}

func (r *FunctionRepository) Delete(id uuid.UUID) error {
	return r.db.Where("id = ?", id).Delete(&entity.Function{}).Error
}

// MarkDeployed records a successful deployment of version. Results for a
// superseded version are ignored and reported as false.
func (r *FunctionRepository) MarkDeployed(id uuid.UUID, version int, at time.Time) (bool, error) {
	res := r.db.Model(&entity.Function{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"status":       entity.DeploymentStatusDeployed,
			"deploy_error": "",
			"deployed_at":  at,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *FunctionRepository) MarkDeployFailed(id uuid.UUID, version int, reason string) (bool, error) {
	res := r.db.Model(&entity.Function{}).
		Where("id = ? AND version = ?", id, version).
		Updates(map[string]interface{}{
			"status":       entity.DeploymentStatusFailed,
			"deploy_error": reason,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *FunctionRepository) SetStatus(id uuid.UUID, status entity.DeploymentStatus) error {
	return r.db.Model(&entity.Function{}).Where("id = ?", id).Update("status", status).Error
}
