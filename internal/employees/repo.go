package employees

import (
	"context"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/internal/repo"
	"github.com/kioskpos/pos-backend/pkg/db/models"
)

type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByName(ctx context.Context, name string) (*models.Employee, error)
}

type repository struct {
	base repo.Base
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

// FindActiveByName returns the lowest-id active employee with the given name.
func (r *repository) FindActiveByName(ctx context.Context, name string) (*models.Employee, error) {
	var employee models.Employee
	err := r.base.DB(ctx).
		Where("name = ? AND active = ?", name, true).
		Order("id ASC").
		First(&employee).Error
	if err != nil {
		return nil, err
	}
	return &employee, nil
}
