package catalog

import (
	"context"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/internal/repo"
	"github.com/kioskpos/pos-backend/pkg/db/models"
)

// Repository reads active menu items together with their recipes.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	FindActiveByName(ctx context.Context, name string) (*models.MenuItem, error)
	ListActiveByNames(ctx context.Context, names []string) ([]models.MenuItem, error)
}

type repository struct {
	base repo.Base
}

// NewRepository returns a catalog repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{base: repo.NewBase(db)}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{base: r.base.WithTx(tx)}
}

func (r *repository) FindActiveByName(ctx context.Context, name string) (*models.MenuItem, error) {
	var item models.MenuItem
	err := r.base.DB(ctx).
		Preload("Recipe", func(db *gorm.DB) *gorm.DB {
			return db.Order("ingredient_id ASC")
		}).
		Where("name = ? AND active = ?", name, true).
		First(&item).Error
	if err != nil {
		return nil, err
	}
	return &item, nil
}

func (r *repository) ListActiveByNames(ctx context.Context, names []string) ([]models.MenuItem, error) {
	if len(names) == 0 {
		return nil, nil
	}
	var items []models.MenuItem
	err := r.base.DB(ctx).
		Preload("Recipe", func(db *gorm.DB) *gorm.DB {
			return db.Order("ingredient_id ASC")
		}).
		Where("name IN ? AND active = ?", names, true).
		Order("name ASC").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	return items, nil
}
