package loyalty

import (
	"context"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db/models"
)

// Repository applies point deltas with in-database arithmetic so concurrent
// orders for the same customer never lose an update.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	AddPoints(ctx context.Context, customerID, points int64) (bool, error)
	SubtractPoints(ctx context.Context, customerID, points int64) (bool, error)
	SubtractPointsIfCovered(ctx context.Context, customerID, points int64) (bool, error)
	FindByID(ctx context.Context, customerID int64) (*models.Customer, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a loyalty repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) AddPoints(ctx context.Context, customerID, points int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Updates(map[string]any{
			"current_points": gorm.Expr("current_points + ?", points),
			"total_points":   gorm.Expr("total_points + ?", points),
		})
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SubtractPoints(ctx context.Context, customerID, points int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ?", customerID).
		Update("current_points", gorm.Expr("current_points - ?", points))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) SubtractPointsIfCovered(ctx context.Context, customerID, points int64) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Customer{}).
		Where("id = ? AND current_points >= ?", customerID, points).
		Update("current_points", gorm.Expr("current_points - ?", points))
	return res.RowsAffected == 1, res.Error
}

func (r *repository) FindByID(ctx context.Context, customerID int64) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, "id = ?", customerID).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}
