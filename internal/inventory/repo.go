package inventory

import (
	"context"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db/models"
)

// Repository persists ingredient stock and its movement history.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	DecrementIfAvailable(ctx context.Context, ingredientID int64, amount int) (bool, error)
	FindByID(ctx context.Context, ingredientID int64) (*models.Ingredient, error)
	CreateMovement(ctx context.Context, movement *models.InventoryMovement) error
	ListMovementsByTransaction(ctx context.Context, transactionID int64) ([]models.InventoryMovement, error)
	ListAtOrBelowThreshold(ctx context.Context, limit int) ([]models.Ingredient, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns an inventory repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// DecrementIfAvailable subtracts amount in a single conditional update and
// reports whether the row had enough stock. The update holds the row lock until
// the enclosing transaction ends.
func (r *repository) DecrementIfAvailable(ctx context.Context, ingredientID int64, amount int) (bool, error) {
	res := r.db.WithContext(ctx).
		Model(&models.Ingredient{}).
		Where("id = ? AND stock >= ?", ingredientID, amount).
		Update("stock", gorm.Expr("stock - ?", amount))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func (r *repository) FindByID(ctx context.Context, ingredientID int64) (*models.Ingredient, error) {
	var ingredient models.Ingredient
	if err := r.db.WithContext(ctx).First(&ingredient, "id = ?", ingredientID).Error; err != nil {
		return nil, err
	}
	return &ingredient, nil
}

func (r *repository) CreateMovement(ctx context.Context, movement *models.InventoryMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

func (r *repository) ListMovementsByTransaction(ctx context.Context, transactionID int64) ([]models.InventoryMovement, error) {
	var movements []models.InventoryMovement
	if err := r.db.WithContext(ctx).
		Where("transaction_id = ?", transactionID).
		Order("ingredient_id ASC").
		Find(&movements).Error; err != nil {
		return nil, err
	}
	return movements, nil
}

func (r *repository) ListAtOrBelowThreshold(ctx context.Context, limit int) ([]models.Ingredient, error) {
	var ingredients []models.Ingredient
	q := r.db.WithContext(ctx).
		Where("stock <= min_threshold").
		Order("id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&ingredients).Error; err != nil {
		return nil, err
	}
	return ingredients, nil
}
