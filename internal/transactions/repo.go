package transactions

import (
	"context"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db/models"
)

// Repository appends transaction headers and details. Rows are never updated.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	CreateHeader(ctx context.Context, header *models.Transaction) error
	CreateDetails(ctx context.Context, details []models.TransactionDetail) error
	FindByID(ctx context.Context, id int64) (*models.Transaction, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a transactions repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

func (r *repository) CreateHeader(ctx context.Context, header *models.Transaction) error {
	return r.db.WithContext(ctx).Omit("Details").Create(header).Error
}

func (r *repository) CreateDetails(ctx context.Context, details []models.TransactionDetail) error {
	if len(details) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&details).Error
}

func (r *repository) FindByID(ctx context.Context, id int64) (*models.Transaction, error) {
	var txn models.Transaction
	err := r.db.WithContext(ctx).
		Preload("Details", func(db *gorm.DB) *gorm.DB {
			return db.Order("menu_item_id ASC")
		}).
		First(&txn, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &txn, nil
}
