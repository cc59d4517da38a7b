package models

import (
	"time"

	"github.com/kioskpos/pos-backend/pkg/enums"
)

// Ingredient tracks on-hand stock in integer units.
type Ingredient struct {
	ID           int64     `gorm:"column:id;primaryKey;autoIncrement"`
	Name         string    `gorm:"column:name;not null;uniqueIndex"`
	Stock        int       `gorm:"column:stock;not null;check:chk_ingredients_stock,stock >= 0"`
	MinThreshold int       `gorm:"column:min_threshold;not null"`
	UpdatedAt    time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// InventoryMovement is an append-only record of a stock change.
type InventoryMovement struct {
	ID            int64                `gorm:"column:id;primaryKey;autoIncrement"`
	IngredientID  int64                `gorm:"column:ingredient_id;not null;index"`
	TransactionID *int64               `gorm:"column:transaction_id;index"`
	QtyDelta      int                  `gorm:"column:qty_delta;not null"`
	Reason        enums.MovementReason `gorm:"column:reason;type:inventory_movement_reason;not null"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
}
