package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// MenuItem is a sellable product with a fixed unit price and a recipe.
type MenuItem struct {
	ID        int64                `gorm:"column:id;primaryKey;autoIncrement"`
	Name      string               `gorm:"column:name;not null;uniqueIndex"`
	Price     decimal.Decimal      `gorm:"column:price;type:numeric(10,2);not null;check:chk_menu_items_price,price >= 0"`
	Active    bool                 `gorm:"column:active;not null"`
	Recipe    []MenuItemIngredient `gorm:"foreignKey:MenuItemID"`
	CreatedAt time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}

// MenuItemIngredient is one recipe line: how many ingredient units one menu item consumes.
type MenuItemIngredient struct {
	MenuItemID   int64 `gorm:"column:menu_item_id;primaryKey"`
	IngredientID int64 `gorm:"column:ingredient_id;primaryKey"`
	Amount       int   `gorm:"column:amount;not null;check:chk_menu_item_ingredients_amount,amount > 0"`
}
