package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transaction is the immutable header of a committed order.
type Transaction struct {
	ID             int64               `gorm:"column:id;primaryKey;autoIncrement"`
	CustomerLabel  string              `gorm:"column:customer_label;not null"`
	EmployeeID     int64               `gorm:"column:employee_id;not null;index"`
	CustomerID     *int64              `gorm:"column:customer_id;index"`
	TotalPrice     decimal.Decimal     `gorm:"column:total_price;type:numeric(10,2);not null"`
	PointsEarned   int64               `gorm:"column:points_earned;not null"`
	PointsRedeemed int64               `gorm:"column:points_redeemed;not null"`
	OrderedAt      time.Time           `gorm:"column:ordered_at;not null"`
	Details        []TransactionDetail `gorm:"foreignKey:TransactionID"`
}

// TransactionDetail is one menu item line of a transaction.
type TransactionDetail struct {
	ID            int64 `gorm:"column:id;primaryKey;autoIncrement"`
	TransactionID int64 `gorm:"column:transaction_id;not null;uniqueIndex:ux_transaction_details_item"`
	MenuItemID    int64 `gorm:"column:menu_item_id;not null;uniqueIndex:ux_transaction_details_item"`
	Quantity      int   `gorm:"column:quantity;not null;check:chk_transaction_details_quantity,quantity > 0"`
}
