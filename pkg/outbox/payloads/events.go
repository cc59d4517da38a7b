package payloads

import (
	"time"

	"github.com/shopspring/decimal"
)

// TransactionLine is one menu item and quantity of a committed transaction.
type TransactionLine struct {
	MenuItemID int64  `json:"menu_item_id"`
	Name       string `json:"name"`
	Quantity   int    `json:"quantity"`
}

// TransactionCreatedEvent is emitted once per committed transaction.
type TransactionCreatedEvent struct {
	TransactionID  int64             `json:"transaction_id"`
	CustomerID     *int64            `json:"customer_id,omitempty"`
	EmployeeID     int64             `json:"employee_id"`
	TotalPrice     decimal.Decimal   `json:"total_price"`
	PointsEarned   int64             `json:"points_earned"`
	PointsRedeemed int64             `json:"points_redeemed"`
	OrderedAt      time.Time         `json:"ordered_at"`
	Lines          []TransactionLine `json:"lines"`
}

// IngredientLowStockEvent signals that a sale left an ingredient at or below its threshold.
type IngredientLowStockEvent struct {
	IngredientID  int64 `json:"ingredient_id"`
	Stock         int   `json:"stock"`
	MinThreshold  int   `json:"min_threshold"`
	TransactionID int64 `json:"transaction_id"`
}
