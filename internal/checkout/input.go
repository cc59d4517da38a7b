package checkout

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

// MaxItemQuantity caps the units of one menu item per order.
const MaxItemQuantity = 10000

// maxOrderTotal is the largest total the NUMERIC(10,2) column can hold.
var maxOrderTotal = decimal.RequireFromString("99999999.99")

// maxIngredientDemand is the largest decrement the INTEGER stock column can take.
const maxIngredientDemand = math.MaxInt32

// CreateTransactionInput is an order as submitted at the counter or kiosk.
type CreateTransactionInput struct {
	Items          map[string]int
	CustomerLabel  string
	CustomerID     *int64
	EmployeeName   string
	TotalPrice     *decimal.Decimal
	DiscountPoints int64
}

// TransactionResult describes a committed order.
type TransactionResult struct {
	TransactionID  int64           `json:"transaction_id"`
	TotalPrice     decimal.Decimal `json:"total_price"`
	PointsEarned   int64           `json:"points_earned"`
	PointsRedeemed int64           `json:"points_redeemed"`
	OrderedAt      time.Time       `json:"ordered_at"`
}

// Quote is a side-effect free price for a set of items.
type Quote struct {
	TotalPrice   decimal.Decimal `json:"total_price"`
	SkippedItems []string        `json:"skipped_items,omitempty"`
}

func validateItems(items map[string]int) error {
	fields := map[string]string{}
	for name, qty := range items {
		if strings.TrimSpace(name) == "" {
			fields["items"] = "item names must not be blank"
			continue
		}
		switch {
		case qty < 1:
			fields["items."+name] = "quantity must be at least 1"
		case qty > MaxItemQuantity:
			fields["items."+name] = fmt.Sprintf("quantity must be at most %d", MaxItemQuantity)
		}
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order items").WithDetails(fields)
	}
	return nil
}

func validateCreateInput(input CreateTransactionInput) error {
	if len(input.Items) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "order has no items").
			WithDetails(map[string]string{"items": "at least one item is required"})
	}
	if err := validateItems(input.Items); err != nil {
		return err
	}

	fields := map[string]string{}
	if strings.TrimSpace(input.CustomerLabel) == "" {
		fields["customer_label"] = "is required"
	}
	if strings.TrimSpace(input.EmployeeName) == "" {
		fields["employee_name"] = "is required"
	}
	if input.CustomerID != nil && *input.CustomerID <= 0 {
		fields["customer_id"] = "must be positive"
	}
	if input.TotalPrice != nil && input.TotalPrice.IsNegative() {
		fields["total_price"] = "must not be negative"
	}
	if input.DiscountPoints < 0 {
		fields["discount_points"] = "must not be negative"
	}
	if input.CustomerID == nil && input.DiscountPoints > 0 {
		fields["discount_points"] = "guest orders cannot redeem points"
	}
	if len(fields) > 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "invalid order").WithDetails(fields)
	}
	return nil
}

// sortedNames returns the item names in a stable order so repeated orders
// resolve and fail identically.
func sortedNames(items map[string]int) []string {
	names := make([]string, 0, len(items))
	for name := range items {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func totalMismatch(supplied, computed decimal.Decimal) error {
	return pkgerrors.New(
		pkgerrors.CodeValidation,
		fmt.Sprintf("total price %s does not match computed total %s", supplied.StringFixed(2), computed.StringFixed(2)),
	).WithDetails(map[string]string{
		"total_price":    supplied.StringFixed(2),
		"computed_total": computed.StringFixed(2),
	})
}

func totalTooLarge(total decimal.Decimal) error {
	return pkgerrors.New(pkgerrors.CodeValidation, "order total exceeds the maximum").
		WithDetails(map[string]string{
			"computed_total": total.StringFixed(2),
			"max_total":      maxOrderTotal.StringFixed(2),
		})
}
