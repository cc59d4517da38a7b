package enums

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// MovementReason maps to the inventory_movement_reason enum in Postgres.
type MovementReason string

const (
	MovementReasonSale       MovementReason = "sale"
	MovementReasonRestock    MovementReason = "restock"
	MovementReasonAdjustment MovementReason = "adjustment"
)

func (r MovementReason) IsValid() bool {
	return slices.Contains([]MovementReason{MovementReasonSale, MovementReasonRestock, MovementReasonAdjustment}, r)
}

func (r MovementReason) Value() (driver.Value, error) {
	if !r.IsValid() {
		return nil, fmt.Errorf("invalid movement reason %q", string(r))
	}
	return string(r), nil
}
