package inventory

import (
	"fmt"

	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

// ShortageDetails is attached to INSUFFICIENT_STOCK errors.
type ShortageDetails struct {
	IngredientID int64 `json:"ingredient_id"`
	Required     int   `json:"required"`
	Available    int   `json:"available"`
}

// InsufficientStock builds the typed error returned when demand exceeds stock.
func InsufficientStock(ingredientID int64, required, available int) *pkgerrors.Error {
	return pkgerrors.New(
		pkgerrors.CodeInsufficientStock,
		fmt.Sprintf("ingredient %d: required %d, available %d", ingredientID, required, available),
	).WithDetails(ShortageDetails{
		IngredientID: ingredientID,
		Required:     required,
		Available:    available,
	})
}

// Shortage extracts the shortage details from err, if any.
func Shortage(err error) (ShortageDetails, bool) {
	typed := pkgerrors.As(err)
	if typed == nil || typed.Code() != pkgerrors.CodeInsufficientStock {
		return ShortageDetails{}, false
	}
	details, ok := typed.Details().(ShortageDetails)
	return details, ok
}
