package inventory

import (
	"context"
	"fmt"
	"sort"

	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	"github.com/kioskpos/pos-backend/pkg/enums"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

// StockLevel is an ingredient's stock right after a decrement.
type StockLevel struct {
	IngredientID int64
	Decremented  int
	Stock        int
	MinThreshold int
}

// Low reports whether the ingredient reached its reorder threshold.
func (s StockLevel) Low() bool {
	return s.Stock <= s.MinThreshold
}

// Ledger performs check-and-decrement operations on ingredient stock. It must be
// bound to the caller's transaction with WithTx so every decrement rolls back
// with the order.
type Ledger struct {
	repo Repository
}

func NewLedger(repo Repository) (*Ledger, error) {
	if repo == nil {
		return nil, fmt.Errorf("inventory repository required")
	}
	return &Ledger{repo: repo}, nil
}

func (l *Ledger) WithTx(tx *gorm.DB) *Ledger {
	return &Ledger{repo: l.repo.WithTx(tx)}
}

// ReserveAndDecrement removes required units from one ingredient and appends a
// sale movement for transactionID. On shortage nothing is written and an
// INSUFFICIENT_STOCK error carries the available amount.
func (l *Ledger) ReserveAndDecrement(ctx context.Context, ingredientID int64, required int, transactionID int64) (*StockLevel, error) {
	if required <= 0 {
		return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "ingredient %d: required amount must be positive", ingredientID)
	}

	ok, err := l.repo.DecrementIfAvailable(ctx, ingredientID, required)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "decrement stock")
	}

	ingredient, err := l.repo.FindByID(ctx, ingredientID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "ingredient %d not found", ingredientID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load ingredient")
	}
	if !ok {
		return nil, InsufficientStock(ingredientID, required, ingredient.Stock)
	}

	movement := &models.InventoryMovement{
		IngredientID: ingredientID,
		QtyDelta:     -required,
		Reason:       enums.MovementReasonSale,
	}
	if transactionID > 0 {
		movement.TransactionID = &transactionID
	}
	if err := l.repo.CreateMovement(ctx, movement); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "record inventory movement")
	}

	return &StockLevel{
		IngredientID: ingredientID,
		Decremented:  required,
		Stock:        ingredient.Stock,
		MinThreshold: ingredient.MinThreshold,
	}, nil
}

// ReserveAll decrements every ingredient in demand in ascending id order so that
// concurrent orders lock shared rows in the same sequence. It stops at the first
// failure; the caller's rollback undoes earlier decrements.
func (l *Ledger) ReserveAll(ctx context.Context, demand map[int64]int, transactionID int64) ([]StockLevel, error) {
	ids := make([]int64, 0, len(demand))
	for id := range demand {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	levels := make([]StockLevel, 0, len(ids))
	for _, id := range ids {
		level, err := l.ReserveAndDecrement(ctx, id, demand[id], transactionID)
		if err != nil {
			return nil, err
		}
		levels = append(levels, *level)
	}
	return levels, nil
}

// LowStock lists ingredients at or below their reorder threshold.
func (l *Ledger) LowStock(ctx context.Context, limit int) ([]models.Ingredient, error) {
	ingredients, err := l.repo.ListAtOrBelowThreshold(ctx, limit)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "list low stock")
	}
	return ingredients, nil
}
