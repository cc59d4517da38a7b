package controllers

import (
	"context"
	"net/http"

	"github.com/kioskpos/pos-backend/api/responses"
	"github.com/kioskpos/pos-backend/api/validators"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
	"github.com/kioskpos/pos-backend/pkg/logger"
)

// StockReader lists ingredients that need reordering.
type StockReader interface {
	LowStock(ctx context.Context, limit int) ([]models.Ingredient, error)
}

type lowStockItem struct {
	IngredientID int64  `json:"ingredient_id"`
	Name         string `json:"name"`
	Stock        int    `json:"stock"`
	MinThreshold int    `json:"min_threshold"`
}

// LowStock lists ingredients at or below their threshold, lowest id first.
func LowStock(reader StockReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "inventory service unavailable"))
			return
		}
		limit, err := validators.ParseQueryInt(r, "limit", 50, 1, 500)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		ingredients, err := reader.LowStock(r.Context(), limit)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		items := make([]lowStockItem, 0, len(ingredients))
		for _, ing := range ingredients {
			items = append(items, lowStockItem{
				IngredientID: ing.ID,
				Name:         ing.Name,
				Stock:        ing.Stock,
				MinThreshold: ing.MinThreshold,
			})
		}
		responses.WriteSuccess(w, items)
	}
}
