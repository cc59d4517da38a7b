package cron

import (
	"context"
	"fmt"

	"github.com/kioskpos/pos-backend/pkg/db/models"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/metrics"
)

const defaultLowStockLimit = 200

type lowStockReader interface {
	LowStock(ctx context.Context, limit int) ([]models.Ingredient, error)
}

type LowStockJobParams struct {
	Logger    *logger.Logger
	Inventory lowStockReader
	Metrics   *metrics.OrderMetrics
	Limit     int
}

// NewLowStockJob reports ingredients at or below their reorder threshold and
// publishes the count as a gauge.
func NewLowStockJob(params LowStockJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Inventory == nil {
		return nil, fmt.Errorf("inventory ledger required")
	}
	limit := params.Limit
	if limit <= 0 {
		limit = defaultLowStockLimit
	}
	return &lowStockJob{
		logg:      params.Logger,
		inventory: params.Inventory,
		metrics:   params.Metrics,
		limit:     limit,
	}, nil
}

type lowStockJob struct {
	logg      *logger.Logger
	inventory lowStockReader
	metrics   *metrics.OrderMetrics
	limit     int
}

func (j *lowStockJob) Name() string { return "low-stock-sweep" }

func (j *lowStockJob) Run(ctx context.Context) error {
	ingredients, err := j.inventory.LowStock(ctx, j.limit)
	if err != nil {
		return fmt.Errorf("low stock sweep: %w", err)
	}
	j.metrics.SetLowStock(len(ingredients))

	for _, ingredient := range ingredients {
		logCtx := j.logg.WithFields(ctx, map[string]any{
			"ingredient_id":   ingredient.ID,
			"ingredient_name": ingredient.Name,
			"stock":           ingredient.Stock,
			"min_threshold":   ingredient.MinThreshold,
		})
		j.logg.Warn(logCtx, "ingredient at or below threshold")
	}
	logCtx := j.logg.WithField(ctx, "low_stock_count", len(ingredients))
	j.logg.Info(logCtx, "low stock sweep complete")
	return nil
}
