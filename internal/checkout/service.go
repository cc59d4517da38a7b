package checkout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/internal/catalog"
	"github.com/kioskpos/pos-backend/internal/employees"
	"github.com/kioskpos/pos-backend/internal/inventory"
	"github.com/kioskpos/pos-backend/internal/loyalty"
	"github.com/kioskpos/pos-backend/internal/transactions"
	"github.com/kioskpos/pos-backend/pkg/enums"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
	"github.com/kioskpos/pos-backend/pkg/logger"
	"github.com/kioskpos/pos-backend/pkg/metrics"
	"github.com/kioskpos/pos-backend/pkg/outbox"
	"github.com/kioskpos/pos-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPublisher interface {
	Emit(ctx context.Context, tx *gorm.DB, events ...outbox.DomainEvent) error
}

// Service prices and commits orders.
type Service interface {
	CreateTransaction(ctx context.Context, input CreateTransactionInput) (*TransactionResult, error)
	QuotePrice(ctx context.Context, items map[string]int) (*Quote, error)
}

// ServiceParams wires the checkout service.
type ServiceParams struct {
	DB        txRunner
	Catalog   *catalog.Resolver
	Inventory *inventory.Ledger
	Loyalty   *loyalty.Account
	Recorder  *transactions.Recorder
	Employees *employees.Directory
	Outbox    outboxPublisher
	Metrics   *metrics.OrderMetrics
	Logger    *logger.Logger
}

type service struct {
	tx        txRunner
	catalog   *catalog.Resolver
	inventory *inventory.Ledger
	loyalty   *loyalty.Account
	recorder  *transactions.Recorder
	employees *employees.Directory
	outbox    outboxPublisher
	metrics   *metrics.OrderMetrics
	logg      *logger.Logger
	now       func() time.Time
}

// NewService builds the checkout service.
func NewService(params ServiceParams) (Service, error) {
	switch {
	case params.DB == nil:
		return nil, fmt.Errorf("tx runner required")
	case params.Catalog == nil:
		return nil, fmt.Errorf("catalog resolver required")
	case params.Inventory == nil:
		return nil, fmt.Errorf("inventory ledger required")
	case params.Loyalty == nil:
		return nil, fmt.Errorf("loyalty account required")
	case params.Recorder == nil:
		return nil, fmt.Errorf("transaction recorder required")
	case params.Employees == nil:
		return nil, fmt.Errorf("employee directory required")
	case params.Outbox == nil:
		return nil, fmt.Errorf("outbox publisher required")
	case params.Logger == nil:
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		tx:        params.DB,
		catalog:   params.Catalog,
		inventory: params.Inventory,
		loyalty:   params.Loyalty,
		recorder:  params.Recorder,
		employees: params.Employees,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		logg:      params.Logger,
		now:       time.Now,
	}, nil
}

type pricedLine struct {
	item     *catalog.ResolvedItem
	quantity int
}

// CreateTransaction commits the order in one unit of work: stock, points, the
// transaction rows and its outbox events either all persist or none do.
func (s *service) CreateTransaction(ctx context.Context, input CreateTransactionInput) (*TransactionResult, error) {
	if err := validateCreateInput(input); err != nil {
		return nil, err
	}

	start := s.now()
	var result *TransactionResult
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		res, err := s.execute(ctx, tx, input)
		if err != nil {
			return err
		}
		result = res
		return nil
	})
	elapsed := s.now().Sub(start)
	if err != nil {
		err = pkgerrors.EnsureTyped(err, pkgerrors.CodePersistence, "create transaction")
		s.observeRejected(ctx, input, err, elapsed)
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.ObserveCommitted(elapsed)
	}
	logCtx := s.logg.WithTransactionID(ctx, result.TransactionID)
	logCtx = s.logg.WithFields(logCtx, map[string]any{
		"total_price":     result.TotalPrice.StringFixed(2),
		"points_earned":   result.PointsEarned,
		"points_redeemed": result.PointsRedeemed,
		"duration_ms":     elapsed.Milliseconds(),
	})
	s.logg.Info(logCtx, "transaction committed")
	return result, nil
}

func (s *service) execute(ctx context.Context, tx *gorm.DB, input CreateTransactionInput) (*TransactionResult, error) {
	employee, err := s.employees.WithTx(tx).FindActiveByName(ctx, input.EmployeeName)
	if err != nil {
		return nil, err
	}

	resolver := s.catalog.WithTx(tx)
	names := sortedNames(input.Items)
	lines := make([]pricedLine, 0, len(names))
	total := decimal.Zero
	for _, name := range names {
		item, err := resolver.Resolve(ctx, name)
		if err != nil {
			return nil, err
		}
		qty := input.Items[name]
		lines = append(lines, pricedLine{item: item, quantity: qty})
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(qty))))
	}
	if total.GreaterThan(maxOrderTotal) {
		return nil, totalTooLarge(total)
	}
	demand, err := demandFor(lines)
	if err != nil {
		return nil, err
	}
	if input.TotalPrice != nil && !input.TotalPrice.Equal(total) {
		return nil, totalMismatch(*input.TotalPrice, total)
	}

	var earned, redeemed int64
	if input.CustomerID != nil {
		account := s.loyalty.WithTx(tx)
		if earned, err = account.Accrue(ctx, *input.CustomerID, total); err != nil {
			return nil, err
		}
		if err := account.Redeem(ctx, *input.CustomerID, input.DiscountPoints); err != nil {
			return nil, err
		}
		redeemed = input.DiscountPoints
	}

	recorder := s.recorder.WithTx(tx)
	header, err := recorder.RecordHeader(ctx, transactions.RecordInput{
		CustomerLabel:  input.CustomerLabel,
		EmployeeID:     employee.ID,
		CustomerID:     input.CustomerID,
		TotalPrice:     total,
		PointsEarned:   earned,
		PointsRedeemed: redeemed,
		OrderedAt:      s.now().UTC(),
	})
	if err != nil {
		return nil, err
	}

	levels, err := s.inventory.WithTx(tx).ReserveAll(ctx, demand, header.ID)
	if err != nil {
		return nil, err
	}

	recordLines := make([]transactions.Line, 0, len(lines))
	eventLines := make([]payloads.TransactionLine, 0, len(lines))
	for _, line := range lines {
		recordLines = append(recordLines, transactions.Line{MenuItemID: line.item.ID, Quantity: line.quantity})
		eventLines = append(eventLines, payloads.TransactionLine{MenuItemID: line.item.ID, Name: line.item.Name, Quantity: line.quantity})
	}
	if err := recorder.RecordDetails(ctx, header.ID, recordLines); err != nil {
		return nil, err
	}

	result := &TransactionResult{
		TransactionID:  header.ID,
		TotalPrice:     total,
		PointsEarned:   earned,
		PointsRedeemed: redeemed,
		OrderedAt:      header.OrderedAt,
	}
	if err := s.emitEvents(ctx, tx, employee.ID, input.CustomerID, result, eventLines, levels); err != nil {
		return nil, err
	}
	return result, nil
}

// demandFor sums the ingredient units needed across all lines. A demand the
// stock column cannot represent is rejected rather than wrapped.
func demandFor(lines []pricedLine) (map[int64]int, error) {
	demand := map[int64]int{}
	for _, line := range lines {
		for _, recipe := range line.item.Recipe {
			if recipe.Amount <= 0 {
				continue
			}
			units := int64(line.quantity) * int64(recipe.Amount)
			sum := int64(demand[recipe.IngredientID]) + units
			if line.quantity > maxIngredientDemand/recipe.Amount || sum > maxIngredientDemand {
				return nil, pkgerrors.Newf(pkgerrors.CodeValidation, "order needs more of ingredient %d than can be stocked", recipe.IngredientID).
					WithDetails(map[string]any{"ingredient_id": recipe.IngredientID, "max_units": maxIngredientDemand})
			}
			demand[recipe.IngredientID] = int(sum)
		}
	}
	return demand, nil
}

func (s *service) emitEvents(
	ctx context.Context,
	tx *gorm.DB,
	employeeID int64,
	customerID *int64,
	result *TransactionResult,
	lines []payloads.TransactionLine,
	levels []inventory.StockLevel,
) error {
	actor := &outbox.ActorRef{EmployeeID: employeeID}
	events := []outbox.DomainEvent{{
		EventType:     enums.EventTransactionCreated,
		AggregateType: enums.AggregateTransaction,
		AggregateID:   result.TransactionID,
		Actor:         actor,
		OccurredAt:    result.OrderedAt,
		Data: payloads.TransactionCreatedEvent{
			TransactionID:  result.TransactionID,
			CustomerID:     customerID,
			EmployeeID:     employeeID,
			TotalPrice:     result.TotalPrice,
			PointsEarned:   result.PointsEarned,
			PointsRedeemed: result.PointsRedeemed,
			OrderedAt:      result.OrderedAt,
			Lines:          lines,
		},
	}}
	for _, level := range levels {
		if !level.Low() {
			continue
		}
		events = append(events, outbox.DomainEvent{
			EventType:     enums.EventIngredientLowStock,
			AggregateType: enums.AggregateIngredient,
			AggregateID:   level.IngredientID,
			Actor:         actor,
			OccurredAt:    result.OrderedAt,
			Data: payloads.IngredientLowStockEvent{
				IngredientID:  level.IngredientID,
				Stock:         level.Stock,
				MinThreshold:  level.MinThreshold,
				TransactionID: result.TransactionID,
			},
		})
	}
	return s.outbox.Emit(ctx, tx, events...)
}

func (s *service) observeRejected(ctx context.Context, input CreateTransactionInput, err error, elapsed time.Duration) {
	typed := pkgerrors.As(err)
	code := string(typed.Code())
	if s.metrics != nil {
		s.metrics.ObserveRejected(code, elapsed)
	}
	fields := map[string]any{
		"code":          code,
		"item_count":    len(input.Items),
		"employee_name": input.EmployeeName,
		"duration_ms":   elapsed.Milliseconds(),
	}
	if shortage, ok := inventory.Shortage(err); ok {
		if s.metrics != nil {
			s.metrics.IncStockout(strconv.FormatInt(shortage.IngredientID, 10))
		}
		fields["ingredient_id"] = shortage.IngredientID
		fields["required"] = shortage.Required
		fields["available"] = shortage.Available
	}
	logCtx := s.logg.WithFields(ctx, fields)
	if input.CustomerID != nil {
		logCtx = s.logg.WithCustomerID(logCtx, *input.CustomerID)
	}
	if pkgerrors.IsRetryable(err) {
		logCtx = s.logg.WithField(logCtx, "lock_contention", pkgerrors.IsLockContention(err))
		s.logg.Error(logCtx, "transaction failed", err)
		return
	}
	s.logg.Warn(logCtx, "transaction rejected")
}

// QuotePrice sums unitPrice * quantity over the items that resolve. Unknown or
// inactive names are skipped and reported back; nothing is written.
func (s *service) QuotePrice(ctx context.Context, items map[string]int) (*Quote, error) {
	if err := validateItems(items); err != nil {
		return nil, err
	}
	names := sortedNames(items)
	resolved, missing, err := s.catalog.ResolveMany(ctx, names)
	if err != nil {
		return nil, err
	}

	total := decimal.Zero
	for _, name := range names {
		item, ok := resolved[name]
		if !ok {
			continue
		}
		total = total.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(items[name]))))
	}
	if len(missing) > 0 {
		logCtx := s.logg.WithField(ctx, "skipped_items", missing)
		s.logg.Warn(logCtx, "quote skipped unknown menu items")
	}
	return &Quote{TotalPrice: total, SkippedItems: missing}, nil
}
