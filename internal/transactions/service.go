package transactions

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

// Line is one distinct menu item of a transaction.
type Line struct {
	MenuItemID int64
	Quantity   int
}

// RecordInput carries everything the recorder writes for one order.
type RecordInput struct {
	CustomerLabel  string
	EmployeeID     int64
	CustomerID     *int64
	TotalPrice     decimal.Decimal
	PointsEarned   int64
	PointsRedeemed int64
	OrderedAt      time.Time
	Lines          []Line
}

// Recorded identifies a persisted transaction header.
type Recorded struct {
	ID        int64
	OrderedAt time.Time
}

// Recorder persists transaction headers and their detail lines.
type Recorder struct {
	repo Repository
	now  func() time.Time
}

func NewRecorder(repo Repository) (*Recorder, error) {
	if repo == nil {
		return nil, fmt.Errorf("transactions repository required")
	}
	return &Recorder{repo: repo, now: time.Now}, nil
}

func (r *Recorder) WithTx(tx *gorm.DB) *Recorder {
	return &Recorder{repo: r.repo.WithTx(tx), now: r.now}
}

// RecordHeader inserts the header alone so callers can tag related rows with
// its id before the details are written.
func (r *Recorder) RecordHeader(ctx context.Context, input RecordInput) (*Recorded, error) {
	if strings.TrimSpace(input.CustomerLabel) == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer label is required")
	}
	if input.EmployeeID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "employee id is required")
	}
	if input.TotalPrice.IsNegative() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "total price must not be negative")
	}
	orderedAt := input.OrderedAt
	if orderedAt.IsZero() {
		orderedAt = r.now().UTC()
	}
	header := &models.Transaction{
		CustomerLabel:  strings.TrimSpace(input.CustomerLabel),
		EmployeeID:     input.EmployeeID,
		CustomerID:     input.CustomerID,
		TotalPrice:     input.TotalPrice,
		PointsEarned:   input.PointsEarned,
		PointsRedeemed: input.PointsRedeemed,
		OrderedAt:      orderedAt,
	}
	if err := r.repo.CreateHeader(ctx, header); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "insert transaction header")
	}
	return &Recorded{ID: header.ID, OrderedAt: header.OrderedAt}, nil
}

// RecordDetails writes one row per distinct menu item, merging repeated lines.
func (r *Recorder) RecordDetails(ctx context.Context, transactionID int64, lines []Line) error {
	merged := map[int64]int{}
	for _, line := range lines {
		if line.Quantity <= 0 {
			return pkgerrors.Newf(pkgerrors.CodeValidation, "menu item %d: quantity must be positive", line.MenuItemID)
		}
		merged[line.MenuItemID] += line.Quantity
	}
	details := make([]models.TransactionDetail, 0, len(merged))
	for menuItemID, qty := range merged {
		details = append(details, models.TransactionDetail{
			TransactionID: transactionID,
			MenuItemID:    menuItemID,
			Quantity:      qty,
		})
	}
	sort.Slice(details, func(i, j int) bool { return details[i].MenuItemID < details[j].MenuItemID })
	if err := r.repo.CreateDetails(ctx, details); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "insert transaction details")
	}
	return nil
}

// Record inserts the header and its details and returns the new transaction id.
func (r *Recorder) Record(ctx context.Context, input RecordInput) (*Recorded, error) {
	recorded, err := r.RecordHeader(ctx, input)
	if err != nil {
		return nil, err
	}
	if err := r.RecordDetails(ctx, recorded.ID, input.Lines); err != nil {
		return nil, err
	}
	return recorded, nil
}

// FindByID loads a committed transaction with its details.
func (r *Recorder) FindByID(ctx context.Context, id int64) (*models.Transaction, error) {
	if id <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "transaction id must be positive")
	}
	txn, err := r.repo.FindByID(ctx, id)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, pkgerrors.Newf(pkgerrors.CodeNotFound, "transaction %d not found", id)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load transaction")
	}
	return txn, nil
}
