package controllers

import (
	"context"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/kioskpos/pos-backend/api/responses"
	"github.com/kioskpos/pos-backend/api/validators"
	checkoutsvc "github.com/kioskpos/pos-backend/internal/checkout"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
	"github.com/kioskpos/pos-backend/pkg/logger"
)

const maxLabelLen = 120

// TransactionReader loads committed transactions.
type TransactionReader interface {
	FindByID(ctx context.Context, id int64) (*models.Transaction, error)
}

// CreateTransaction commits an order placed at a register or kiosk.
func CreateTransaction(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload createTransactionRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		result, err := svc.CreateTransaction(r.Context(), payload.toInput())
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newTransactionResponse(result))
	}
}

// QuoteTransaction prices a prospective order without writing anything.
func QuoteTransaction(svc checkoutsvc.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload quoteRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		quote, err := svc.QuotePrice(r.Context(), payload.Items)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, quoteResponse{
			TotalPrice:   quote.TotalPrice.StringFixed(2),
			SkippedItems: quote.SkippedItems,
		})
	}
}

// GetTransaction returns a committed transaction with its lines.
func GetTransaction(reader TransactionReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "transaction reader unavailable"))
			return
		}

		id, err := validators.ParsePathID(r, "transactionID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		txn, err := reader.FindByID(r.Context(), id)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccess(w, newTransactionDetailResponse(txn))
	}
}

type createTransactionRequest struct {
	Items          map[string]int   `json:"items" validate:"required,min=1,dive,keys,required,max=120,endkeys,min=1,max=10000"`
	CustomerLabel  string           `json:"customer_label" validate:"required,max=120"`
	CustomerID     *int64           `json:"customer_id,omitempty" validate:"omitempty,gt=0"`
	EmployeeName   string           `json:"employee_name" validate:"required,max=120"`
	TotalPrice     *decimal.Decimal `json:"total_price,omitempty"`
	DiscountPoints int64            `json:"discount_points" validate:"gte=0"`
}

func (p createTransactionRequest) toInput() checkoutsvc.CreateTransactionInput {
	return checkoutsvc.CreateTransactionInput{
		Items:          p.Items,
		CustomerLabel:  validators.SanitizeString(p.CustomerLabel, maxLabelLen),
		CustomerID:     p.CustomerID,
		EmployeeName:   validators.SanitizeString(p.EmployeeName, maxLabelLen),
		TotalPrice:     p.TotalPrice,
		DiscountPoints: p.DiscountPoints,
	}
}

type quoteRequest struct {
	Items map[string]int `json:"items" validate:"required,dive,keys,required,max=120,endkeys,min=1,max=10000"`
}

type quoteResponse struct {
	TotalPrice   string   `json:"total_price"`
	SkippedItems []string `json:"skipped_items,omitempty"`
}

type transactionResponse struct {
	TransactionID  int64     `json:"transaction_id"`
	TotalPrice     string    `json:"total_price"`
	PointsEarned   int64     `json:"points_earned"`
	PointsRedeemed int64     `json:"points_redeemed"`
	OrderedAt      time.Time `json:"ordered_at"`
}

func newTransactionResponse(result *checkoutsvc.TransactionResult) transactionResponse {
	return transactionResponse{
		TransactionID:  result.TransactionID,
		TotalPrice:     result.TotalPrice.StringFixed(2),
		PointsEarned:   result.PointsEarned,
		PointsRedeemed: result.PointsRedeemed,
		OrderedAt:      result.OrderedAt,
	}
}

type transactionDetailResponse struct {
	transactionResponse
	CustomerLabel string                    `json:"customer_label"`
	CustomerID    *int64                    `json:"customer_id,omitempty"`
	EmployeeID    int64                     `json:"employee_id"`
	Lines         []transactionLineResponse `json:"lines"`
}

type transactionLineResponse struct {
	MenuItemID int64 `json:"menu_item_id"`
	Quantity   int   `json:"quantity"`
}

func newTransactionDetailResponse(txn *models.Transaction) transactionDetailResponse {
	lines := make([]transactionLineResponse, 0, len(txn.Details))
	for _, detail := range txn.Details {
		lines = append(lines, transactionLineResponse{MenuItemID: detail.MenuItemID, Quantity: detail.Quantity})
	}
	return transactionDetailResponse{
		transactionResponse: transactionResponse{
			TransactionID:  txn.ID,
			TotalPrice:     txn.TotalPrice.StringFixed(2),
			PointsEarned:   txn.PointsEarned,
			PointsRedeemed: txn.PointsRedeemed,
			OrderedAt:      txn.OrderedAt,
		},
		CustomerLabel: txn.CustomerLabel,
		CustomerID:    txn.CustomerID,
		EmployeeID:    txn.EmployeeID,
		Lines:         lines,
	}
}
