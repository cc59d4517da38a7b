package controllers

import (
	"context"
	"net/http"

	"github.com/kioskpos/pos-backend/api/responses"
	"github.com/kioskpos/pos-backend/api/validators"
	"github.com/kioskpos/pos-backend/internal/loyalty"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
	"github.com/kioskpos/pos-backend/pkg/logger"
)

// BalanceReader loads loyalty balances.
type BalanceReader interface {
	GetBalance(ctx context.Context, customerID int64) (*loyalty.Balance, error)
}

// CustomerPoints returns the customer's spendable and lifetime points.
func CustomerPoints(reader BalanceReader, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if reader == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "loyalty service unavailable"))
			return
		}

		customerID, err := validators.ParsePathID(r, "customerID")
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		balance, err := reader.GetBalance(r.Context(), customerID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, balance)
	}
}
