package loyalty

import (
	"context"
	"fmt"
	"math"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

const DefaultPointsPerUnit = 10

// RedeemPolicy decides whether a redemption may exceed the current balance.
type RedeemPolicy int

const (
	// RedeemUnchecked subtracts the requested points even when that leaves the
	// balance negative.
	RedeemUnchecked RedeemPolicy = iota
	// RedeemCovered rejects redemptions larger than the current balance.
	RedeemCovered
)

// Balance is a customer's point position.
type Balance struct {
	CurrentPoints int64 `json:"current_points"`
	TotalPoints   int64 `json:"total_points"`
}

type Options struct {
	PointsPerUnit int64
	Policy        RedeemPolicy
}

// Account accrues and redeems loyalty points.
type Account struct {
	repo          Repository
	pointsPerUnit int64
	policy        RedeemPolicy
}

func NewAccount(repo Repository, opts Options) (*Account, error) {
	if repo == nil {
		return nil, fmt.Errorf("loyalty repository required")
	}
	if opts.PointsPerUnit < 0 {
		return nil, fmt.Errorf("points per unit must not be negative")
	}
	if opts.PointsPerUnit == 0 {
		opts.PointsPerUnit = DefaultPointsPerUnit
	}
	return &Account{repo: repo, pointsPerUnit: opts.PointsPerUnit, policy: opts.Policy}, nil
}

func (a *Account) WithTx(tx *gorm.DB) *Account {
	return &Account{repo: a.repo.WithTx(tx), pointsPerUnit: a.pointsPerUnit, policy: a.policy}
}

var maxPoints = decimal.NewFromInt(math.MaxInt64)

// PointsFor returns floor(price) * points-per-unit. Negative prices earn
// nothing; a product that does not fit in int64 is a validation error.
func (a *Account) PointsFor(price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, nil
	}
	points := price.Floor().Mul(decimal.NewFromInt(a.pointsPerUnit))
	if points.GreaterThan(maxPoints) {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "points earned exceed the maximum balance").
			WithDetails(map[string]any{"price": price.String()})
	}
	return points.IntPart(), nil
}

// Accrue credits the points earned for price to both balances and returns them.
func (a *Account) Accrue(ctx context.Context, customerID int64, price decimal.Decimal) (int64, error) {
	if price.IsNegative() {
		return 0, pkgerrors.New(pkgerrors.CodeValidation, "price must not be negative")
	}
	points, err := a.PointsFor(price)
	if err != nil {
		return 0, err
	}
	ok, err := a.repo.AddPoints(ctx, customerID, points)
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "accrue points")
	}
	if !ok {
		return 0, customerNotFound(customerID)
	}
	return points, nil
}

// Redeem debits points from the current balance according to the account policy.
func (a *Account) Redeem(ctx context.Context, customerID, points int64) error {
	if points < 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "points to redeem must not be negative")
	}
	if points == 0 {
		return nil
	}

	if a.policy == RedeemUnchecked {
		ok, err := a.repo.SubtractPoints(ctx, customerID, points)
		if err != nil {
			return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "redeem points")
		}
		if !ok {
			return customerNotFound(customerID)
		}
		return nil
	}

	ok, err := a.repo.SubtractPointsIfCovered(ctx, customerID, points)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodePersistence, err, "redeem points")
	}
	if ok {
		return nil
	}
	balance, err := a.Balance(ctx, customerID)
	if err != nil {
		return err
	}
	return pkgerrors.New(
		pkgerrors.CodeValidation,
		fmt.Sprintf("cannot redeem %d points with a balance of %d", points, balance.CurrentPoints),
	).WithDetails(map[string]any{
		"discount_points": points,
		"current_points":  balance.CurrentPoints,
	})
}

// Balance reads the customer's current and lifetime points.
func (a *Account) Balance(ctx context.Context, customerID int64) (*Balance, error) {
	customer, err := a.repo.FindByID(ctx, customerID)
	if err != nil {
		if db.IsNotFound(err) {
			return nil, customerNotFound(customerID)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePersistence, err, "load customer")
	}
	return &Balance{CurrentPoints: customer.CurrentPoints, TotalPoints: customer.TotalPoints}, nil
}

// GetBalance serves the read-only points query.
func (a *Account) GetBalance(ctx context.Context, customerID int64) (*Balance, error) {
	if customerID <= 0 {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "customer id must be positive")
	}
	return a.Balance(ctx, customerID)
}

func customerNotFound(customerID int64) *pkgerrors.Error {
	return pkgerrors.Newf(pkgerrors.CodeNotFound, "customer %d not found", customerID)
}
