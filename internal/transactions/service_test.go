package transactions

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/kioskpos/pos-backend/pkg/db/dbtest"
	"github.com/kioskpos/pos-backend/pkg/db/models"
	pkgerrors "github.com/kioskpos/pos-backend/pkg/errors"
)

func newRecorder(t *testing.T) (*Recorder, *gorm.DB) {
	t.Helper()
	conn := dbtest.Open(t)
	recorder, err := NewRecorder(NewRepository(conn))
	require.NoError(t, err)
	return recorder, conn
}

func TestRecordWritesHeaderAndMergedDetails(t *testing.T) {
	recorder, conn := newRecorder(t)
	employee := dbtest.Employee(t, conn, "Sam", true)
	customer := dbtest.Customer(t, conn, "ana@example.com", 0, 0)
	bowl := dbtest.MenuItem(t, conn, "Bowl", "6.00", true, nil)
	tea := dbtest.MenuItem(t, conn, "Tea", "2.50", true, nil)
	orderedAt := time.Date(2026, 9, 1, 12, 30, 0, 0, time.UTC)

	recorded, err := recorder.Record(context.Background(), RecordInput{
		CustomerLabel:  " Ana ",
		EmployeeID:     employee.ID,
		CustomerID:     &customer.ID,
		TotalPrice:     decimal.RequireFromString("17.00"),
		PointsEarned:   170,
		PointsRedeemed: 20,
		OrderedAt:      orderedAt,
		Lines: []Line{
			{MenuItemID: tea.ID, Quantity: 1},
			{MenuItemID: bowl.ID, Quantity: 2},
			{MenuItemID: tea.ID, Quantity: 1},
		},
	})
	require.NoError(t, err)
	assert.Positive(t, recorded.ID)
	assert.True(t, recorded.OrderedAt.Equal(orderedAt))

	txn, err := recorder.FindByID(context.Background(), recorded.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ana", txn.CustomerLabel)
	assert.True(t, txn.TotalPrice.Equal(decimal.RequireFromString("17")))
	require.NotNil(t, txn.CustomerID)
	assert.Equal(t, customer.ID, *txn.CustomerID)
	assert.Equal(t, int64(170), txn.PointsEarned)
	require.Len(t, txn.Details, 2)
	assert.Equal(t, bowl.ID, txn.Details[0].MenuItemID)
	assert.Equal(t, 2, txn.Details[0].Quantity)
	assert.Equal(t, tea.ID, txn.Details[1].MenuItemID)
	assert.Equal(t, 2, txn.Details[1].Quantity)
}

func TestRecordGuestUsesClock(t *testing.T) {
	recorder, conn := newRecorder(t)
	employee := dbtest.Employee(t, conn, "Sam", true)
	fixed := time.Date(2026, 10, 1, 8, 0, 0, 0, time.UTC)
	recorder.now = func() time.Time { return fixed }

	recorded, err := recorder.Record(context.Background(), RecordInput{
		CustomerLabel: "Walk-in",
		EmployeeID:    employee.ID,
		TotalPrice:    decimal.Zero,
	})
	require.NoError(t, err)
	assert.True(t, recorded.OrderedAt.Equal(fixed))

	txn, err := recorder.FindByID(context.Background(), recorded.ID)
	require.NoError(t, err)
	assert.Nil(t, txn.CustomerID)
	assert.Empty(t, txn.Details)
}

func TestRecordValidation(t *testing.T) {
	recorder, conn := newRecorder(t)
	employee := dbtest.Employee(t, conn, "Sam", true)

	cases := []RecordInput{
		{CustomerLabel: " ", EmployeeID: employee.ID},
		{CustomerLabel: "Ana"},
		{CustomerLabel: "Ana", EmployeeID: employee.ID, TotalPrice: decimal.NewFromInt(-1)},
		{CustomerLabel: "Ana", EmployeeID: employee.ID, Lines: []Line{{MenuItemID: 1, Quantity: 0}}},
	}
	for i, input := range cases {
		_, err := recorder.Record(context.Background(), input)
		assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation), "case %d: %v", i, err)
	}
}

func TestFindByIDErrors(t *testing.T) {
	recorder, _ := newRecorder(t)
	_, err := recorder.FindByID(context.Background(), 0)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeValidation))
	_, err = recorder.FindByID(context.Background(), 12)
	assert.True(t, pkgerrors.IsCode(err, pkgerrors.CodeNotFound))
}

func TestRecordRollsBackWithTransaction(t *testing.T) {
	recorder, conn := newRecorder(t)
	employee := dbtest.Employee(t, conn, "Sam", true)

	err := conn.Transaction(func(tx *gorm.DB) error {
		if _, err := recorder.WithTx(tx).Record(context.Background(), RecordInput{
			CustomerLabel: "Ana",
			EmployeeID:    employee.ID,
			TotalPrice:    decimal.NewFromInt(3),
		}); err != nil {
			return err
		}
		return pkgerrors.New(pkgerrors.CodeInsufficientStock, "later step failed")
	})
	require.Error(t, err)
	assert.Zero(t, dbtest.Count(t, conn, &models.Transaction{}))
}
