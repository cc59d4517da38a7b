package enums

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValueRejectsUnknownMembers(t *testing.T) {
	v, err := EventIngredientLowStock.Value()
	require.NoError(t, err)
	assert.Equal(t, "ingredient_low_stock", v)

	_, err = OutboxEventType("order_teleported").Value()
	assert.Error(t, err)

	_, err = OutboxAggregateType("").Value()
	assert.Error(t, err)

	v, err = MovementReasonSale.Value()
	require.NoError(t, err)
	assert.Equal(t, "sale", v)

	_, err = MovementReason("theft").Value()
	assert.Error(t, err)
}
