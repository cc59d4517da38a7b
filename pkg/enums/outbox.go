package enums

import (
	"database/sql/driver"
	"fmt"
	"slices"
)

// OutboxAggregateType maps to the outbox_aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateTransaction OutboxAggregateType = "transaction"
	AggregateIngredient  OutboxAggregateType = "ingredient"
)

func (a OutboxAggregateType) IsValid() bool {
	return slices.Contains([]OutboxAggregateType{AggregateTransaction, AggregateIngredient}, a)
}

// Value refuses to write an aggregate type the database enum would reject.
func (a OutboxAggregateType) Value() (driver.Value, error) {
	if !a.IsValid() {
		return nil, fmt.Errorf("invalid aggregate type %q", string(a))
	}
	return string(a), nil
}

// OutboxEventType maps to the outbox_event_type enum in Postgres and doubles
// as the routing key for the publisher.
type OutboxEventType string

const (
	EventTransactionCreated OutboxEventType = "transaction_created"
	EventIngredientLowStock OutboxEventType = "ingredient_low_stock"
)

func (e OutboxEventType) IsValid() bool {
	return slices.Contains([]OutboxEventType{EventTransactionCreated, EventIngredientLowStock}, e)
}

func (e OutboxEventType) Value() (driver.Value, error) {
	if !e.IsValid() {
		return nil, fmt.Errorf("invalid event type %q", string(e))
	}
	return string(e), nil
}
