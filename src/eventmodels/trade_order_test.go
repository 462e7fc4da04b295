package eventmodels

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newValidOrder() *TradeOrder {
	return &TradeOrder{
		UserID:    "user-1",
		Symbol:    "AAPL",
		OrderType: OrderTypeBuy,
		Quantity:  10,
	}
}

func TestTradeOrderValidate(t *testing.T) {
	t.Run("valid buy order", func(t *testing.T) {
		assert.NoError(t, newValidOrder().Validate())
	})

	t.Run("accumulates all field errors", func(t *testing.T) {
		order := &TradeOrder{}

		err := order.Validate()
		require.Error(t, err)

		validationErr, ok := err.(*ValidationError)
		require.True(t, ok)

		assert.Equal(t, "User ID is required", validationErr.FieldErrors["userId"])
		assert.Equal(t, "Symbol is required", validationErr.FieldErrors["symbol"])
		assert.Equal(t, "Order type is required", validationErr.FieldErrors["orderType"])
		assert.Equal(t, "Quantity must be positive", validationErr.FieldErrors["quantity"])
	})

	t.Run("limit order requires price", func(t *testing.T) {
		order := newValidOrder()
		order.OrderType = OrderTypeLimit

		err := order.Validate()
		require.Error(t, err)

		validationErr := err.(*ValidationError)
		assert.Equal(t, "Price is required for LIMIT orders", validationErr.FieldErrors["price"])
	})

	t.Run("stop limit order requires stop price", func(t *testing.T) {
		order := newValidOrder()
		order.OrderType = OrderTypeStopLimit
		price := decimal.NewFromInt(100)
		order.Price = &price

		err := order.Validate()
		require.Error(t, err)

		validationErr := err.(*ValidationError)
		assert.Equal(t, "Stop price is required for STOP_LIMIT orders", validationErr.FieldErrors["stopPrice"])
	})

	t.Run("negative price rejected", func(t *testing.T) {
		order := newValidOrder()
		price := decimal.NewFromInt(-1)
		order.Price = &price

		err := order.Validate()
		require.Error(t, err)

		validationErr := err.(*ValidationError)
		assert.Equal(t, "Price cannot be negative", validationErr.FieldErrors["price"])
	})

	t.Run("unknown order type rejected", func(t *testing.T) {
		order := newValidOrder()
		order.OrderType = "SHORT"

		err := order.Validate()
		require.Error(t, err)

		validationErr := err.(*ValidationError)
		assert.Contains(t, validationErr.FieldErrors["orderType"], "unknown order type")
	})
}

func TestOrderStatusTransitions(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		order := newValidOrder()
		order.Status = OrderStatusCreated

		require.NoError(t, order.TransitionTo(OrderStatusPending))
		require.NoError(t, order.TransitionTo(OrderStatusProcessing))
		require.NoError(t, order.TransitionTo(OrderStatusFilled))
	})

	t.Run("filled is terminal", func(t *testing.T) {
		order := newValidOrder()
		order.Status = OrderStatusFilled

		err := order.TransitionTo(OrderStatusProcessing)
		require.Error(t, err)
		assert.False(t, IsRetryable(err))
	})

	t.Run("failed can reprocess", func(t *testing.T) {
		order := newValidOrder()
		order.Status = OrderStatusFailed

		require.NoError(t, order.TransitionTo(OrderStatusProcessing))
	})

	t.Run("created can go straight to processing", func(t *testing.T) {
		order := newValidOrder()
		order.Status = OrderStatusCreated

		require.NoError(t, order.TransitionTo(OrderStatusProcessing))
	})

	t.Run("transition stamps updatedAt", func(t *testing.T) {
		order := newValidOrder()
		order.Status = OrderStatusCreated
		order.UpdatedAt = time.Time{}

		require.NoError(t, order.TransitionTo(OrderStatusPending))
		assert.False(t, order.UpdatedAt.IsZero())
	})

	t.Run("terminal statuses", func(t *testing.T) {
		assert.True(t, OrderStatusFilled.IsTerminal())
		assert.True(t, OrderStatusFailed.IsTerminal())
		assert.True(t, OrderStatusRejected.IsTerminal())
		assert.False(t, OrderStatusPending.IsTerminal())
		assert.False(t, OrderStatusProcessing.IsTerminal())
	})
}

func TestTradeOrderJSONRoundTrip(t *testing.T) {
	price := decimal.NewFromFloat(150.25)
	executedAt := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)

	order := &TradeOrder{
		OrderID:           uuid.New(),
		UserID:            "user-1",
		Symbol:            "AAPL",
		OrderType:         OrderTypeLimit,
		Status:            OrderStatusFilled,
		Quantity:          10,
		Price:             &price,
		ExecutionPrice:    &price,
		CreatedAt:         executedAt,
		UpdatedAt:         executedAt,
		ExecutedAt:        &executedAt,
		FilledQuantity:    10,
		RemainingQuantity: 0,
	}

	data, err := json.Marshal(order)
	require.NoError(t, err)

	var decoded TradeOrder
	require.NoError(t, json.Unmarshal(data, &decoded))

	assert.Equal(t, order.OrderID, decoded.OrderID)
	assert.Equal(t, order.Status, decoded.Status)
	assert.True(t, order.Price.Equal(*decoded.Price))
	assert.True(t, order.ExecutionPrice.Equal(*decoded.ExecutionPrice))
	assert.Equal(t, order.FilledQuantity, decoded.FilledQuantity)
}

func TestTradeOrderClone(t *testing.T) {
	price := decimal.NewFromInt(100)
	order := newValidOrder()
	order.Price = &price

	dup := order.Clone()
	newPrice := decimal.NewFromInt(200)
	dup.Price = &newPrice
	dup.UserID = "user-2"

	assert.Equal(t, "user-1", order.UserID)
	assert.True(t, order.Price.Equal(price))
}
