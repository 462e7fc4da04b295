package eventmodels

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TradeOrder is the order record exchanged between the intake, the processor
// and the reconciler. It is also the JSON wire contract on the bus.
type TradeOrder struct {
	OrderID               uuid.UUID        `json:"orderId"`
	UserID                string           `json:"userId"`
	Symbol                string           `json:"symbol"`
	OrderType             OrderType        `json:"orderType"`
	Status                OrderStatus      `json:"status"`
	Quantity              int              `json:"quantity"`
	Price                 *decimal.Decimal `json:"price,omitempty"`
	StopPrice             *decimal.Decimal `json:"stopPrice,omitempty"`
	CreatedAt             time.Time        `json:"createdAt"`
	UpdatedAt             time.Time        `json:"updatedAt"`
	ExecutedAt            *time.Time       `json:"executedAt,omitempty"`
	ExpiresAt             *time.Time       `json:"expiresAt,omitempty"`
	ExecutionPrice        *decimal.Decimal `json:"executionPrice,omitempty"`
	FilledQuantity        int              `json:"filledQuantity"`
	RemainingQuantity     int              `json:"remainingQuantity"`
	ProcessingAttempts    int              `json:"processingAttempts"`
	LastErrorMessage      string           `json:"lastErrorMessage,omitempty"`
	LastProcessingAttempt *time.Time       `json:"lastProcessingAttempt,omitempty"`
	Notes                 string           `json:"notes,omitempty"`
}

// Validate checks the client-supplied fields and accumulates every violation
// into a single ValidationError instead of failing on the first field.
func (o *TradeOrder) Validate() error {
	fieldErrors := make(map[string]string)

	if strings.TrimSpace(o.UserID) == "" {
		fieldErrors["userId"] = "User ID is required"
	}

	if strings.TrimSpace(o.Symbol) == "" {
		fieldErrors["symbol"] = "Symbol is required"
	}

	if o.OrderType == "" {
		fieldErrors["orderType"] = "Order type is required"
	} else if err := o.OrderType.Validate(); err != nil {
		fieldErrors["orderType"] = err.Error()
	} else {
		if o.OrderType.RequiresPrice() && o.Price == nil {
			fieldErrors["price"] = "Price is required for " + string(o.OrderType) + " orders"
		}
		if o.OrderType.RequiresStopPrice() && o.StopPrice == nil {
			fieldErrors["stopPrice"] = "Stop price is required for " + string(o.OrderType) + " orders"
		}
	}

	if o.Quantity <= 0 {
		fieldErrors["quantity"] = "Quantity must be positive"
	}

	if o.Price != nil && o.Price.IsNegative() {
		fieldErrors["price"] = "Price cannot be negative"
	}

	if o.StopPrice != nil && o.StopPrice.IsNegative() {
		fieldErrors["stopPrice"] = "Stop price cannot be negative"
	}

	if len(fieldErrors) > 0 {
		return NewValidationError("trade order validation failed", fieldErrors)
	}

	return nil
}

// TransitionTo advances the order status, enforcing the state machine.
func (o *TradeOrder) TransitionTo(next OrderStatus) error {
	if !o.Status.CanTransitionTo(next) {
		return NewNonRetryableProcessingError("invalid status transition", o.OrderID,
			string(o.Status)+" -> "+string(next))
	}

	o.Status = next
	o.UpdatedAt = time.Now().UTC()
	return nil
}

// Clone returns a deep copy so stores and consumers never share mutable state.
func (o *TradeOrder) Clone() *TradeOrder {
	dup := *o
	if o.Price != nil {
		p := *o.Price
		dup.Price = &p
	}
	if o.StopPrice != nil {
		p := *o.StopPrice
		dup.StopPrice = &p
	}
	if o.ExecutionPrice != nil {
		p := *o.ExecutionPrice
		dup.ExecutionPrice = &p
	}
	if o.ExecutedAt != nil {
		t := *o.ExecutedAt
		dup.ExecutedAt = &t
	}
	if o.ExpiresAt != nil {
		t := *o.ExpiresAt
		dup.ExpiresAt = &t
	}
	if o.LastProcessingAttempt != nil {
		t := *o.LastProcessingAttempt
		dup.LastProcessingAttempt = &t
	}
	return &dup
}
