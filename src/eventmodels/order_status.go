package eventmodels

import "fmt"

// OrderStatus tracks a trade order through its lifecycle.
type OrderStatus string

const (
	OrderStatusCreated         OrderStatus = "CREATED"
	OrderStatusPending         OrderStatus = "PENDING"
	OrderStatusProcessing      OrderStatus = "PROCESSING"
	OrderStatusPartiallyFilled OrderStatus = "PARTIALLY_FILLED"
	OrderStatusFilled          OrderStatus = "FILLED"
	OrderStatusCancelled       OrderStatus = "CANCELLED"
	OrderStatusRejected        OrderStatus = "REJECTED"
	OrderStatusFailed          OrderStatus = "FAILED"
	OrderStatusExpired         OrderStatus = "EXPIRED"
)

func (s OrderStatus) Validate() error {
	switch s {
	case OrderStatusCreated, OrderStatusPending, OrderStatusProcessing, OrderStatusPartiallyFilled,
		OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusFailed, OrderStatusExpired:
		return nil
	default:
		return fmt.Errorf("unknown order status: %s", string(s))
	}
}

// IsTerminal reports whether no further execution is expected for the order.
// FAILED is terminal in the taxonomy but remains re-processable: the consumer
// retry path exists precisely to reprocess failed orders.
func (s OrderStatus) IsTerminal() bool {
	switch s {
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusFailed, OrderStatusExpired:
		return true
	case OrderStatusCreated, OrderStatusPending, OrderStatusProcessing, OrderStatusPartiallyFilled:
		return false
	default:
		return false
	}
}

// CanTransitionTo encodes the order state machine. CREATED may move directly
// to PROCESSING because the intake publishes the order before advancing its
// own copy to PENDING. FAILED may move back to PROCESSING on redelivery.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	switch s {
	case OrderStatusCreated:
		return next == OrderStatusPending || next == OrderStatusProcessing || next == OrderStatusRejected
	case OrderStatusPending:
		return next == OrderStatusProcessing || next == OrderStatusCancelled || next == OrderStatusExpired
	case OrderStatusProcessing:
		return next == OrderStatusFilled || next == OrderStatusPartiallyFilled ||
			next == OrderStatusFailed || next == OrderStatusRejected
	case OrderStatusPartiallyFilled:
		return next == OrderStatusFilled || next == OrderStatusCancelled || next == OrderStatusExpired
	case OrderStatusFailed:
		return next == OrderStatusProcessing
	case OrderStatusFilled, OrderStatusCancelled, OrderStatusRejected, OrderStatusExpired:
		return false
	default:
		return false
	}
}
