package eventmodels

import "fmt"

// OrderType is the kind of trade order placed by a user.
type OrderType string

const (
	OrderTypeBuy       OrderType = "BUY"
	OrderTypeSell      OrderType = "SELL"
	OrderTypeMarket    OrderType = "MARKET"
	OrderTypeLimit     OrderType = "LIMIT"
	OrderTypeStop      OrderType = "STOP"
	OrderTypeStopLimit OrderType = "STOP_LIMIT"
)

func (t OrderType) Validate() error {
	switch t {
	case OrderTypeBuy, OrderTypeSell, OrderTypeMarket, OrderTypeLimit, OrderTypeStop, OrderTypeStopLimit:
		return nil
	default:
		return fmt.Errorf("unknown order type: %s", string(t))
	}
}

// RequiresPrice reports whether the order type needs a limit price.
func (t OrderType) RequiresPrice() bool {
	return t == OrderTypeLimit || t == OrderTypeStopLimit
}

// RequiresStopPrice reports whether the order type needs a stop trigger price.
func (t OrderType) RequiresStopPrice() bool {
	return t == OrderTypeStop || t == OrderTypeStopLimit
}
