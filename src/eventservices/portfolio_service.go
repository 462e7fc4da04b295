package eventservices

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
)

// PortfolioService reconciles filled orders into portfolio holdings. Writes
// for the same (userId, symbol) pair are serialized through a keyed lock so
// concurrent fills never interleave their read-modify-write cycles.
type PortfolioService struct {
	db          eventmodels.DatabaseService
	locks       *eventpubsub.KeyedLock
	lockTimeout time.Duration
}

func NewPortfolioService(db eventmodels.DatabaseService, cfg eventmodels.PortfolioConfig) *PortfolioService {
	return &PortfolioService{
		db:          db,
		locks:       eventpubsub.NewKeyedLock(),
		lockTimeout: cfg.LockTimeout.Std(),
	}
}

// UpdatePortfolio applies a filled order to the owning user's position in
// that symbol. Duplicate deliveries of the same order are detected via the
// applied-fill ledger and acknowledged without touching the position, so the
// operation is idempotent. Lock acquisition is bounded by lockTimeout; a
// timeout is returned as a retryable error so the bus redelivers the fill.
func (s *PortfolioService) UpdatePortfolio(ctx context.Context, order *eventmodels.TradeOrder) (*eventmodels.PortfolioEntry, error) {
	if order.Status != eventmodels.OrderStatusFilled {
		return nil, eventmodels.NewNonRetryableProcessingError(
			fmt.Sprintf("order %s is not filled (status %s)", order.OrderID, order.Status), order.OrderID, "invalid order status")
	}
	if order.ExecutionPrice == nil {
		return nil, eventmodels.NewNonRetryableProcessingError(
			fmt.Sprintf("order %s has no execution price", order.OrderID), order.OrderID, "missing execution price")
	}

	lockKey := order.UserID + "/" + order.Symbol

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
	defer cancel()

	if err := s.locks.Acquire(lockCtx, lockKey); err != nil {
		log.Warnf("UpdatePortfolio: lock timeout for %s (order %s)", lockKey, order.OrderID)
		procErr := eventmodels.NewProcessingError("timed out waiting for portfolio lock", order.OrderID, "lock timeout")
		procErr.Cause = err
		return nil, procErr
	}
	defer s.locks.Release(lockKey)

	applied, err := s.db.HasAppliedFill(order.OrderID)
	if err != nil {
		procErr := eventmodels.NewProcessingError("failed to check applied fills", order.OrderID, "storage error")
		procErr.Cause = err
		return nil, procErr
	}
	if applied {
		log.Infof("UpdatePortfolio: fill for order %s already applied, skipping", order.OrderID)
		return s.db.FindPortfolioEntry(order.UserID, order.Symbol)
	}

	entry, err := s.db.FindPortfolioEntry(order.UserID, order.Symbol)
	if err != nil {
		var notFoundErr *eventmodels.ResourceNotFoundError
		if !errors.As(err, &notFoundErr) {
			procErr := eventmodels.NewProcessingError("failed to load portfolio entry", order.OrderID, "storage error")
			procErr.Cause = err
			return nil, procErr
		}
		entry = eventmodels.NewPortfolioEntry(order.UserID, order.Symbol)
	}

	if err := s.applyFill(entry, order); err != nil {
		return nil, err
	}

	entry.CurrentPrice = *order.ExecutionPrice
	entry.UpdateCalculatedFields()
	entry.LastUpdated = time.Now().UTC()
	entry.Notes = fillNote(order)

	if err := s.db.ApplyFill(entry, order.OrderID); err != nil {
		procErr := eventmodels.NewProcessingError("failed to persist portfolio entry", order.OrderID, "storage error")
		procErr.Cause = err
		return nil, procErr
	}

	log.Infof("UpdatePortfolio: applied order %s to %s: quantity=%d averagePrice=%s",
		order.OrderID, lockKey, entry.Quantity, entry.AveragePrice)
	return entry, nil
}

// applyFill mutates the position quantities and average price for one fill.
// BUY re-weights the average price across old and new shares; SELL keeps the
// average price and only reduces quantity, after checking the position can
// cover the sale.
func (s *PortfolioService) applyFill(entry *eventmodels.PortfolioEntry, order *eventmodels.TradeOrder) error {
	filledQty := decimal.NewFromInt(int64(order.FilledQuantity))
	executionPrice := *order.ExecutionPrice

	switch order.OrderType {
	case eventmodels.OrderTypeBuy:
		oldQty := decimal.NewFromInt(int64(entry.Quantity))
		newQty := oldQty.Add(filledQty)

		totalCost := entry.AveragePrice.Mul(oldQty).Add(executionPrice.Mul(filledQty))
		entry.AveragePrice = totalCost.Div(newQty).Round(4)
		entry.Quantity += order.FilledQuantity

	case eventmodels.OrderTypeSell:
		if entry.Quantity < order.FilledQuantity {
			return eventmodels.NewNonRetryableProcessingError(
				fmt.Sprintf("Insufficient shares: have %d, trying to sell %d", entry.Quantity, order.FilledQuantity),
				order.OrderID, "insufficient shares")
		}
		entry.Quantity -= order.FilledQuantity

	default:
		return eventmodels.NewNonRetryableProcessingError(
			fmt.Sprintf("unsupported order type %s", order.OrderType), order.OrderID, "unsupported order type")
	}

	return nil
}

func fillNote(order *eventmodels.TradeOrder) string {
	verb := "Bought"
	if order.OrderType == eventmodels.OrderTypeSell {
		verb = "Sold"
	}

	executedAt := time.Now().UTC()
	if order.ExecutedAt != nil {
		executedAt = *order.ExecutedAt
	}

	return fmt.Sprintf("%s %d shares at %s on %s (Order ID: %s)",
		verb, order.FilledQuantity, order.ExecutionPrice, executedAt.Format(time.RFC3339), order.OrderID)
}

func (s *PortfolioService) GetPortfolioByUserID(userID string) ([]*eventmodels.PortfolioEntry, error) {
	return s.db.FindPortfolioByUserID(userID)
}

func (s *PortfolioService) GetPortfolioEntryByID(id uuid.UUID) (*eventmodels.PortfolioEntry, error) {
	return s.db.FindPortfolioEntryByID(id)
}

func (s *PortfolioService) GetPortfolioEntry(userID, symbol string) (*eventmodels.PortfolioEntry, error) {
	return s.db.FindPortfolioEntry(userID, symbol)
}
