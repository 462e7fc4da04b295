package eventservices

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
	"github.com/tradeplatform/trade-platform/src/eventpubsub"
)

// TradeOrderService owns the order intake and the execution simulation. The
// intake validates and stamps new orders and hands them to the bus; the
// processing side consumes them, runs the lifecycle state machine and
// forwards filled orders to the reconciliation topic.
type TradeOrderService struct {
	db                eventmodels.DatabaseService
	bus               *eventpubsub.Bus
	ordersTopic       string
	filledOrdersTopic string
	execCfg           eventmodels.ExecutionConfig

	rngMu sync.Mutex
	rng   *rand.Rand
}

func NewTradeOrderService(db eventmodels.DatabaseService, bus *eventpubsub.Bus, ordersTopic, filledOrdersTopic string, execCfg eventmodels.ExecutionConfig) *TradeOrderService {
	return &TradeOrderService{
		db:                db,
		bus:               bus,
		ordersTopic:       ordersTopic,
		filledOrdersTopic: filledOrdersTopic,
		execCfg:           execCfg,
		rng:               rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateOrder validates a new order, stamps it and publishes it to the
// orders topic keyed by order id. The status advances to PENDING only after
// the publish is acknowledged, so the caller never sees PENDING for an order
// the bus did not accept.
func (s *TradeOrderService) CreateOrder(order *eventmodels.TradeOrder) (*eventmodels.TradeOrder, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	order.OrderID = uuid.New()
	order.Status = eventmodels.OrderStatusCreated
	order.CreatedAt = now
	order.UpdatedAt = now
	order.FilledQuantity = 0
	order.RemainingQuantity = order.Quantity
	order.ProcessingAttempts = 0
	order.ExecutionPrice = nil
	order.ExecutedAt = nil
	order.LastErrorMessage = ""
	order.LastProcessingAttempt = nil

	payload, err := json.Marshal(order)
	if err != nil {
		return nil, fmt.Errorf("CreateOrder: failed to marshal order %s: %w", order.OrderID, err)
	}

	if err := s.bus.Publish(s.ordersTopic, order.OrderID.String(), payload, nil); err != nil {
		log.Errorf("CreateOrder: failed to publish order %s: %v", order.OrderID, err)
		procErr := eventmodels.NewProcessingError("failed to publish order to processing queue", order.OrderID, "publishing error")
		procErr.Cause = err
		return nil, procErr
	}

	if err := order.TransitionTo(eventmodels.OrderStatusPending); err != nil {
		return nil, fmt.Errorf("CreateOrder: %w", err)
	}

	log.Infof("CreateOrder: order %s published to %s", order.OrderID, s.ordersTopic)
	return order, nil
}

// ProcessOrder runs the execution simulation for a dequeued order. Because
// the bus redelivers on failure, reprocessing an order already in a terminal
// state short-circuits to the stored result instead of re-simulating a
// different random outcome. FAILED orders are the exception: the retry path
// exists to reprocess them.
func (s *TradeOrderService) ProcessOrder(order *eventmodels.TradeOrder) (*eventmodels.TradeOrder, error) {
	log.Infof("ProcessOrder: processing order: %s", order.OrderID)

	existing, err := s.db.FindOrderByID(order.OrderID)
	if err != nil {
		var notFoundErr *eventmodels.ResourceNotFoundError
		if !errors.As(err, &notFoundErr) {
			procErr := eventmodels.NewProcessingError("failed to load order", order.OrderID, "storage error")
			procErr.Cause = err
			return nil, procErr
		}
	}

	if existing != nil {
		if existing.Status == eventmodels.OrderStatusFilled {
			log.Infof("ProcessOrder: order %s already filled, returning stored result", order.OrderID)
			if err := s.forwardFilledOrder(existing); err != nil {
				return nil, err
			}
			return existing, nil
		}

		if existing.Status.IsTerminal() && existing.Status != eventmodels.OrderStatusFailed {
			log.Infof("ProcessOrder: order %s already terminal (%s), skipping", order.OrderID, existing.Status)
			return existing, nil
		}

		order.ProcessingAttempts = existing.ProcessingAttempts
		order.Status = existing.Status
	}

	now := time.Now().UTC()
	order.ProcessingAttempts++
	order.LastProcessingAttempt = &now

	// A redelivery may find the order still marked PROCESSING from an
	// interrupted attempt; that is not a transition.
	if order.Status != eventmodels.OrderStatusProcessing {
		if err := order.TransitionTo(eventmodels.OrderStatusProcessing); err != nil {
			return nil, err
		}
	}

	// Persist before simulating so a crash mid-attempt is observable.
	if err := s.db.SaveOrder(order); err != nil {
		procErr := eventmodels.NewProcessingError("failed to persist order", order.OrderID, "storage error")
		procErr.Cause = err
		return nil, procErr
	}

	if err := s.simulateOrderExecution(order); err != nil {
		log.Errorf("ProcessOrder: error processing order %s: %v", order.OrderID, err)

		if transitionErr := order.TransitionTo(eventmodels.OrderStatusFailed); transitionErr != nil {
			return nil, transitionErr
		}
		order.LastErrorMessage = err.Error()
		order.ExecutionPrice = nil
		order.FilledQuantity = 0
		order.RemainingQuantity = order.Quantity

		if saveErr := s.db.SaveOrder(order); saveErr != nil {
			log.Errorf("ProcessOrder: failed to persist failed order %s: %v", order.OrderID, saveErr)
		}

		return nil, err
	}

	if err := order.TransitionTo(eventmodels.OrderStatusFilled); err != nil {
		return nil, err
	}

	executedAt := time.Now().UTC()
	order.ExecutedAt = &executedAt
	order.FilledQuantity = order.Quantity
	order.RemainingQuantity = 0
	order.LastErrorMessage = ""

	if err := s.db.SaveOrder(order); err != nil {
		procErr := eventmodels.NewProcessingError("failed to persist filled order", order.OrderID, "storage error")
		procErr.Cause = err
		return nil, procErr
	}

	if err := s.forwardFilledOrder(order); err != nil {
		return nil, err
	}

	log.Infof("ProcessOrder: order processed successfully: %s", order.OrderID)
	return order, nil
}

func (s *TradeOrderService) forwardFilledOrder(order *eventmodels.TradeOrder) error {
	payload, err := json.Marshal(order)
	if err != nil {
		return fmt.Errorf("forwardFilledOrder: failed to marshal order %s: %w", order.OrderID, err)
	}

	if err := s.bus.Publish(s.filledOrdersTopic, order.OrderID.String(), payload, nil); err != nil {
		procErr := eventmodels.NewProcessingError("failed to forward filled order", order.OrderID, "publishing error")
		procErr.Cause = err
		return procErr
	}

	log.Debugf("forwardFilledOrder: order %s forwarded to %s", order.OrderID, s.filledOrdersTopic)
	return nil
}

// simulateOrderExecution stands in for matching against a real market: a
// bounded delay, a price derived from the order's limit price (within ±2%)
// or drawn from a bounded range, and a small injected failure rate to
// exercise the retry path.
func (s *TradeOrderService) simulateOrderExecution(order *eventmodels.TradeOrder) error {
	if delay := s.executionDelay(); delay > 0 {
		time.Sleep(delay)
	}

	var executionPrice decimal.Decimal
	if order.Price != nil {
		variation := decimal.NewFromFloat(0.98 + s.randFloat64()*0.04)
		executionPrice = order.Price.Mul(variation).Round(2)
	} else {
		executionPrice = decimal.NewFromInt(10 + int64(s.randIntn(990))).Round(2)
	}

	order.ExecutionPrice = &executionPrice
	order.FilledQuantity = order.Quantity
	order.RemainingQuantity = 0

	if s.randIntn(100) < s.execCfg.FailureRatePct {
		return eventmodels.NewProcessingError("simulated random execution failure", order.OrderID, "execution failure")
	}

	return nil
}

func (s *TradeOrderService) executionDelay() time.Duration {
	minDelay := s.execCfg.MinDelay.Std()
	maxDelay := s.execCfg.MaxDelay.Std()

	if maxDelay <= minDelay {
		return minDelay
	}
	return minDelay + time.Duration(s.randInt63n(int64(maxDelay-minDelay)))
}

func (s *TradeOrderService) GetOrderByID(orderID uuid.UUID) (*eventmodels.TradeOrder, error) {
	return s.db.FindOrderByID(orderID)
}

func (s *TradeOrderService) GetOrdersByUserID(userID string) ([]*eventmodels.TradeOrder, error) {
	return s.db.FindOrdersByUserID(userID)
}

func (s *TradeOrderService) GetOrdersByStatus(status eventmodels.OrderStatus) ([]*eventmodels.TradeOrder, error) {
	return s.db.FindOrdersByStatus(status)
}

func (s *TradeOrderService) GetAllOrders() ([]*eventmodels.TradeOrder, error) {
	return s.db.FindAllOrders()
}

func (s *TradeOrderService) randFloat64() float64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Float64()
}

func (s *TradeOrderService) randIntn(n int) int {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Intn(n)
}

func (s *TradeOrderService) randInt63n(n int64) int64 {
	s.rngMu.Lock()
	defer s.rngMu.Unlock()
	return s.rng.Int63n(n)
}
