package eventservices

import (
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

// MockDatabase is an in-memory DatabaseService used by tests.
type MockDatabase struct {
	mu           sync.RWMutex
	orders       map[uuid.UUID]*eventmodels.TradeOrder
	entries      map[string]*eventmodels.PortfolioEntry
	appliedFills map[uuid.UUID]bool
	deadLetters  []*eventmodels.DeadLetter
	nextDeadID   uint
}

func NewMockDatabase() *MockDatabase {
	return &MockDatabase{
		orders:       make(map[uuid.UUID]*eventmodels.TradeOrder),
		entries:      make(map[string]*eventmodels.PortfolioEntry),
		appliedFills: make(map[uuid.UUID]bool),
	}
}

func portfolioKey(userID, symbol string) string {
	return userID + "/" + symbol
}

func (m *MockDatabase) SaveOrder(order *eventmodels.TradeOrder) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[order.OrderID] = order.Clone()
	return nil
}

func (m *MockDatabase) FindOrderByID(orderID uuid.UUID) (*eventmodels.TradeOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	order, found := m.orders[orderID]
	if !found {
		return nil, eventmodels.NewResourceNotFoundError("TradeOrder", orderID.String())
	}
	return order.Clone(), nil
}

func (m *MockDatabase) FindOrdersByUserID(userID string) ([]*eventmodels.TradeOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []*eventmodels.TradeOrder
	for _, order := range m.orders {
		if order.UserID == userID {
			orders = append(orders, order.Clone())
		}
	}
	sortOrders(orders)
	return orders, nil
}

func (m *MockDatabase) FindOrdersByStatus(status eventmodels.OrderStatus) ([]*eventmodels.TradeOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var orders []*eventmodels.TradeOrder
	for _, order := range m.orders {
		if order.Status == status {
			orders = append(orders, order.Clone())
		}
	}
	sortOrders(orders)
	return orders, nil
}

func (m *MockDatabase) FindAllOrders() ([]*eventmodels.TradeOrder, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	orders := make([]*eventmodels.TradeOrder, 0, len(m.orders))
	for _, order := range m.orders {
		orders = append(orders, order.Clone())
	}
	sortOrders(orders)
	return orders, nil
}

func (m *MockDatabase) FindPortfolioEntryByID(id uuid.UUID) (*eventmodels.PortfolioEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, entry := range m.entries {
		if entry.ID == id {
			return entry.Clone(), nil
		}
	}
	return nil, eventmodels.NewResourceNotFoundError("PortfolioEntry", id.String())
}

func (m *MockDatabase) FindPortfolioEntry(userID, symbol string) (*eventmodels.PortfolioEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	entry, found := m.entries[portfolioKey(userID, symbol)]
	if !found {
		return nil, eventmodels.NewResourceNotFoundError("PortfolioEntry", userID+"/"+symbol)
	}
	return entry.Clone(), nil
}

func (m *MockDatabase) FindPortfolioByUserID(userID string) ([]*eventmodels.PortfolioEntry, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var entries []*eventmodels.PortfolioEntry
	for _, entry := range m.entries {
		if entry.UserID == userID {
			entries = append(entries, entry.Clone())
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Symbol < entries[j].Symbol })
	return entries, nil
}

func (m *MockDatabase) ApplyFill(entry *eventmodels.PortfolioEntry, orderID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry.Version++
	m.entries[portfolioKey(entry.UserID, entry.Symbol)] = entry.Clone()
	m.appliedFills[orderID] = true
	return nil
}

func (m *MockDatabase) HasAppliedFill(orderID uuid.UUID) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.appliedFills[orderID], nil
}

func (m *MockDatabase) SaveDeadLetter(deadLetter *eventmodels.DeadLetter) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextDeadID++
	deadLetter.ID = m.nextDeadID
	if deadLetter.CreatedAt.IsZero() {
		deadLetter.CreatedAt = time.Now().UTC()
	}

	dup := *deadLetter
	m.deadLetters = append(m.deadLetters, &dup)
	return nil
}

func (m *MockDatabase) FetchDeadLetters() ([]*eventmodels.DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	deadLetters := make([]*eventmodels.DeadLetter, 0, len(m.deadLetters))
	for _, dl := range m.deadLetters {
		dup := *dl
		deadLetters = append(deadLetters, &dup)
	}
	return deadLetters, nil
}

func (m *MockDatabase) FindDeadLetterByID(id uint) (*eventmodels.DeadLetter, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, dl := range m.deadLetters {
		if dl.ID == id {
			dup := *dl
			return &dup, nil
		}
	}
	return nil, eventmodels.NewResourceNotFoundError("DeadLetter", strconv.FormatUint(uint64(id), 10))
}

func (m *MockDatabase) DeleteDeadLetter(id uint) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, dl := range m.deadLetters {
		if dl.ID == id {
			m.deadLetters = append(m.deadLetters[:i], m.deadLetters[i+1:]...)
			return nil
		}
	}
	return nil
}

func sortOrders(orders []*eventmodels.TradeOrder) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.Before(orders[j].CreatedAt)
	})
}
