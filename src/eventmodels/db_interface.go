package eventmodels

import "github.com/google/uuid"

// DatabaseService is the storage contract shared by the pipeline stages.
// Implementations must be safe for concurrent use; the portfolio write path
// additionally relies on the reconciler's per-(userId, symbol) lock for
// serialization of read-modify-write cycles.
type DatabaseService interface {
	SaveOrder(order *TradeOrder) error
	FindOrderByID(orderID uuid.UUID) (*TradeOrder, error)
	FindOrdersByUserID(userID string) ([]*TradeOrder, error)
	FindOrdersByStatus(status OrderStatus) ([]*TradeOrder, error)
	FindAllOrders() ([]*TradeOrder, error)

	FindPortfolioEntryByID(id uuid.UUID) (*PortfolioEntry, error)
	FindPortfolioEntry(userID, symbol string) (*PortfolioEntry, error)
	FindPortfolioByUserID(userID string) ([]*PortfolioEntry, error)

	// ApplyFill persists the updated entry and records the applied order id
	// in a single transaction, bumping the entry version.
	ApplyFill(entry *PortfolioEntry, orderID uuid.UUID) error
	HasAppliedFill(orderID uuid.UUID) (bool, error)

	SaveDeadLetter(deadLetter *DeadLetter) error
	FetchDeadLetters() ([]*DeadLetter, error)
	FindDeadLetterByID(id uint) (*DeadLetter, error)
	DeleteDeadLetter(id uint) error
}
