package eventmodels

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PortfolioEntry is a user's holding in a single symbol. Entries are keyed
// uniquely by (userId, symbol); Version increments on every applied fill.
type PortfolioEntry struct {
	ID                 uuid.UUID        `json:"id"`
	UserID             string           `json:"userId"`
	Symbol             string           `json:"symbol"`
	Quantity           int              `json:"quantity"`
	AveragePrice       decimal.Decimal  `json:"averagePrice"`
	CurrentPrice       decimal.Decimal  `json:"currentPrice"`
	CostBasis          decimal.Decimal  `json:"costBasis"`
	MarketValue        decimal.Decimal  `json:"marketValue"`
	UnrealizedPnL      decimal.Decimal  `json:"unrealizedPnL"`
	PercentageGainLoss *decimal.Decimal `json:"percentageGainLoss,omitempty"`
	LastUpdated        time.Time        `json:"lastUpdated"`
	Notes              string           `json:"notes,omitempty"`
	Version            int64            `json:"version"`
}

func NewPortfolioEntry(userID, symbol string) *PortfolioEntry {
	return &PortfolioEntry{
		ID:           uuid.New(),
		UserID:       userID,
		Symbol:       symbol,
		Quantity:     0,
		AveragePrice: decimal.Zero,
		CurrentPrice: decimal.Zero,
		LastUpdated:  time.Now().UTC(),
	}
}

// UpdateCalculatedFields recomputes the derived valuation fields from
// quantity, averagePrice and currentPrice. PercentageGainLoss is defined
// only when the cost basis is positive.
func (e *PortfolioEntry) UpdateCalculatedFields() {
	qty := decimal.NewFromInt(int64(e.Quantity))

	e.CostBasis = e.AveragePrice.Mul(qty)
	e.MarketValue = e.CurrentPrice.Mul(qty)
	e.UnrealizedPnL = e.MarketValue.Sub(e.CostBasis)

	if e.CostBasis.IsPositive() {
		pct := e.UnrealizedPnL.Div(e.CostBasis).Round(4).Mul(decimal.NewFromInt(100))
		e.PercentageGainLoss = &pct
	} else {
		e.PercentageGainLoss = nil
	}

	e.LastUpdated = time.Now().UTC()
}

// Clone returns a deep copy of the entry.
func (e *PortfolioEntry) Clone() *PortfolioEntry {
	dup := *e
	if e.PercentageGainLoss != nil {
		pct := *e.PercentageGainLoss
		dup.PercentageGainLoss = &pct
	}
	return &dup
}
