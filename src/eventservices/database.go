package eventservices

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/tradeplatform/trade-platform/src/eventmodels"
)

// TradeOrderRecord is the persisted form of a trade order.
type TradeOrderRecord struct {
	OrderID               uuid.UUID        `gorm:"column:order_id;type:uuid;primaryKey"`
	UserID                string           `gorm:"column:user_id;type:text;not null;index"`
	Symbol                string           `gorm:"column:symbol;type:text;not null"`
	OrderType             string           `gorm:"column:order_type;type:text;not null"`
	Status                string           `gorm:"column:status;type:text;not null;index"`
	Quantity              int              `gorm:"column:quantity;not null"`
	Price                 *decimal.Decimal `gorm:"column:price;type:numeric(19,4)"`
	StopPrice             *decimal.Decimal `gorm:"column:stop_price;type:numeric(19,4)"`
	CreatedAt             time.Time        `gorm:"column:created_at;type:timestamp;not null"`
	UpdatedAt             time.Time        `gorm:"column:updated_at;type:timestamp;not null"`
	ExecutedAt            *time.Time       `gorm:"column:executed_at;type:timestamp"`
	ExpiresAt             *time.Time       `gorm:"column:expires_at;type:timestamp"`
	ExecutionPrice        *decimal.Decimal `gorm:"column:execution_price;type:numeric(19,4)"`
	FilledQuantity        int              `gorm:"column:filled_quantity;not null"`
	RemainingQuantity     int              `gorm:"column:remaining_quantity;not null"`
	ProcessingAttempts    int              `gorm:"column:processing_attempts;not null"`
	LastErrorMessage      string           `gorm:"column:last_error_message;type:text"`
	LastProcessingAttempt *time.Time       `gorm:"column:last_processing_attempt;type:timestamp"`
	Notes                 string           `gorm:"column:notes;type:text"`
}

func (TradeOrderRecord) TableName() string {
	return "trade_orders"
}

// PortfolioEntryRecord is the persisted form of a portfolio holding.
type PortfolioEntryRecord struct {
	ID                 uuid.UUID        `gorm:"column:id;type:uuid;primaryKey"`
	UserID             string           `gorm:"column:user_id;type:text;not null;uniqueIndex:idx_portfolio_user_symbol"`
	Symbol             string           `gorm:"column:symbol;type:text;not null;uniqueIndex:idx_portfolio_user_symbol"`
	Quantity           int              `gorm:"column:quantity;not null"`
	AveragePrice       decimal.Decimal  `gorm:"column:average_price;type:numeric(19,4);not null"`
	CurrentPrice       decimal.Decimal  `gorm:"column:current_price;type:numeric(19,4)"`
	CostBasis          decimal.Decimal  `gorm:"column:cost_basis;type:numeric(19,4)"`
	MarketValue        decimal.Decimal  `gorm:"column:market_value;type:numeric(19,4)"`
	UnrealizedPnL      decimal.Decimal  `gorm:"column:unrealized_pnl;type:numeric(19,4)"`
	PercentageGainLoss *decimal.Decimal `gorm:"column:percentage_gain_loss;type:numeric(19,4)"`
	LastUpdated        time.Time        `gorm:"column:last_updated;type:timestamp;not null"`
	Notes              string           `gorm:"column:notes;type:text"`
	Version            int64            `gorm:"column:version;not null"`
}

func (PortfolioEntryRecord) TableName() string {
	return "portfolio_entries"
}

// AppliedFillRecord marks a fill as applied to a portfolio so redelivered
// fills ack without side effect.
type AppliedFillRecord struct {
	OrderID   uuid.UUID `gorm:"column:order_id;type:uuid;primaryKey"`
	UserID    string    `gorm:"column:user_id;type:text;not null"`
	Symbol    string    `gorm:"column:symbol;type:text;not null"`
	CreatedAt time.Time `gorm:"column:created_at;type:timestamp;not null"`
}

func (AppliedFillRecord) TableName() string {
	return "applied_fills"
}

// DeadLetterRecord persists a dead-lettered bus message for out-of-band
// inspection and replay.
type DeadLetterRecord struct {
	ID              uint      `gorm:"column:id;primaryKey;autoIncrement"`
	SourceTopic     string    `gorm:"column:source_topic;type:text;not null"`
	SourcePartition int       `gorm:"column:source_partition;not null"`
	SourceOffset    int64     `gorm:"column:source_offset;not null"`
	GroupID         string    `gorm:"column:group_id;type:text;not null"`
	Key             string    `gorm:"column:key;type:text;not null"`
	Payload         []byte    `gorm:"column:payload;type:bytea"`
	ErrorMessage    string    `gorm:"column:error_message;type:text"`
	Attempts        int       `gorm:"column:attempts;not null"`
	CreatedAt       time.Time `gorm:"column:created_at;type:timestamp;not null"`
}

func (DeadLetterRecord) TableName() string {
	return "dead_letters"
}

// DatabaseService is the gorm-backed implementation of
// eventmodels.DatabaseService.
type DatabaseService struct {
	db *gorm.DB
}

func NewDatabaseService(db *gorm.DB) (*DatabaseService, error) {
	if err := db.AutoMigrate(&TradeOrderRecord{}); err != nil {
		return nil, fmt.Errorf("NewDatabaseService: failed to migrate trade_orders: %w", err)
	}

	if err := db.AutoMigrate(&PortfolioEntryRecord{}); err != nil {
		return nil, fmt.Errorf("NewDatabaseService: failed to migrate portfolio_entries: %w", err)
	}

	if err := db.AutoMigrate(&AppliedFillRecord{}); err != nil {
		return nil, fmt.Errorf("NewDatabaseService: failed to migrate applied_fills: %w", err)
	}

	if err := db.AutoMigrate(&DeadLetterRecord{}); err != nil {
		return nil, fmt.Errorf("NewDatabaseService: failed to migrate dead_letters: %w", err)
	}

	return &DatabaseService{db: db}, nil
}

func (s *DatabaseService) SaveOrder(order *eventmodels.TradeOrder) error {
	if err := s.db.Save(toOrderRecord(order)).Error; err != nil {
		return fmt.Errorf("SaveOrder: failed to save order %s: %w", order.OrderID, err)
	}
	return nil
}

func (s *DatabaseService) FindOrderByID(orderID uuid.UUID) (*eventmodels.TradeOrder, error) {
	var rec TradeOrderRecord
	if err := s.db.First(&rec, "order_id = ?", orderID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eventmodels.NewResourceNotFoundError("TradeOrder", orderID.String())
		}
		return nil, fmt.Errorf("FindOrderByID: %w", err)
	}
	return fromOrderRecord(&rec), nil
}

func (s *DatabaseService) FindOrdersByUserID(userID string) ([]*eventmodels.TradeOrder, error) {
	var recs []TradeOrderRecord
	if err := s.db.Where("user_id = ?", userID).Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("FindOrdersByUserID: %w", err)
	}
	return fromOrderRecords(recs), nil
}

func (s *DatabaseService) FindOrdersByStatus(status eventmodels.OrderStatus) ([]*eventmodels.TradeOrder, error) {
	var recs []TradeOrderRecord
	if err := s.db.Where("status = ?", string(status)).Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("FindOrdersByStatus: %w", err)
	}
	return fromOrderRecords(recs), nil
}

func (s *DatabaseService) FindAllOrders() ([]*eventmodels.TradeOrder, error) {
	var recs []TradeOrderRecord
	if err := s.db.Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("FindAllOrders: %w", err)
	}
	return fromOrderRecords(recs), nil
}

func (s *DatabaseService) FindPortfolioEntryByID(id uuid.UUID) (*eventmodels.PortfolioEntry, error) {
	var rec PortfolioEntryRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eventmodels.NewResourceNotFoundError("PortfolioEntry", id.String())
		}
		return nil, fmt.Errorf("FindPortfolioEntryByID: %w", err)
	}
	return fromPortfolioRecord(&rec), nil
}

func (s *DatabaseService) FindPortfolioEntry(userID, symbol string) (*eventmodels.PortfolioEntry, error) {
	var rec PortfolioEntryRecord
	if err := s.db.First(&rec, "user_id = ? AND symbol = ?", userID, symbol).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eventmodels.NewResourceNotFoundError("PortfolioEntry", userID+"/"+symbol)
		}
		return nil, fmt.Errorf("FindPortfolioEntry: %w", err)
	}
	return fromPortfolioRecord(&rec), nil
}

func (s *DatabaseService) FindPortfolioByUserID(userID string) ([]*eventmodels.PortfolioEntry, error) {
	var recs []PortfolioEntryRecord
	if err := s.db.Where("user_id = ?", userID).Order("symbol").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("FindPortfolioByUserID: %w", err)
	}

	entries := make([]*eventmodels.PortfolioEntry, 0, len(recs))
	for i := range recs {
		entries = append(entries, fromPortfolioRecord(&recs[i]))
	}
	return entries, nil
}

func (s *DatabaseService) ApplyFill(entry *eventmodels.PortfolioEntry, orderID uuid.UUID) error {
	rec := toPortfolioRecord(entry)
	rec.Version = entry.Version + 1

	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Save(rec).Error; err != nil {
			return fmt.Errorf("failed to save portfolio entry: %w", err)
		}

		fill := &AppliedFillRecord{
			OrderID:   orderID,
			UserID:    entry.UserID,
			Symbol:    entry.Symbol,
			CreatedAt: time.Now().UTC(),
		}
		if err := tx.Create(fill).Error; err != nil {
			return fmt.Errorf("failed to record applied fill: %w", err)
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("ApplyFill: order %s: %w", orderID, err)
	}

	entry.Version = rec.Version
	return nil
}

func (s *DatabaseService) HasAppliedFill(orderID uuid.UUID) (bool, error) {
	var count int64
	if err := s.db.Model(&AppliedFillRecord{}).Where("order_id = ?", orderID).Count(&count).Error; err != nil {
		return false, fmt.Errorf("HasAppliedFill: %w", err)
	}
	return count > 0, nil
}

func (s *DatabaseService) SaveDeadLetter(deadLetter *eventmodels.DeadLetter) error {
	rec := &DeadLetterRecord{
		SourceTopic:     deadLetter.SourceTopic,
		SourcePartition: deadLetter.SourcePartition,
		SourceOffset:    deadLetter.SourceOffset,
		GroupID:         deadLetter.GroupID,
		Key:             deadLetter.Key,
		Payload:         deadLetter.Payload,
		ErrorMessage:    deadLetter.ErrorMessage,
		Attempts:        deadLetter.Attempts,
		CreatedAt:       deadLetter.CreatedAt,
	}

	if err := s.db.Create(rec).Error; err != nil {
		return fmt.Errorf("SaveDeadLetter: %w", err)
	}

	deadLetter.ID = rec.ID
	return nil
}

func (s *DatabaseService) FetchDeadLetters() ([]*eventmodels.DeadLetter, error) {
	var recs []DeadLetterRecord
	if err := s.db.Order("created_at").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("FetchDeadLetters: %w", err)
	}

	deadLetters := make([]*eventmodels.DeadLetter, 0, len(recs))
	for i := range recs {
		deadLetters = append(deadLetters, fromDeadLetterRecord(&recs[i]))
	}
	return deadLetters, nil
}

func (s *DatabaseService) FindDeadLetterByID(id uint) (*eventmodels.DeadLetter, error) {
	var rec DeadLetterRecord
	if err := s.db.First(&rec, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, eventmodels.NewResourceNotFoundError("DeadLetter", fmt.Sprintf("%d", id))
		}
		return nil, fmt.Errorf("FindDeadLetterByID: %w", err)
	}
	return fromDeadLetterRecord(&rec), nil
}

func (s *DatabaseService) DeleteDeadLetter(id uint) error {
	if err := s.db.Delete(&DeadLetterRecord{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("DeleteDeadLetter: %w", err)
	}
	return nil
}

func toOrderRecord(o *eventmodels.TradeOrder) *TradeOrderRecord {
	return &TradeOrderRecord{
		OrderID:               o.OrderID,
		UserID:                o.UserID,
		Symbol:                o.Symbol,
		OrderType:             string(o.OrderType),
		Status:                string(o.Status),
		Quantity:              o.Quantity,
		Price:                 o.Price,
		StopPrice:             o.StopPrice,
		CreatedAt:             o.CreatedAt,
		UpdatedAt:             o.UpdatedAt,
		ExecutedAt:            o.ExecutedAt,
		ExpiresAt:             o.ExpiresAt,
		ExecutionPrice:        o.ExecutionPrice,
		FilledQuantity:        o.FilledQuantity,
		RemainingQuantity:     o.RemainingQuantity,
		ProcessingAttempts:    o.ProcessingAttempts,
		LastErrorMessage:      o.LastErrorMessage,
		LastProcessingAttempt: o.LastProcessingAttempt,
		Notes:                 o.Notes,
	}
}

func fromOrderRecord(rec *TradeOrderRecord) *eventmodels.TradeOrder {
	return &eventmodels.TradeOrder{
		OrderID:               rec.OrderID,
		UserID:                rec.UserID,
		Symbol:                rec.Symbol,
		OrderType:             eventmodels.OrderType(rec.OrderType),
		Status:                eventmodels.OrderStatus(rec.Status),
		Quantity:              rec.Quantity,
		Price:                 rec.Price,
		StopPrice:             rec.StopPrice,
		CreatedAt:             rec.CreatedAt,
		UpdatedAt:             rec.UpdatedAt,
		ExecutedAt:            rec.ExecutedAt,
		ExpiresAt:             rec.ExpiresAt,
		ExecutionPrice:        rec.ExecutionPrice,
		FilledQuantity:        rec.FilledQuantity,
		RemainingQuantity:     rec.RemainingQuantity,
		ProcessingAttempts:    rec.ProcessingAttempts,
		LastErrorMessage:      rec.LastErrorMessage,
		LastProcessingAttempt: rec.LastProcessingAttempt,
		Notes:                 rec.Notes,
	}
}

func fromOrderRecords(recs []TradeOrderRecord) []*eventmodels.TradeOrder {
	orders := make([]*eventmodels.TradeOrder, 0, len(recs))
	for i := range recs {
		orders = append(orders, fromOrderRecord(&recs[i]))
	}
	return orders
}

func toPortfolioRecord(e *eventmodels.PortfolioEntry) *PortfolioEntryRecord {
	return &PortfolioEntryRecord{
		ID:                 e.ID,
		UserID:             e.UserID,
		Symbol:             e.Symbol,
		Quantity:           e.Quantity,
		AveragePrice:       e.AveragePrice,
		CurrentPrice:       e.CurrentPrice,
		CostBasis:          e.CostBasis,
		MarketValue:        e.MarketValue,
		UnrealizedPnL:      e.UnrealizedPnL,
		PercentageGainLoss: e.PercentageGainLoss,
		LastUpdated:        e.LastUpdated,
		Notes:              e.Notes,
		Version:            e.Version,
	}
}

func fromPortfolioRecord(rec *PortfolioEntryRecord) *eventmodels.PortfolioEntry {
	return &eventmodels.PortfolioEntry{
		ID:                 rec.ID,
		UserID:             rec.UserID,
		Symbol:             rec.Symbol,
		Quantity:           rec.Quantity,
		AveragePrice:       rec.AveragePrice,
		CurrentPrice:       rec.CurrentPrice,
		CostBasis:          rec.CostBasis,
		MarketValue:        rec.MarketValue,
		UnrealizedPnL:      rec.UnrealizedPnL,
		PercentageGainLoss: rec.PercentageGainLoss,
		LastUpdated:        rec.LastUpdated,
		Notes:              rec.Notes,
		Version:            rec.Version,
	}
}

func fromDeadLetterRecord(rec *DeadLetterRecord) *eventmodels.DeadLetter {
	return &eventmodels.DeadLetter{
		ID:              rec.ID,
		SourceTopic:     rec.SourceTopic,
		SourcePartition: rec.SourcePartition,
		SourceOffset:    rec.SourceOffset,
		GroupID:         rec.GroupID,
		Key:             rec.Key,
		Payload:         rec.Payload,
		ErrorMessage:    rec.ErrorMessage,
		Attempts:        rec.Attempts,
		CreatedAt:       rec.CreatedAt,
	}
}
