package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order statuses. The broker reports arbitrary strings; the ledger only
// interprets these three plus the local "none" sentinel for empty slots.
const (
	OrderIDNone = "none"

	OrderStatusNone     = "none"
	OrderStatusOpen     = "OPEN"
	OrderStatusPending  = "PENDING"
	OrderStatusComplete = "COMPLETE"
	OrderStatusRejected = "REJECTED"
)

const OrderTypeLimit = "LIMIT"

// OrderSnapshot is one ledger row: the last known broker state of the
// order occupying a (strategy, slot) pair. Every strategy always has
// exactly four rows, one per signal slot.
type OrderSnapshot struct {
	ID              uint            `gorm:"primaryKey" json:"id"`
	Strategy        string          `gorm:"size:100;not null;uniqueIndex:idx_strategy_slot" json:"strategy"`
	Slot            string          `gorm:"size:4;not null;uniqueIndex:idx_strategy_slot" json:"slot"`
	OrderID         string          `gorm:"size:60;not null;default:none" json:"order_id"`
	OrderType       string          `gorm:"size:20" json:"order_type"`
	Status          string          `gorm:"size:30;not null;default:none" json:"status"`
	TradingSymbol   string          `gorm:"size:60" json:"tradingsymbol"`
	InstrumentToken uint32          `json:"instrument_token"`
	Quantity        int             `json:"quantity"`
	Price           decimal.Decimal `gorm:"type:numeric" json:"price"`
	Signal          string          `gorm:"size:4" json:"signal"`
	OrderTime       time.Time       `json:"order_time"`
	ExecutionTime   time.Time       `json:"execution_time"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// TableName controls the exact table name for ledger rows.
func (OrderSnapshot) TableName() string {
	return "order_snapshots"
}

// EmptySnapshot returns the sentinel row for an unoccupied slot.
func EmptySnapshot(strategy, slot string, now time.Time) OrderSnapshot {
	return OrderSnapshot{
		Strategy:      strategy,
		Slot:          slot,
		OrderID:       OrderIDNone,
		OrderType:     OrderStatusNone,
		Status:        OrderStatusNone,
		TradingSymbol: OrderStatusNone,
		Signal:        "",
		OrderTime:     now,
		ExecutionTime: now,
	}
}

// IsEmpty reports whether the slot holds no order.
func (s *OrderSnapshot) IsEmpty() bool {
	return s.OrderID == OrderIDNone
}

// IsLive reports whether the slot holds an order the broker may still
// act on, i.e. one worth reconciling.
func (s *OrderSnapshot) IsLive() bool {
	switch s.Status {
	case OrderStatusNone, OrderStatusComplete, OrderStatusRejected:
		return false
	}
	return true
}
