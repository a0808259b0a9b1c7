package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// BrokerOrder is the broker-side view of an order as returned by the
// order history and order list endpoints.
type BrokerOrder struct {
	OrderID                 string          `json:"order_id"`
	Status                  string          `json:"status"`
	TradingSymbol           string          `json:"tradingsymbol"`
	TransactionType         string          `json:"transaction_type"`
	OrderType               string          `json:"order_type"`
	Quantity                int             `json:"quantity"`
	Price                   decimal.Decimal `json:"price"`
	InstrumentToken         uint32          `json:"instrument_token"`
	OrderTimestamp          time.Time       `json:"order_timestamp"`
	ExchangeUpdateTimestamp time.Time       `json:"exchange_update_timestamp"`
}

// Snapshot converts a broker order into a ledger row for the given
// strategy and slot.
func (o *BrokerOrder) Snapshot(strategy, slot string) OrderSnapshot {
	return OrderSnapshot{
		Strategy:        strategy,
		Slot:            slot,
		OrderID:         o.OrderID,
		OrderType:       o.OrderType,
		Status:          o.Status,
		TradingSymbol:   o.TradingSymbol,
		InstrumentToken: o.InstrumentToken,
		Quantity:        o.Quantity,
		Price:           o.Price,
		Signal:          slot,
		OrderTime:       o.OrderTimestamp,
		ExecutionTime:   o.ExchangeUpdateTimestamp,
	}
}

// Quote is the last traded price of an instrument.
type Quote struct {
	TradingSymbol   string          `json:"tradingsymbol"`
	InstrumentToken uint32          `json:"instrument_token"`
	LastPrice       decimal.Decimal `json:"last_price"`
}

// Position is an open position as reported by the broker, shown on the
// status endpoint at startup.
type Position struct {
	TradingSymbol string          `json:"tradingsymbol"`
	Quantity      int             `json:"quantity"`
	LastPrice     decimal.Decimal `json:"last_price"`
	PnL           decimal.Decimal `json:"pnl"`
}
