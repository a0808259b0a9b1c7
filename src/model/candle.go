package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Candle intervals supported by the broker's historical data endpoint.
const (
	Interval15Minute = "15minute"
	Interval60Minute = "60minute"
)

// Candle is one OHLC bar from the broker's historical data endpoint.
type Candle struct {
	Date   time.Time       `json:"date"`
	Open   decimal.Decimal `json:"open"`
	High   decimal.Decimal `json:"high"`
	Low    decimal.Decimal `json:"low"`
	Close  decimal.Decimal `json:"close"`
	Volume int64           `json:"volume"`
}
