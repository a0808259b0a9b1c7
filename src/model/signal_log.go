package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// SignalLog records the actionable row of every signal evaluation, one
// per strategy per scheduling tick.
type SignalLog struct {
	ID          uint            `gorm:"primaryKey" json:"id"`
	Strategy    string          `gorm:"size:100;not null;index" json:"strategy"`
	EvaluatedAt time.Time       `gorm:"not null;index" json:"evaluated_at"`
	BarTime     time.Time       `json:"bar_time"`
	Close       decimal.Decimal `gorm:"type:numeric" json:"close"`
	LongSignal  string          `gorm:"size:10" json:"long_signal"`
	ShortSignal string          `gorm:"size:10" json:"short_signal"`
	Boost       int             `json:"boost"`
	CreatedAt   time.Time       `json:"created_at"`
}

func (SignalLog) TableName() string {
	return "signal_logs"
}
