package model

import "time"

// Instrument is one row of the broker's tradable instrument dump,
// loaded from CSV by the ops CLI. The symbol resolver reads expiry
// dates from this table.
type Instrument struct {
	ID              uint      `gorm:"primaryKey" json:"id"`
	TradingSymbol   string    `gorm:"size:60;not null;uniqueIndex" json:"tradingsymbol"`
	InstrumentToken uint32    `gorm:"index" json:"instrument_token"`
	Name            string    `gorm:"size:60" json:"name"`
	Expiry          time.Time `json:"expiry"`
	Strike          float64   `json:"strike"`
	InstrumentType  string    `gorm:"size:10" json:"instrument_type"`
	Segment         string    `gorm:"size:20" json:"segment"`
	Exchange        string    `gorm:"size:10" json:"exchange"`
	LotSize         int       `json:"lot_size"`
}

func (Instrument) TableName() string {
	return "instruments"
}
