package repository

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/aamirazhar/phithebot/src/database"
	"github.com/aamirazhar/phithebot/src/model"
)

// InstrumentRepository serves the broker instrument dump used by the
// symbol resolver for expiry lookups.
type InstrumentRepository struct {
	db *gorm.DB
}

func NewInstrumentRepository() *InstrumentRepository {
	return &InstrumentRepository{db: database.LedgerDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *InstrumentRepository) WithDB(db *gorm.DB) *InstrumentRepository {
	return &InstrumentRepository{db: db}
}

// ReplaceAll swaps in a freshly loaded instrument dump. Upserts on
// trading symbol so a reload never duplicates rows.
func (r *InstrumentRepository) ReplaceAll(ctx context.Context, instruments []model.Instrument) error {
	logger.WithFields(logger.Fields{
		"repo": "InstrumentRepository",
		"op":   "ReplaceAll",
		"rows": len(instruments),
	}).Info("Loading instrument dump")

	if len(instruments) == 0 {
		return errors.New("instrument dump is empty")
	}

	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "trading_symbol"}},
			UpdateAll: true,
		}).
		CreateInBatches(instruments, 500).Error
	if err != nil {
		logger.WithError(err).Error("Failed to load instrument dump")
		return err
	}

	return nil
}

// FindBySymbol fetches one instrument by trading symbol.
// Returns (nil, nil) if the symbol is unknown.
func (r *InstrumentRepository) FindBySymbol(ctx context.Context, tradingSymbol string) (*model.Instrument, error) {
	var instrument model.Instrument

	err := r.db.WithContext(ctx).
		Where("trading_symbol = ?", tradingSymbol).
		First(&instrument).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(logger.Fields{
			"repo":          "InstrumentRepository",
			"op":            "FindBySymbol",
			"tradingsymbol": tradingSymbol,
		}).WithError(err).Error("Failed to fetch instrument")
		return nil, err
	}

	return &instrument, nil
}
