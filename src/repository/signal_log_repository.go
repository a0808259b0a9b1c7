package repository

import (
	"context"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aamirazhar/phithebot/src/database"
	"github.com/aamirazhar/phithebot/src/model"
)

// SignalLogRepository persists the actionable row of every signal
// evaluation for later inspection.
type SignalLogRepository struct {
	db *gorm.DB
}

func NewSignalLogRepository() *SignalLogRepository {
	return &SignalLogRepository{db: database.LedgerDB}
}

// WithDB allows overriding the underlying *gorm.DB instance.
func (r *SignalLogRepository) WithDB(db *gorm.DB) *SignalLogRepository {
	return &SignalLogRepository{db: db}
}

// Create appends one evaluation record.
func (r *SignalLogRepository) Create(ctx context.Context, entry *model.SignalLog) error {
	logger.WithFields(logger.Fields{
		"repo":     "SignalLogRepository",
		"op":       "Create",
		"strategy": entry.Strategy,
		"long":     entry.LongSignal,
		"short":    entry.ShortSignal,
	}).Debug("Recording signal evaluation")

	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		logger.WithFields(logger.Fields{
			"repo":     "SignalLogRepository",
			"op":       "Create",
			"strategy": entry.Strategy,
		}).WithError(err).Error("Failed to record signal evaluation")
		return err
	}

	return nil
}

// FindLatest returns the most recent evaluations for a strategy,
// newest first.
func (r *SignalLogRepository) FindLatest(ctx context.Context, strategy string, limit int) ([]model.SignalLog, error) {
	if limit <= 0 {
		limit = 20
	}

	var entries []model.SignalLog

	err := r.db.WithContext(ctx).
		Where("strategy = ?", strategy).
		Order("evaluated_at DESC").
		Limit(limit).
		Find(&entries).Error
	if err != nil {
		logger.WithFields(logger.Fields{
			"repo":     "SignalLogRepository",
			"op":       "FindLatest",
			"strategy": strategy,
		}).WithError(err).Error("Failed to fetch signal evaluations")
		return nil, err
	}

	return entries, nil
}
