package repository

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	logger "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"github.com/aamirazhar/phithebot/src/database"
	"github.com/aamirazhar/phithebot/src/model"
)

// LedgerRepository owns the durable order ledger: one row per
// (strategy, slot), four slots per strategy at all times.
//
// The legacy deployment rewrote the whole ledger file on every update,
// which loses writes when the placement path and the reconciliation
// loop run concurrently. Here every mutation is a row-level update
// inside a transaction, serialized per strategy by an in-process mutex,
// so concurrent writers can never clobber each other's slots.
type LedgerRepository struct {
	db *gorm.DB

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// NewLedgerRepository creates a repository instance using the ledger database.
func NewLedgerRepository() *LedgerRepository {
	logger.WithField("component", "LedgerRepository").
		Debug("Creating new LedgerRepository with LedgerDB")

	return &LedgerRepository{
		db:    database.LedgerDB,
		locks: make(map[string]*sync.Mutex),
	}
}

// WithDB allows overriding the underlying *gorm.DB instance.
// Useful for tests or when using a specific session/transaction.
func (r *LedgerRepository) WithDB(db *gorm.DB) *LedgerRepository {
	return &LedgerRepository{db: db, locks: make(map[string]*sync.Mutex)}
}

func (r *LedgerRepository) strategyLock(strategy string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()

	lock, ok := r.locks[strategy]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[strategy] = lock
	}
	return lock
}

// EnsureStrategy guarantees the four slot rows exist for a strategy,
// creating empty snapshots for any that are missing. Called at
// registration; existing rows are left untouched.
func (r *LedgerRepository) EnsureStrategy(ctx context.Context, strategy string) error {
	lock := r.strategyLock(strategy)
	lock.Lock()
	defer lock.Unlock()

	now := time.Now()

	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, slot := range model.SignalSlots {
			empty := model.EmptySnapshot(strategy, slot, now)

			err := tx.Where("strategy = ? AND slot = ?", strategy, slot).
				Attrs(empty).
				FirstOrCreate(&model.OrderSnapshot{}).Error
			if err != nil {
				logger.WithFields(logger.Fields{
					"strategy": strategy,
					"slot":     slot,
				}).WithError(err).Error("failed to initialize ledger slot")
				return fmt.Errorf("ensure slot %s/%s: %w", strategy, slot, err)
			}
		}
		return nil
	})
}

// GetSlot fetches the snapshot for one (strategy, slot) pair.
// Returns (nil, nil) if the slot row does not exist.
func (r *LedgerRepository) GetSlot(ctx context.Context, strategy, slot string) (*model.OrderSnapshot, error) {
	var snap model.OrderSnapshot

	err := r.db.WithContext(ctx).
		Where("strategy = ? AND slot = ?", strategy, slot).
		First(&snap).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		logger.WithFields(logger.Fields{
			"strategy": strategy,
			"slot":     slot,
		}).WithError(err).Error("failed to fetch ledger slot")
		return nil, err
	}

	return &snap, nil
}

// All returns every slot row across all strategies.
func (r *LedgerRepository) All(ctx context.Context) ([]model.OrderSnapshot, error) {
	var snaps []model.OrderSnapshot

	err := r.db.WithContext(ctx).
		Order("strategy ASC, slot ASC").
		Find(&snaps).Error
	if err != nil {
		logger.WithError(err).Error("failed to fetch ledger")
		return nil, err
	}

	return snaps, nil
}

// Apply writes an incoming broker snapshot into the ledger under the
// slot ordering rules:
//
//   - entry slots are always overwritten with the incoming snapshot;
//   - an exit reaching COMPLETE clears both the exit slot and its
//     companion entry slot back to empty (the round trip is closed);
//   - a non-terminal exit overwrites the exit slot only;
//   - a REJECTED exit mutates nothing, the open entry stays as-is.
func (r *LedgerRepository) Apply(ctx context.Context, snap model.OrderSnapshot) error {
	lock := r.strategyLock(snap.Strategy)
	lock.Lock()
	defer lock.Unlock()

	log := logger.WithFields(logger.Fields{
		"strategy": snap.Strategy,
		"slot":     snap.Slot,
		"order_id": snap.OrderID,
		"status":   snap.Status,
	})

	if model.IsEntrySlot(snap.Slot) {
		snap.Signal = snap.Slot
		if err := r.overwriteSlot(ctx, r.db, snap); err != nil {
			return err
		}
		log.Info("ledger updated: entry slot overwritten")
		return nil
	}

	if !model.IsExitSlot(snap.Slot) {
		return fmt.Errorf("unknown ledger slot %q", snap.Slot)
	}

	switch snap.Status {
	case model.OrderStatusComplete:
		entrySlot, err := model.CompanionEntrySlot(snap.Slot)
		if err != nil {
			return err
		}

		now := time.Now()
		err = r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
			if err := r.overwriteSlot(ctx, tx, model.EmptySnapshot(snap.Strategy, entrySlot, now)); err != nil {
				return err
			}
			return r.overwriteSlot(ctx, tx, model.EmptySnapshot(snap.Strategy, snap.Slot, now))
		})
		if err != nil {
			return err
		}

		log.WithField("entry_slot", entrySlot).
			Info("ledger updated: exit completed, round trip closed, both slots reset")
		return nil

	case model.OrderStatusRejected:
		log.Warn("exit order rejected by broker; entry position remains open, ledger unchanged")
		return nil

	default:
		snap.Signal = snap.Slot
		if err := r.overwriteSlot(ctx, r.db, snap); err != nil {
			return err
		}
		log.Info("ledger updated: exit slot overwritten")
		return nil
	}
}

// Reset clears one slot back to the empty snapshot.
func (r *LedgerRepository) Reset(ctx context.Context, strategy, slot string) error {
	lock := r.strategyLock(strategy)
	lock.Lock()
	defer lock.Unlock()

	return r.overwriteSlot(ctx, r.db, model.EmptySnapshot(strategy, slot, time.Now()))
}

func (r *LedgerRepository) overwriteSlot(ctx context.Context, db *gorm.DB, snap model.OrderSnapshot) error {
	updates := map[string]interface{}{
		"order_id":         snap.OrderID,
		"order_type":       snap.OrderType,
		"status":           snap.Status,
		"trading_symbol":   snap.TradingSymbol,
		"instrument_token": snap.InstrumentToken,
		"quantity":         snap.Quantity,
		"price":            snap.Price,
		"signal":           snap.Signal,
		"order_time":       snap.OrderTime,
		"execution_time":   snap.ExecutionTime,
	}

	result := db.WithContext(ctx).
		Model(&model.OrderSnapshot{}).
		Where("strategy = ? AND slot = ?", snap.Strategy, snap.Slot).
		Updates(updates)
	if result.Error != nil {
		logger.WithFields(logger.Fields{
			"strategy": snap.Strategy,
			"slot":     snap.Slot,
		}).WithError(result.Error).Error("failed to overwrite ledger slot")
		return result.Error
	}

	if result.RowsAffected == 0 {
		return fmt.Errorf("ledger slot %s/%s not initialized", snap.Strategy, snap.Slot)
	}
	return nil
}
