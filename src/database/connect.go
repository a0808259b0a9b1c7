package database

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/aamirazhar/phithebot/src/model"
)

// LedgerDB is the sqlite connection backing the order ledger, the
// signal evaluation log and the instrument dump.
var LedgerDB *gorm.DB

// InitLedgerDB opens the ledger database and runs migrations. This
// should be called once at application startup (e.g. in main()).
func InitLedgerDB() error {
	config := GetConfig()

	db, err := gorm.Open(sqlite.Open(config.LedgerPath),
		&gorm.Config{
			TranslateError: true,
			Logger:         logger.Default.LogMode(logger.LogLevel(config.GormLogLevel)),
		},
	)
	if err != nil {
		return fmt.Errorf("failed to open ledger database at %s: %w", config.LedgerPath, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("failed to get DB from GORM: %w", err)
	}
	// sqlite: a single writer connection avoids SQLITE_BUSY churn.
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetConnMaxLifetime(1 * time.Hour)

	LedgerDB = db

	logrus.WithField("path", config.LedgerPath).Info("[database] ledger connection established")

	if err := LedgerDB.AutoMigrate(
		&model.OrderSnapshot{},
		&model.SignalLog{},
		&model.Instrument{},
	); err != nil {
		return fmt.Errorf("failed to run migrations on ledger DB: %w", err)
	}

	logrus.Info("[database] ledger migrations completed")

	return nil
}
