package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/aamirazhar/phithebot/src/model"
)

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	sqlDB, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create sqlmock: %v", err)
	}

	dialector := postgres.New(postgres.Config{
		DSN:                  "sqlmock_db_0",
		Conn:                 sqlDB,
		PreferSimpleProtocol: true,
	})

	gdb, err := gorm.Open(dialector, &gorm.Config{})
	if err != nil {
		sqlDB.Close()
		t.Fatalf("failed to open gorm DB with sqlmock: %v", err)
	}

	return gdb, mock
}

func TestSignalLogRepositoryCreate(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&SignalLogRepository{}).WithDB(mockDB)

	evaluatedAt := time.Date(2026, 8, 27, 10, 15, 0, 0, time.UTC)
	entry := &model.SignalLog{
		Strategy:    "alpha",
		EvaluatedAt: evaluatedAt,
		BarTime:     evaluatedAt.Add(-15 * time.Minute),
		Close:       decimal.RequireFromString("24812.45"),
		LongSignal:  model.SignalLongEntry,
		ShortSignal: model.SignalNone,
		Boost:       1,
	}

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta(`INSERT INTO "signal_logs"`)).
		WithArgs(entry.Strategy, entry.EvaluatedAt, entry.BarTime, entry.Close,
			entry.LongSignal, entry.ShortSignal, entry.Boost, sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(1))
	mock.ExpectCommit()

	if err := repo.Create(context.Background(), entry); err != nil {
		t.Fatalf("unexpected error creating signal log: %v", err)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}

func TestSignalLogRepositoryFindLatest(t *testing.T) {
	mockDB, mock := newMockDB(t)
	repo := (&SignalLogRepository{}).WithDB(mockDB)

	evaluatedAt := time.Date(2026, 8, 27, 10, 15, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"id", "strategy", "evaluated_at", "long_signal", "short_signal", "boost"}).
		AddRow(2, "alpha", evaluatedAt, model.SignalNone, model.SignalShortEntry, -1).
		AddRow(1, "alpha", evaluatedAt.Add(-15*time.Minute), model.SignalLongEntry, model.SignalNone, 0)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "signal_logs" WHERE strategy = $1 ORDER BY evaluated_at DESC LIMIT $2`)).
		WithArgs("alpha", 2).
		WillReturnRows(rows)

	entries, err := repo.FindLatest(context.Background(), "alpha", 2)
	if err != nil {
		t.Fatalf("unexpected error fetching signal logs: %v", err)
	}

	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ShortSignal != model.SignalShortEntry || entries[1].LongSignal != model.SignalLongEntry {
		t.Fatalf("entries not returned newest first: %+v", entries)
	}

	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("unmet expectations: %v", err)
	}
}
