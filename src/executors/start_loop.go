package executors

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/controller"
	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/strategy"
	"github.com/aamirazhar/phithebot/src/symbols"
	"github.com/aamirazhar/phithebot/src/utils"
)

// PricingPolicy computes the limit price for a fresh order.
type PricingPolicy interface {
	EntryPrice(ctx context.Context, tradingSymbol, interval, side string) (decimal.Decimal, error)
}

// ContractResolver picks the tradable contract for an entry signal.
type ContractResolver interface {
	Resolve(ctx context.Context, signalType string, cfg model.StrategyConfig, boost int) (symbols.Selection, error)
}

type signalLogRepository interface {
	Create(ctx context.Context, entry *model.SignalLog) error
}

// SessionCloser invalidates the broker session at the end of the day.
type SessionCloser interface {
	InvalidateSession(ctx context.Context) error
}

// Deps wires the scheduler to the rest of the system.
type Deps struct {
	Manager    *controller.OrderManager
	Policy     PricingPolicy
	Resolver   ContractResolver
	Runners    []*strategy.Runner
	SignalLogs signalLogRepository
	Session    SessionCloser

	Now func() time.Time
}

// StartLoop runs the trading day: signal evaluation for all strategies
// in parallel on the signal cadence, reconciliation of open orders on
// its own shorter cadence, and session teardown after market close.
// Returns when the context is cancelled or the day is over.
func StartLoop(ctx context.Context, deps Deps) error {
	config := GetConfig()

	now := deps.Now
	if now == nil {
		now = time.Now
	}

	ticker := time.NewTicker(config.TickPeriod)
	defer ticker.Stop()

	lastSignalMinute := -1
	lastReconcileMinute := -1

	logger.WithField("strategies", len(deps.Runners)).Info("trading loop started")

	for {
		select {
		case <-ctx.Done():
			logger.Info("trading loop stopped")
			return nil

		case <-ticker.C:
			t := now().In(utils.IST())
			minute := t.Hour()*60 + t.Minute()

			if utils.After(t, 15, 35) {
				logger.Info("market closed, ending broker session")
				if deps.Session != nil {
					if err := deps.Session.InvalidateSession(ctx); err != nil {
						logger.WithError(err).Error("failed to invalidate session")
					}
				}
				return nil
			}

			if !utils.WithinMarketHours(t) {
				continue
			}

			if t.Minute()%config.SignalEveryMinutes == 0 && minute != lastSignalMinute {
				lastSignalMinute = minute
				logger.Info("processing all strategies")
				dispatchSignals(ctx, deps)
			}

			// Open-order checks start once the post-open pricing
			// windows are done.
			if utils.After(t, 9, 30) &&
				t.Minute()%config.ReconcileEveryMinutes == 0 && minute != lastReconcileMinute {
				lastReconcileMinute = minute
				logger.Info("checking placed orders")
				if err := deps.Manager.ReconcileAll(ctx); err != nil {
					logger.WithError(err).Error("reconciliation pass failed")
				}
			}
		}
	}
}

// dispatchSignals evaluates every strategy concurrently. Each strategy
// is isolated: a panic or error in one never blocks the others' ticks.
func dispatchSignals(ctx context.Context, deps Deps) {
	var wg sync.WaitGroup

	for _, runner := range deps.Runners {
		wg.Add(1)
		go func(r *strategy.Runner) {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					logger.WithFields(logger.Fields{
						"strategy": r.Config().Name,
						"panic":    fmt.Sprintf("%+v", rec),
					}).Error("strategy evaluation panicked")
				}
			}()

			if err := processStrategy(ctx, deps, r); err != nil {
				logger.WithField("strategy", r.Config().Name).
					WithError(err).Error("strategy processing failed")
			}
		}(runner)
	}

	wg.Wait()
}

// processStrategy evaluates one strategy's signal and routes it into
// entry/exit order placement.
func processStrategy(ctx context.Context, deps Deps, runner *strategy.Runner) error {
	cfg := runner.Config()

	t := time.Now()
	if deps.Now != nil {
		t = deps.Now()
	}
	if !runner.IsRunTime(t) {
		return nil
	}

	eval, err := runner.Evaluate(ctx)
	if err != nil {
		return err
	}

	if deps.SignalLogs != nil {
		entry := &model.SignalLog{
			Strategy:    cfg.Name,
			EvaluatedAt: t,
			BarTime:     eval.Candle.Date,
			Close:       eval.Candle.Close,
			LongSignal:  eval.LongSignal,
			ShortSignal: eval.ShortSignal,
			Boost:       eval.Boost,
		}
		if err := deps.SignalLogs.Create(ctx, entry); err != nil {
			logger.WithField("strategy", cfg.Name).
				WithError(err).Warn("failed to record signal evaluation")
		}
	}

	if sig, ok := eval.EntrySignal(); ok {
		if err := placeEntry(ctx, deps, cfg, sig, eval.Boost); err != nil {
			return err
		}
	}

	if sig, ok := eval.ExitSignal(); ok {
		if err := placeExit(ctx, deps, cfg, sig); err != nil {
			return err
		}
	}

	return nil
}

func placeEntry(ctx context.Context, deps Deps, cfg model.StrategyConfig, sig string, boost int) error {
	logger.WithFields(logger.Fields{
		"strategy": cfg.Name,
		"signal":   sig,
		"security": cfg.Security,
	}).Info("entry signal received")

	sel, err := deps.Resolver.Resolve(ctx, sig, cfg, boost)
	if err != nil {
		return fmt.Errorf("resolve contract: %w", err)
	}

	side, err := model.TransactionTypeForSlot(sig)
	if err != nil {
		return err
	}

	price, err := deps.Policy.EntryPrice(ctx, sel.TradingSymbol, cfg.Interval, side)
	if err != nil {
		return fmt.Errorf("price entry order: %w", err)
	}

	_, err = deps.Manager.Place(ctx, cfg.Name, sig, sel, price)
	return err
}

func placeExit(ctx context.Context, deps Deps, cfg model.StrategyConfig, sig string) error {
	entry, err := deps.Manager.EntryForExit(ctx, cfg.Name, sig)
	if err != nil {
		return err
	}
	if entry == nil {
		logger.WithFields(logger.Fields{
			"strategy": cfg.Name,
			"signal":   sig,
		}).Info("exit signal but no completed entry position, skipping")
		return nil
	}

	sel, err := symbols.ExitSelection(entry)
	if err != nil {
		return err
	}

	logger.WithFields(logger.Fields{
		"strategy":      cfg.Name,
		"signal":        sig,
		"tradingsymbol": sel.TradingSymbol,
		"quantity":      sel.Quantity,
	}).Info("exit signal received, closing position")

	side, err := model.TransactionTypeForSlot(sig)
	if err != nil {
		return err
	}

	price, err := deps.Policy.EntryPrice(ctx, sel.TradingSymbol, cfg.Interval, side)
	if err != nil {
		return fmt.Errorf("price exit order: %w", err)
	}

	_, err = deps.Manager.Place(ctx, cfg.Name, sig, sel, price)
	return err
}
