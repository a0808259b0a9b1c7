package strategy

import (
	"context"
	"fmt"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/utils"
)

// historyDays is how far back bars are fetched for scoring; signal
// functions typically need a long warm-up window.
const historyDays = 25

// barSettleWait gives the broker a moment to finalize the candle that
// just closed before bars are fetched.
const barSettleWait = 1500 * time.Millisecond

// BarSource provides quotes and historical bars for the tracked index.
type BarSource interface {
	LTP(ctx context.Context, exchangeSymbol string) (model.Quote, error)
	HistoricalCandles(ctx context.Context, token uint32, ndays int, interval string) ([]model.Candle, error)
}

// Runner evaluates one strategy: it decides whether the current tick is
// an evaluation window for the strategy's interval, retrieves bars and
// produces the actionable signal.
type Runner struct {
	cfg      model.StrategyConfig
	signalFn SignalFunc
	bars     BarSource

	now   func() time.Time
	sleep func(time.Duration)
}

func NewRunner(cfg model.StrategyConfig, signalFn SignalFunc, bars BarSource) *Runner {
	return &Runner{
		cfg:      cfg,
		signalFn: signalFn,
		bars:     bars,
		now:      time.Now,
		sleep:    time.Sleep,
	}
}

func (r *Runner) Config() model.StrategyConfig {
	return r.cfg
}

// WithClock overrides the runner's time source and pause function.
// Useful for tests.
func (r *Runner) WithClock(now func() time.Time, sleep func(time.Duration)) *Runner {
	r.now = now
	r.sleep = sleep
	return r
}

// IsRunTime reports whether t is an evaluation window for this
// strategy: inside market hours, on the interval boundary. 15 minute
// strategies evaluate on every quarter hour, 60 minute strategies at
// quarter past the hour (the first full candle of the session closes
// at 10:15).
func (r *Runner) IsRunTime(t time.Time) bool {
	if !utils.WithinMarketHours(t) {
		return false
	}

	minute := t.In(utils.IST()).Minute()
	switch r.cfg.Interval {
	case model.Interval15Minute:
		return minute%15 == 0
	case model.Interval60Minute:
		return minute == 15
	}
	return false
}

// Evaluate retrieves bars and scores them, returning the actionable
// (latest) evaluation row.
func (r *Runner) Evaluate(ctx context.Context) (*Evaluation, error) {
	log := logger.WithFields(logger.Fields{
		"strategy": r.cfg.Name,
		"interval": r.cfg.Interval,
	})
	log.Info("retrieving historical data for signal processing")

	quote, err := r.bars.LTP(ctx, r.cfg.Security)
	if err != nil {
		return nil, fmt.Errorf("resolve token for %s: %w", r.cfg.Security, err)
	}

	r.sleep(barSettleWait)

	candles, err := r.bars.HistoricalCandles(ctx, quote.InstrumentToken, historyDays, r.cfg.Interval)
	if err != nil {
		return nil, fmt.Errorf("fetch bars for %s: %w", r.cfg.Security, err)
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no bars returned for %s", r.cfg.Security)
	}

	// The latest bar may have just begun; scoring must only see
	// completed candles.
	now := r.now().In(utils.IST())
	last := candles[len(candles)-1].Date.In(utils.IST())
	if last.Hour() == now.Hour() && last.Minute() == now.Minute() {
		candles = candles[:len(candles)-1]
	}
	if len(candles) == 0 {
		return nil, fmt.Errorf("no completed bars for %s", r.cfg.Security)
	}

	evals, err := r.signalFn(candles)
	if err != nil {
		return nil, fmt.Errorf("signal processing for %s: %w", r.cfg.Name, err)
	}
	if len(evals) == 0 {
		return nil, fmt.Errorf("signal function for %s returned an empty frame", r.cfg.Name)
	}

	latest := evals[len(evals)-1]
	log.WithFields(logger.Fields{
		"bar_time": latest.Candle.Date,
		"long":     latest.LongSignal,
		"short":    latest.ShortSignal,
		"boost":    latest.Boost,
	}).Info("signal processed")

	return &latest, nil
}
