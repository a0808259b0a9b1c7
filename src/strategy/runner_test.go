package strategy

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/utils"
)

type stubBars struct {
	candles []model.Candle
	barsErr error
}

func (s *stubBars) LTP(_ context.Context, _ string) (model.Quote, error) {
	return model.Quote{TradingSymbol: "NIFTY 50", InstrumentToken: 256265,
		LastPrice: decimal.RequireFromString("24873.40")}, nil
}

func (s *stubBars) HistoricalCandles(_ context.Context, _ uint32, _ int, _ string) ([]model.Candle, error) {
	if s.barsErr != nil {
		return nil, s.barsErr
	}
	return s.candles, nil
}

func istTime(day, hour, minute int) time.Time {
	return time.Date(2026, time.August, day, hour, minute, 0, 0, utils.IST())
}

func candleAt(day, hour, minute int, close string) model.Candle {
	return model.Candle{Date: istTime(day, hour, minute), Close: decimal.RequireFromString(close)}
}

func newTestRunner(cfg model.StrategyConfig, fn SignalFunc, bars BarSource, at time.Time) *Runner {
	r := NewRunner(cfg, fn, bars)
	r.now = func() time.Time { return at }
	r.sleep = func(time.Duration) {}
	return r
}

func TestIsRunTime(t *testing.T) {
	cfg15 := model.StrategyConfig{Name: "alpha", Interval: model.Interval15Minute}
	cfg60 := model.StrategyConfig{Name: "beta", Interval: model.Interval60Minute}

	tests := []struct {
		name string
		cfg  model.StrategyConfig
		at   time.Time
		want bool
	}{
		{name: "15m on quarter hour", cfg: cfg15, at: istTime(27, 10, 30), want: true},
		{name: "15m off boundary", cfg: cfg15, at: istTime(27, 10, 31), want: false},
		{name: "15m before open", cfg: cfg15, at: istTime(27, 9, 0), want: false},
		{name: "15m after close", cfg: cfg15, at: istTime(27, 15, 45), want: false},
		{name: "60m quarter past", cfg: cfg60, at: istTime(27, 11, 15), want: true},
		{name: "60m on the hour", cfg: cfg60, at: istTime(27, 11, 0), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := newTestRunner(tt.cfg, nil, &stubBars{}, tt.at)
			if got := r.IsRunTime(tt.at); got != tt.want {
				t.Fatalf("IsRunTime(%s) = %v, want %v", tt.at, got, tt.want)
			}
		})
	}
}

func TestEvaluateDropsUnfinishedCandle(t *testing.T) {
	// The bar stamped 10:30 has only just opened at the 10:30 tick; the
	// actionable row must come from the 10:15 bar.
	bars := &stubBars{candles: []model.Candle{
		candleAt(27, 10, 0, "24800"),
		candleAt(27, 10, 15, "24850"),
		candleAt(27, 10, 30, "24900"),
	}}

	var scored []model.Candle
	fn := func(candles []model.Candle) ([]Evaluation, error) {
		scored = candles
		evals := make([]Evaluation, len(candles))
		for i, c := range candles {
			evals[i] = Evaluation{Candle: c, LongSignal: model.SignalNone, ShortSignal: model.SignalNone}
		}
		return evals, nil
	}

	cfg := model.StrategyConfig{Name: "alpha", Interval: model.Interval15Minute, Security: "NSE:NIFTY 50"}
	r := newTestRunner(cfg, fn, bars, istTime(27, 10, 30))

	eval, err := r.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(scored) != 2 {
		t.Fatalf("unfinished candle must be dropped before scoring, got %d bars", len(scored))
	}
	if !eval.Candle.Date.Equal(istTime(27, 10, 15)) {
		t.Fatalf("actionable row must be the last completed bar, got %s", eval.Candle.Date)
	}
}

func TestEvaluateKeepsCompletedCandles(t *testing.T) {
	// The last bar closed a minute ago: nothing is dropped.
	bars := &stubBars{candles: []model.Candle{
		candleAt(27, 10, 0, "24800"),
		candleAt(27, 10, 15, "24850"),
	}}

	fn := func(candles []model.Candle) ([]Evaluation, error) {
		evals := make([]Evaluation, len(candles))
		for i, c := range candles {
			evals[i] = Evaluation{Candle: c, LongSignal: model.SignalLongEntry, ShortSignal: model.SignalNone}
		}
		return evals, nil
	}

	cfg := model.StrategyConfig{Name: "alpha", Interval: model.Interval15Minute, Security: "NSE:NIFTY 50"}
	r := newTestRunner(cfg, fn, bars, istTime(27, 10, 31))

	eval, err := r.Evaluate(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !eval.Candle.Date.Equal(istTime(27, 10, 15)) {
		t.Fatalf("expected the 10:15 bar, got %s", eval.Candle.Date)
	}
	if signal, ok := eval.EntrySignal(); !ok || signal != model.SignalLongEntry {
		t.Fatalf("expected an LE entry signal, got %+v", eval)
	}
}

func TestEvaluateErrorsWithNoBars(t *testing.T) {
	cfg := model.StrategyConfig{Name: "alpha", Interval: model.Interval15Minute, Security: "NSE:NIFTY 50"}

	t.Run("empty frame", func(t *testing.T) {
		r := newTestRunner(cfg, nil, &stubBars{}, istTime(27, 10, 30))
		if _, err := r.Evaluate(context.Background()); err == nil {
			t.Fatal("expected error with no bars")
		}
	})

	t.Run("fetch failure", func(t *testing.T) {
		r := newTestRunner(cfg, nil, &stubBars{barsErr: errors.New("boom")}, istTime(27, 10, 30))
		if _, err := r.Evaluate(context.Background()); err == nil {
			t.Fatal("expected error on fetch failure")
		}
	})

	t.Run("only the unfinished candle", func(t *testing.T) {
		bars := &stubBars{candles: []model.Candle{candleAt(27, 10, 30, "24900")}}
		r := newTestRunner(cfg, nil, bars, istTime(27, 10, 30))
		if _, err := r.Evaluate(context.Background()); err == nil {
			t.Fatal("expected error when every bar is unfinished")
		}
	})
}

func TestSignalRegistry(t *testing.T) {
	Register("registry-test", func([]model.Candle) ([]Evaluation, error) { return nil, nil })

	if _, err := Lookup("registry-test"); err != nil {
		t.Fatalf("registered strategy not found: %v", err)
	}
	if _, err := Lookup("unknown-strategy"); err == nil {
		t.Fatal("expected error for unregistered strategy")
	}

	found := false
	for _, name := range Registered() {
		if name == "registry-test" {
			found = true
		}
	}
	if !found {
		t.Fatalf("Registered() missing registry-test: %v", Registered())
	}
}

func TestEvaluationSignalAccessors(t *testing.T) {
	long := Evaluation{LongSignal: model.SignalLongEntry, ShortSignal: model.SignalNone}
	if signal, ok := long.EntrySignal(); !ok || signal != model.SignalLongEntry {
		t.Fatalf("expected LE, got %q %v", signal, ok)
	}

	exit := Evaluation{LongSignal: model.SignalNone, ShortSignal: model.SignalShortExit}
	if signal, ok := exit.ExitSignal(); !ok || signal != model.SignalShortExit {
		t.Fatalf("expected SX, got %q %v", signal, ok)
	}

	hold := Evaluation{LongSignal: model.SignalHold, ShortSignal: model.SignalNone}
	if _, ok := hold.EntrySignal(); ok {
		t.Fatal("Hold must not be an entry signal")
	}
	if _, ok := hold.ExitSignal(); ok {
		t.Fatal("Hold must not be an exit signal")
	}
}
