package pricing

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/connectors"
	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/utils"
)

// QuoteSource is the slice of the broker gateway the pricing policy
// needs: a last traded price and recent bars.
type QuoteSource interface {
	LTP(ctx context.Context, exchangeSymbol string) (model.Quote, error)
	HistoricalCandles(ctx context.Context, token uint32, ndays int, interval string) ([]model.Candle, error)
}

var (
	entryOffset   = decimal.RequireFromString("0.20")
	repriceOffset = decimal.RequireFromString("0.15")

	aggressiveBuyFactor  = decimal.RequireFromString("0.97")
	aggressiveSellFactor = decimal.RequireFromString("1.03")

	ten = decimal.NewFromInt(10)
)

// Policy computes limit prices as a function of time of day relative to
// market open, not just the instantaneous quote.
//
// Before the 09:20 cool-off cutoff the market is still digesting the
// open, so the policy pauses briefly and then prices ~3% through the
// money. Between the cutoff and the interval threshold it prices a
// fixed 0.20 off LTP. After the threshold it also consults the previous
// completed bar's close and takes the more favorable of the two, which
// avoids chasing a quote that already moved intrabar.
type Policy struct {
	quotes QuoteSource
	now    func() time.Time
	sleep  func(time.Duration)

	// coolOffPause is the deliberate blocking wait applied to orders
	// priced before the cool-off cutoff.
	coolOffPause time.Duration
}

func NewPolicy(quotes QuoteSource) *Policy {
	return &Policy{
		quotes:       quotes,
		now:          time.Now,
		sleep:        time.Sleep,
		coolOffPause: time.Minute,
	}
}

// thresholdFor maps a strategy interval to the cutover time after which
// the previous bar close is consulted.
func thresholdFor(interval string) (hour, minute int, err error) {
	switch interval {
	case model.Interval15Minute:
		return 9, 30, nil
	case model.Interval60Minute:
		return 10, 15, nil
	default:
		return 0, 0, fmt.Errorf("unsupported interval %q for price retrieval", interval)
	}
}

// EntryPrice computes the limit price for a fresh order on the given
// option symbol. side is the broker transaction type (BUY/SELL).
func (p *Policy) EntryPrice(ctx context.Context, tradingSymbol, interval, side string) (decimal.Decimal, error) {
	if side != model.TransactionBuy && side != model.TransactionSell {
		return decimal.Zero, fmt.Errorf("unsupported transaction type %q", side)
	}

	thHour, thMinute, err := thresholdFor(interval)
	if err != nil {
		logger.WithField("interval", interval).Error("price retrieval for order placement failed")
		return decimal.Zero, err
	}

	quote, err := p.quotes.LTP(ctx, connectors.ExchangeNFO+":"+tradingSymbol)
	if err != nil {
		return decimal.Zero, fmt.Errorf("fetch ltp for %s: %w", tradingSymbol, err)
	}
	ltp := quote.LastPrice

	now := p.now()
	log := logger.WithFields(logger.Fields{
		"tradingsymbol": tradingSymbol,
		"side":          side,
		"ltp":           ltp.String(),
	})

	switch {
	case utils.Before(now, 9, 20):
		// Grace window for post-open volatility.
		log.Info("pre cool-off order, pausing before pricing")
		p.sleep(p.coolOffPause)

		if side == model.TransactionBuy {
			return ltp.Mul(aggressiveBuyFactor).Mul(ten).Ceil().Div(ten), nil
		}
		return ltp.Mul(aggressiveSellFactor).Mul(ten).Floor().Div(ten), nil

	case utils.After(now, 9, 20) && utils.Before(now, thHour, thMinute):
		if side == model.TransactionBuy {
			return ltp.Sub(entryOffset), nil
		}
		return ltp.Add(entryOffset), nil

	default:
		candles, err := p.quotes.HistoricalCandles(ctx, quote.InstrumentToken, 2, interval)
		if err != nil {
			return decimal.Zero, fmt.Errorf("fetch bars for %s: %w", tradingSymbol, err)
		}
		if len(candles) == 0 {
			return decimal.Zero, fmt.Errorf("no bars returned for %s", tradingSymbol)
		}
		lastClose := candles[len(candles)-1].Close

		log.WithField("last_close", lastClose.String()).Debug("pricing against previous bar close")

		if side == model.TransactionBuy {
			return decimal.Min(ltp, lastClose).Sub(entryOffset), nil
		}
		return decimal.Max(ltp, lastClose).Add(entryOffset), nil
	}
}

// RestingPrice computes the tightening re-price for a resting order in
// the given slot, a fixed nudge off the current last traded price.
func RestingPrice(slot string, ltp decimal.Decimal) (decimal.Decimal, error) {
	switch slot {
	case model.SignalLongEntry, model.SignalShortExit:
		return ltp.Sub(repriceOffset), nil
	case model.SignalShortEntry, model.SignalLongExit:
		return ltp.Add(repriceOffset), nil
	default:
		return decimal.Zero, fmt.Errorf("unknown signal slot %q", slot)
	}
}
