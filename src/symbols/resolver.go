package symbols

import (
	"context"
	"fmt"
	"strings"
	"time"

	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/model"
)

const (
	indexSymbol = "NSE:NIFTY 50"
	underlying  = "NIFTY"

	optionCall = "CE"
	optionPut  = "PE"
)

// QuoteSource provides the index last traded price.
type QuoteSource interface {
	LTP(ctx context.Context, exchangeSymbol string) (model.Quote, error)
}

// InstrumentSource looks up instrument metadata loaded from the broker
// dump, used to read contract expiry dates.
type InstrumentSource interface {
	FindBySymbol(ctx context.Context, tradingSymbol string) (*model.Instrument, error)
}

// Selection is the tradable contract and quantity chosen for a signal.
type Selection struct {
	TradingSymbol string
	Quantity      int
}

// Resolver maps a directional entry signal plus the current index price
// to a concrete in-the-money monthly option and its order quantity.
type Resolver struct {
	quotes      QuoteSource
	instruments InstrumentSource
	now         func() time.Time
}

func NewResolver(quotes QuoteSource, instruments InstrumentSource) *Resolver {
	return &Resolver{
		quotes:      quotes,
		instruments: instruments,
		now:         time.Now,
	}
}

// Resolve picks the contract for an entry signal. Long entries buy the
// nearest in-the-money call (strike floored to 100), short entries the
// nearest in-the-money put (strike ceiled to 100). The quantity is
// baseqty lots, doubled when the boost flag agrees with the direction.
// When the current-month contract expires within cfg.DaysBeforeExpiry
// days the next-month contract is used instead.
func (r *Resolver) Resolve(ctx context.Context, signalType string, cfg model.StrategyConfig, boost int) (Selection, error) {
	quote, err := r.quotes.LTP(ctx, indexSymbol)
	if err != nil {
		return Selection{}, fmt.Errorf("fetch index ltp: %w", err)
	}
	indexPrice := quote.LastPrice.InexactFloat64()

	var (
		strike     int
		optionType string
		qty        int
	)

	switch signalType {
	case model.SignalLongEntry:
		strike = 100 * int(indexPrice/100)
		optionType = optionCall
		qty = cfg.BaseQty * cfg.LotSize
		if boost == 1 {
			qty *= 2
		}
	case model.SignalShortEntry:
		strike = 100 * int(indexPrice/100)
		if float64(strike) < indexPrice {
			strike += 100
		}
		optionType = optionPut
		qty = cfg.BaseQty * cfg.LotSize
		if boost == -1 {
			qty *= 2
		}
	default:
		return Selection{}, fmt.Errorf("signal type %q does not map to a tradable contract", signalType)
	}

	now := r.now()
	symbol := monthlySymbol(now, strike, optionType)

	instrument, err := r.instruments.FindBySymbol(ctx, symbol)
	if err != nil {
		return Selection{}, fmt.Errorf("lookup instrument %s: %w", symbol, err)
	}
	if instrument == nil {
		return Selection{}, fmt.Errorf("instrument %s not in dump; reload instruments", symbol)
	}

	// Roll to next month when the current contract is past expiry or
	// expiring too soon to carry a position.
	if instrument.Expiry.Sub(now) <= time.Duration(cfg.DaysBeforeExpiry)*24*time.Hour {
		rolled := monthlySymbol(now.AddDate(0, 0, 20), strike, optionType)
		logger.WithFields(logger.Fields{
			"expiring": symbol,
			"rolled":   rolled,
		}).Info("contract expiring soon, rolling to next month")
		symbol = rolled
	}

	logger.WithFields(logger.Fields{
		"signal":        signalType,
		"index_ltp":     quote.LastPrice.String(),
		"tradingsymbol": symbol,
		"quantity":      qty,
	}).Info("resolved contract for signal")

	return Selection{TradingSymbol: symbol, Quantity: qty}, nil
}

// monthlySymbol formats the exchange trading symbol for a monthly
// option, e.g. NIFTY21APR15000CE.
func monthlySymbol(t time.Time, strike int, optionType string) string {
	expiry := strings.ToUpper(t.Format("06Jan"))
	return fmt.Sprintf("%s%s%d%s", underlying, expiry, strike, optionType)
}

// ExitSelection converts the entry slot snapshot into the contract and
// quantity for the closing order: you always exit exactly what the
// ledger says is open.
func ExitSelection(entry *model.OrderSnapshot) (Selection, error) {
	if entry == nil || entry.IsEmpty() {
		return Selection{}, fmt.Errorf("no open entry position to exit")
	}
	if entry.Status != model.OrderStatusComplete {
		return Selection{}, fmt.Errorf("entry order %s not complete (status %s)", entry.OrderID, entry.Status)
	}
	return Selection{TradingSymbol: entry.TradingSymbol, Quantity: entry.Quantity}, nil
}

// IndexSymbol exposes the tracked index identifier for callers that
// fetch the index token (e.g. bar retrieval).
func IndexSymbol() string {
	return indexSymbol
}
