package controller

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/connectors"
	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/symbols"
)

// ErrInvalidSlot marks a slot that does not map to a broker
// transaction type. This is a programming/configuration error, so
// placement aborts before any gateway contact.
var ErrInvalidSlot = errors.New("invalid signal slot for order placement")

// ErrPlacementAbandoned is returned when the place/correlate cycle
// exhausts its retry bound with no evidence the order exists. The slot
// is left at its prior state.
var ErrPlacementAbandoned = errors.New("order placement abandoned for this cycle")

// BrokerGateway is the slice of the broker client the lifecycle
// manager depends on. Calls block until the network-level timeout.
type BrokerGateway interface {
	PlaceOrder(ctx context.Context, params connectors.OrderParams) (string, error)
	ModifyOrder(ctx context.Context, orderID string, quantity int, price decimal.Decimal) (string, error)
	OrderHistory(ctx context.Context, orderID string) ([]model.BrokerOrder, error)
	Orders(ctx context.Context) ([]model.BrokerOrder, error)
	LTP(ctx context.Context, exchangeSymbol string) (model.Quote, error)
}

// Ledger is the durable slot store the manager writes through.
type Ledger interface {
	Apply(ctx context.Context, snap model.OrderSnapshot) error
	GetSlot(ctx context.Context, strategy, slot string) (*model.OrderSnapshot, error)
	All(ctx context.Context) ([]model.OrderSnapshot, error)
}

// OrderManager owns the order lifecycle: placement with ambiguity
// resolution, and the periodic reconciliation/re-pricing pass. It is
// the only writer of the ledger.
type OrderManager struct {
	gateway BrokerGateway
	ledger  Ledger
	config  Config

	isConnected func() bool
	sleep       func(time.Duration)
	now         func() time.Time
}

func NewOrderManager(gateway BrokerGateway, ledger Ledger) *OrderManager {
	return &OrderManager{
		gateway:     gateway,
		ledger:      ledger,
		config:      GetConfig(),
		isConnected: connectors.IsConnected,
		sleep:       time.Sleep,
		now:         time.Now,
	}
}

// WithClock overrides the manager's time source and pause function.
// Useful for tests.
func (m *OrderManager) WithClock(now func() time.Time, sleep func(time.Duration)) *OrderManager {
	m.now = now
	m.sleep = sleep
	return m
}

// Place submits a limit order for the given slot and records the
// resulting snapshot in the ledger.
//
// A gateway error does not mean the order was not placed: the request
// may have succeeded broker-side with the response lost. Before giving
// up, the manager waits a grace period and scans the broker's recent
// orders for one matching the submission (price, symbol, side, age
// within the correlation window). A match is treated as success. With
// no match the whole placement is retried up to the configured bound,
// pausing extra while the local network is down; after that the
// placement is abandoned and the slot keeps its prior state.
func (m *OrderManager) Place(ctx context.Context, strategy, slot string, sel symbols.Selection, price decimal.Decimal) (*model.OrderSnapshot, error) {
	side, err := model.TransactionTypeForSlot(slot)
	if err != nil {
		logger.WithFields(logger.Fields{
			"strategy": strategy,
			"slot":     slot,
		}).Error("signal slot does not map to a transaction type, order not placed")
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}

	// Local reference for correlating log lines across retries; the
	// gateway itself exposes no idempotency key.
	ref := uuid.NewString()
	log := logger.WithFields(logger.Fields{
		"strategy":      strategy,
		"slot":          slot,
		"tradingsymbol": sel.TradingSymbol,
		"quantity":      sel.Quantity,
		"price":         price.String(),
		"side":          side,
		"placement_ref": ref,
	})

	params := connectors.OrderParams{
		TradingSymbol:   sel.TradingSymbol,
		Exchange:        connectors.ExchangeNFO,
		TransactionType: side,
		Quantity:        sel.Quantity,
		Price:           price,
	}

	for attempt := 1; attempt <= m.config.MaxPlacementAttempts; attempt++ {
		orderID, placeErr := m.gateway.PlaceOrder(ctx, params)
		if placeErr == nil {
			m.sleep(m.config.PostPlaceWait)
			return m.recordPlacedOrder(ctx, strategy, slot, orderID, params)
		}

		log.WithField("attempt", attempt).WithError(placeErr).
			Warn("order placement errored, re-checking if the order was placed")

		m.sleep(m.config.AmbiguityGraceWait)

		matched, findErr := m.findPlacedOrder(ctx, price, sel.TradingSymbol, side)
		if findErr != nil {
			log.WithError(findErr).Warn("could not fetch recent orders for correlation")
		}
		if matched != nil {
			log.WithField("order_id", matched.OrderID).
				Info("gateway error but order found at broker, resolving as placed")
			return m.recordPlacedOrder(ctx, strategy, slot, matched.OrderID, params)
		}

		log.WithField("attempt", attempt).Info("confirmed the order was not placed")

		m.sleep(m.config.RetryPause)
		if attempt < m.config.MaxPlacementAttempts && !m.isConnected() {
			log.Warn("internet connection broken, pausing before retrying order")
			m.sleep(m.config.NetworkDownWait)
		}
	}

	log.Error("maximum tries exhausted, proceeding without placing the order")
	return nil, fmt.Errorf("%w (%s/%s after %d attempts)", ErrPlacementAbandoned, strategy, slot, m.config.MaxPlacementAttempts)
}

// findPlacedOrder scans the broker's most recent order for one that
// matches the submission that just errored.
//
// This correlation has no guaranteed uniqueness: two strategies trading
// the same symbol, side and price within the window would be conflated.
// Known limitation carried over from the original design.
func (m *OrderManager) findPlacedOrder(ctx context.Context, price decimal.Decimal, tradingSymbol, side string) (*model.BrokerOrder, error) {
	orders, err := m.gateway.Orders(ctx)
	if err != nil {
		return nil, err
	}
	if len(orders) == 0 {
		return nil, nil
	}

	candidate := orders[len(orders)-1]

	ageOK := m.now().Sub(candidate.OrderTimestamp) < m.config.CorrelationWindow
	priceOK := candidate.Price.Equal(price)
	symbolOK := candidate.TradingSymbol == tradingSymbol
	sideOK := candidate.TransactionType == side

	if ageOK && priceOK && symbolOK && sideOK {
		return &candidate, nil
	}
	return nil, nil
}

// recordPlacedOrder fetches the authoritative snapshot of a placed
// order and writes it to the ledger under its slot.
func (m *OrderManager) recordPlacedOrder(ctx context.Context, strategy, slot, orderID string, params connectors.OrderParams) (*model.OrderSnapshot, error) {
	latest, err := m.latestOrderState(ctx, orderID)
	if err != nil {
		// The order exists but its state could not be read. Record
		// what was submitted so the reconciliation loop picks it up.
		logger.WithFields(logger.Fields{
			"strategy": strategy,
			"slot":     slot,
			"order_id": orderID,
		}).WithError(err).Warn("order placed but history fetch failed, recording submitted state")

		now := m.now()
		latest = &model.BrokerOrder{
			OrderID:         orderID,
			Status:          model.OrderStatusOpen,
			TradingSymbol:   params.TradingSymbol,
			TransactionType: params.TransactionType,
			OrderType:       model.OrderTypeLimit,
			Quantity:        params.Quantity,
			Price:           params.Price,
			OrderTimestamp:  now,
		}
	}

	snap := latest.Snapshot(strategy, slot)
	if err := m.ledger.Apply(ctx, snap); err != nil {
		return nil, fmt.Errorf("record order %s in ledger: %w", orderID, err)
	}

	logger.WithFields(logger.Fields{
		"strategy": strategy,
		"slot":     slot,
		"order_id": latest.OrderID,
		"status":   latest.Status,
	}).Info("order placed, details recorded")

	return &snap, nil
}

func (m *OrderManager) latestOrderState(ctx context.Context, orderID string) (*model.BrokerOrder, error) {
	history, err := m.gateway.OrderHistory(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if len(history) == 0 {
		return nil, fmt.Errorf("empty order history for %s", orderID)
	}
	return &history[len(history)-1], nil
}

// EntryForExit returns the companion entry snapshot when the exit slot
// is allowed to trade, i.e. the entry order is COMPLETE. You cannot
// exit a position the ledger does not believe is open.
func (m *OrderManager) EntryForExit(ctx context.Context, strategy, exitSlot string) (*model.OrderSnapshot, error) {
	entrySlot, err := model.CompanionEntrySlot(exitSlot)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidSlot, err)
	}

	entry, err := m.ledger.GetSlot(ctx, strategy, entrySlot)
	if err != nil {
		return nil, err
	}
	if entry == nil || entry.Status != model.OrderStatusComplete {
		return nil, nil
	}
	return entry, nil
}
