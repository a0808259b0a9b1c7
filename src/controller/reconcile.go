package controller

import (
	"context"
	"errors"

	logger "github.com/sirupsen/logrus"

	"github.com/aamirazhar/phithebot/src/connectors"
	"github.com/aamirazhar/phithebot/src/model"
	"github.com/aamirazhar/phithebot/src/pricing"
)

// ReconcileAll walks every ledger slot across all strategies and
// reconciles the live ones against broker-reported truth.
//
// Slots holding nothing actionable (empty, COMPLETE, REJECTED) are
// skipped without any gateway call. A live slot whose order completed
// is written back through the ledger rules; one still resting is
// re-priced with the tightening nudge. Failures on one slot are logged
// and never stop the pass for the others; a failed modify is simply
// retried on the next cadence tick.
func (m *OrderManager) ReconcileAll(ctx context.Context) error {
	snaps, err := m.ledger.All(ctx)
	if err != nil {
		return err
	}

	for i := range snaps {
		snap := snaps[i]
		if !snap.IsLive() {
			continue
		}

		if err := m.reconcileSlot(ctx, &snap); err != nil {
			if errors.Is(err, connectors.ErrSessionExpired) {
				return err
			}
			logger.WithFields(logger.Fields{
				"strategy": snap.Strategy,
				"slot":     snap.Slot,
				"order_id": snap.OrderID,
			}).WithError(err).Warn("slot reconciliation failed, will retry next tick")
		}
	}

	return nil
}

func (m *OrderManager) reconcileSlot(ctx context.Context, snap *model.OrderSnapshot) error {
	log := logger.WithFields(logger.Fields{
		"strategy": snap.Strategy,
		"slot":     snap.Slot,
		"order_id": snap.OrderID,
	})
	log.Info("open order exists, checking details")

	latest, err := m.latestOrderState(ctx, snap.OrderID)
	if err != nil {
		return err
	}

	if latest.Status == model.OrderStatusComplete {
		log.Info("open order has been executed, updating ledger")
		return m.ledger.Apply(ctx, latest.Snapshot(snap.Strategy, snap.Slot))
	}

	// Still resting: nudge the limit price toward the market.
	quote, err := m.gateway.LTP(ctx, connectors.ExchangeNFO+":"+snap.TradingSymbol)
	if err != nil {
		return err
	}

	newPrice, err := pricing.RestingPrice(snap.Slot, quote.LastPrice)
	if err != nil {
		return err
	}

	log.WithFields(logger.Fields{
		"ltp":       quote.LastPrice.String(),
		"new_price": newPrice.String(),
	}).Info("modifying resting order with updated price")

	modifiedID, err := m.gateway.ModifyOrder(ctx, snap.OrderID, snap.Quantity, newPrice)
	if err != nil {
		// Non-fatal: ledger keeps the pre-modify snapshot and the
		// next tick tries again.
		log.WithError(err).Warn("order modification failed")
		return nil
	}

	m.sleep(m.config.PostPlaceWait)

	modified, err := m.latestOrderState(ctx, modifiedID)
	if err != nil {
		log.WithError(err).Warn("modified order but state fetch failed, ledger unchanged until next tick")
		return nil
	}

	if err := m.ledger.Apply(ctx, modified.Snapshot(snap.Strategy, snap.Slot)); err != nil {
		return err
	}

	log.WithField("price", modified.Price.String()).Info("order modified, ledger updated")
	return nil
}
