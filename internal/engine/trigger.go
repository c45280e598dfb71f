// Package engine runs the periodic evaluators that re-check pending
// conditional orders and standing price alerts against fresh snapshots.
package engine

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cryptosim/internal/ledger"
	"cryptosim/internal/models"
	"cryptosim/internal/notify"
	"cryptosim/internal/orders"
	"cryptosim/internal/pricefeed"
)

// TriggerEvaluator re-evaluates pending conditional orders on every tick.
// It is single-steppable: Tick runs one full evaluation pass, which is how
// the supervisor drives it and how tests drive it without timers.
type TriggerEvaluator struct {
	book     *orders.Book
	ledger   *ledger.Ledger
	feed     pricefeed.PriceSource
	notifier notify.Notifier
	logger   zerolog.Logger
}

// NewTriggerEvaluator creates a trigger evaluator.
func NewTriggerEvaluator(book *orders.Book, l *ledger.Ledger, feed pricefeed.PriceSource, notifier notify.Notifier, logger zerolog.Logger) *TriggerEvaluator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &TriggerEvaluator{
		book:     book,
		ledger:   l,
		feed:     feed,
		notifier: notifier,
		logger:   logger,
	}
}

// Tick runs one evaluation pass over all pending conditional orders,
// fanning out per symbol so one slow price lookup cannot stall the rest.
func (e *TriggerEvaluator) Tick(ctx context.Context) {
	groups := e.book.PendingBySymbol()
	if len(groups) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for symbol, batch := range groups {
		symbol, batch := symbol, batch
		g.Go(func() error {
			e.evalSymbol(ctx, symbol, batch)
			return nil
		})
	}
	_ = g.Wait()
}

func (e *TriggerEvaluator) evalSymbol(ctx context.Context, symbol string, batch []models.Order) {
	now := time.Now()

	// GTT expiry does not need a price, so it runs even when the feed is
	// down for the symbol.
	live := batch[:0]
	for _, ord := range batch {
		if ord.TimeInForce == models.TimeInForceGTT && ord.ExpiresAt != nil && !now.Before(*ord.ExpiresAt) {
			if e.book.Expire(ctx, ord.ID) {
				e.notifyOrder(ctx, notify.KindOrderExpired, ord, decimal.Zero, "order expired")
			}
			continue
		}
		live = append(live, ord)
	}
	if len(live) == 0 {
		return
	}

	quote, err := e.feed.Quote(ctx, symbol)
	if err != nil {
		// Transient: skip the symbol this tick, retry on the next one.
		// Never surfaced to the user as an order failure.
		e.logger.Debug().Err(err).Str("symbol", symbol).Msg("Skipping symbol, price unavailable")
		return
	}

	for _, ord := range live {
		e.evalOrder(ctx, ord, quote.Price)
	}
}

// evalOrder checks one order against the snapshot price and fires it if its
// trigger condition holds. Each order is handled independently: a failure
// here rejects this order only and the pass moves on.
func (e *TriggerEvaluator) evalOrder(ctx context.Context, ord models.Order, price decimal.Decimal) {
	if ord.Type == models.OrderTypeTrailingStop {
		e.book.AdvanceWatermark(ord.ID, price)
		// Re-read so the fire check sees the advanced watermark.
		fresh, ok := e.book.Get(ord.ID)
		if !ok {
			return
		}
		ord = fresh
	}

	if !orders.ShouldFire(&ord, price) {
		return
	}

	// The claim is the exactly-once gate: a concurrent tick or cancel
	// finds the order no longer pending and backs off.
	if !e.book.Claim(ord.ID) {
		return
	}

	if ord.Type == models.OrderTypeStopLimit {
		// Stop leg fired: re-queue as a limit order instead of executing
		// at this snapshot.
		e.book.ConvertStopLimit(ctx, ord.ID)
		return
	}

	reserve := ord.ReservedFunds(e.ledger.FeeRate())
	trade, err := e.ledger.ExecuteReleasing(ctx, ord.UserID, ord.ID, ord.Symbol, ord.Side, ord.Amount, price, reserve)
	if err != nil {
		// Funds or holdings moved between submission and fire. The order
		// is rejected asynchronously; the user learns via notification.
		e.ledger.Release(ord.UserID, reserve)
		e.book.Reject(ctx, ord.ID, err.Error())
		e.notifyOrder(ctx, notify.KindOrderRejected, ord, price, err.Error())
		e.logger.Warn().Err(err).Str("order_id", ord.ID).Msg("Order rejected at trigger time")
		return
	}

	e.book.Fill(ctx, ord.ID, price)
	e.notifyOrder(ctx, notify.KindOrderFilled, ord, price, "filled at "+price.String())

	e.logger.Info().
		Str("order_id", ord.ID).
		Str("symbol", ord.Symbol).
		Str("side", string(ord.Side)).
		Str("type", string(ord.Type)).
		Str("price", price.String()).
		Str("trade_id", trade.ID).
		Msg("Conditional order fired")
}

func (e *TriggerEvaluator) notifyOrder(ctx context.Context, kind notify.Kind, ord models.Order, price decimal.Decimal, message string) {
	data := map[string]interface{}{
		"order_id": ord.ID,
		"symbol":   ord.Symbol,
		"side":     string(ord.Side),
		"type":     string(ord.Type),
		"amount":   ord.Amount.String(),
	}
	if price.Sign() > 0 {
		data["price"] = price.String()
	}
	e.notifier.Notify(ctx, notify.Notification{
		UserID:  ord.UserID,
		Kind:    kind,
		Title:   "Order " + string(kind),
		Message: message,
		Data:    data,
	})
}
