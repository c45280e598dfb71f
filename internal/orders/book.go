// Package orders holds the authoritative set of orders and drives their
// lifecycle state machine: pending -> evaluating -> {filled, rejected},
// or pending -> {cancelled, expired} directly. Terminal states never
// transition again; the evaluating claim makes execution exactly-once.
package orders

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/ledger"
	"cryptosim/internal/models"
	"cryptosim/internal/pricefeed"
)

// Persister receives order snapshots on every state transition. Best effort:
// failures are logged and never affect the in-memory state machine.
type Persister interface {
	SaveOrder(ctx context.Context, order *models.Order) error
}

// Book owns all orders and their state transitions.
type Book struct {
	mu     sync.RWMutex
	orders map[string]*models.Order

	ledger    *ledger.Ledger
	feed      pricefeed.PriceSource
	persister Persister
	logger    zerolog.Logger
}

// New creates an order book. The persister is optional.
func New(l *ledger.Ledger, feed pricefeed.PriceSource, persister Persister, logger zerolog.Logger) *Book {
	return &Book{
		orders:    make(map[string]*models.Order),
		ledger:    l,
		feed:      feed,
		persister: persister,
		logger:    logger,
	}
}

// Submit validates and accepts one order. Market orders execute immediately
// against the current snapshot price and come back filled or rejected, never
// pending. Conditional orders are stored pending (with funds reserved for
// buys) unless their time-in-force rules them out.
func (b *Book) Submit(ctx context.Context, req Request) (*models.Order, error) {
	if err := validate(req); err != nil {
		// Validation failures never create a stored order.
		return nil, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = models.TimeInForceGTC
	}

	order := &models.Order{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		Symbol:          req.Symbol,
		Side:            req.Side,
		Type:            req.Type,
		Amount:          req.Amount,
		LimitPrice:      req.LimitPrice,
		StopPrice:       req.StopPrice,
		TrailingAmount:  req.TrailingAmount,
		TrailingPercent: req.TrailingPercent,
		TimeInForce:     tif,
		ExpiresAt:       req.ExpiresAt,
		ReduceOnly:      req.ReduceOnly,
		PostOnly:        req.PostOnly,
		Status:          models.OrderStatusPending,
		CreatedAt:       time.Now().UTC(),
	}

	if order.Conditional() {
		return b.submitConditional(ctx, order)
	}
	return b.submitMarket(ctx, order)
}

func (b *Book) submitMarket(ctx context.Context, order *models.Order) (*models.Order, error) {
	quote, err := b.feed.Quote(ctx, order.Symbol)
	if err != nil {
		// No snapshot, no execution. The submission fails synchronously
		// and nothing is stored; price unavailability is never a
		// terminal order state.
		return nil, errors.NewOrderError(order.ID, order.Symbol, "submit", "no price snapshot", err)
	}

	trade, execErr := b.ledger.Execute(ctx, order.UserID, order.ID, order.Symbol, order.Side, order.Amount, quote.Price)
	if execErr != nil {
		order.Status = models.OrderStatusRejected
		order.Reason = execErr.Error()
		b.insert(ctx, order)
		return b.snapshot(order.ID), execErr
	}

	now := time.Now().UTC()
	order.Status = models.OrderStatusFilled
	order.FilledAt = &now
	order.FilledPrice = &quote.Price
	b.insert(ctx, order)

	b.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("side", string(order.Side)).
		Str("price", quote.Price.String()).
		Str("trade_id", trade.ID).
		Msg("Market order filled")

	return b.snapshot(order.ID), nil
}

func (b *Book) submitConditional(ctx context.Context, order *models.Order) (*models.Order, error) {
	// A conditional order is by definition not immediately fillable, so
	// IOC is cancelled on arrival. FOK behaves identically here: with a
	// single reference price and no partial liquidity there is nothing to
	// distinguish "all immediately" from "any immediately".
	if order.TimeInForce == models.TimeInForceIOC || order.TimeInForce == models.TimeInForceFOK {
		order.Status = models.OrderStatusCancelled
		order.Reason = "not immediately fillable"
		b.insert(ctx, order)
		return b.snapshot(order.ID), nil
	}

	if order.TimeInForce == models.TimeInForceGTT && !order.ExpiresAt.After(time.Now()) {
		order.Status = models.OrderStatusRejected
		order.Reason = "expiry is in the past"
		b.insert(ctx, order)
		return b.snapshot(order.ID), errors.NewOrderError(order.ID, order.Symbol, "submit", order.Reason, errors.ErrOrderExpired)
	}

	if reserve := order.ReservedFunds(b.ledger.FeeRate()); reserve.Sign() > 0 {
		if err := b.ledger.Reserve(order.UserID, reserve); err != nil {
			order.Status = models.OrderStatusRejected
			order.Reason = "insufficient funds to reserve"
			b.insert(ctx, order)
			return b.snapshot(order.ID), err
		}
	}

	// Seed the trailing watermark from the submission snapshot when one is
	// available; otherwise the first evaluator tick seeds it.
	if order.Type == models.OrderTypeTrailingStop {
		if quote, err := b.feed.Quote(ctx, order.Symbol); err == nil {
			advanceWatermark(order, quote.Price)
		}
	}

	b.insert(ctx, order)

	b.logger.Info().
		Str("order_id", order.ID).
		Str("symbol", order.Symbol).
		Str("type", string(order.Type)).
		Str("side", string(order.Side)).
		Msg("Conditional order accepted")

	return b.snapshot(order.ID), nil
}

// Cancel moves a pending order to cancelled. It is race-safe against a
// concurrent evaluator fire: the transition succeeds only if the order is
// still pending at the moment of the swap.
func (b *Book) Cancel(ctx context.Context, orderID, userID string) error {
	b.mu.Lock()
	order, ok := b.orders[orderID]
	if !ok || order.UserID != userID {
		b.mu.Unlock()
		return errors.ErrOrderNotFound
	}
	if order.Status != models.OrderStatusPending {
		b.mu.Unlock()
		return errors.NewOrderError(orderID, order.Symbol, "cancel", "status is "+string(order.Status), errors.ErrNotCancellable)
	}
	order.Status = models.OrderStatusCancelled
	reserve := order.ReservedFunds(b.ledger.FeeRate())
	b.mu.Unlock()

	b.ledger.Release(userID, reserve)
	b.persist(ctx, orderID)

	b.logger.Info().Str("order_id", orderID).Msg("Order cancelled")
	return nil
}

// Claim atomically marks a pending order as evaluating. A fire attempt must
// hold the claim; a second tick or a concurrent cancel finds the order no
// longer pending and backs off.
func (b *Book) Claim(orderID string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if !ok || order.Status != models.OrderStatusPending {
		return false
	}
	order.Status = models.OrderStatusEvaluating
	return true
}

// ReleaseClaim puts a claimed order back to pending.
func (b *Book) ReleaseClaim(orderID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if ok && order.Status == models.OrderStatusEvaluating {
		order.Status = models.OrderStatusPending
	}
}

// Fill completes a claimed order with its execution price.
func (b *Book) Fill(ctx context.Context, orderID string, price decimal.Decimal) {
	b.mu.Lock()
	order, ok := b.orders[orderID]
	if !ok || order.Status != models.OrderStatusEvaluating {
		b.mu.Unlock()
		return
	}
	now := time.Now().UTC()
	order.Status = models.OrderStatusFilled
	order.FilledAt = &now
	order.FilledPrice = &price
	b.mu.Unlock()

	b.persist(ctx, orderID)
}

// Reject moves a claimed order to rejected with a reason. The caller has
// already released any fund reservation through the ledger.
func (b *Book) Reject(ctx context.Context, orderID, reason string) {
	b.mu.Lock()
	order, ok := b.orders[orderID]
	if !ok || order.Status != models.OrderStatusEvaluating {
		b.mu.Unlock()
		return
	}
	order.Status = models.OrderStatusRejected
	order.Reason = reason
	b.mu.Unlock()

	b.persist(ctx, orderID)
}

// Expire moves a pending GTT order past its deadline to expired.
func (b *Book) Expire(ctx context.Context, orderID string) bool {
	b.mu.Lock()
	order, ok := b.orders[orderID]
	if !ok || order.Status != models.OrderStatusPending {
		b.mu.Unlock()
		return false
	}
	order.Status = models.OrderStatusExpired
	userID := order.UserID
	reserve := order.ReservedFunds(b.ledger.FeeRate())
	b.mu.Unlock()

	b.ledger.Release(userID, reserve)
	b.persist(ctx, orderID)
	return true
}

// AdvanceWatermark updates a trailing order's watermark for a new snapshot
// price. The watermark only ever moves favorably for the holder.
func (b *Book) AdvanceWatermark(orderID string, price decimal.Decimal) {
	b.mu.Lock()
	defer b.mu.Unlock()

	order, ok := b.orders[orderID]
	if ok && order.Status == models.OrderStatusPending {
		advanceWatermark(order, price)
	}
}

// ConvertStopLimit turns a claimed stop_limit order whose stop leg fired
// into a plain pending limit order at its limit price. The fill price is
// deferred to the later limit fire, not this snapshot.
func (b *Book) ConvertStopLimit(ctx context.Context, orderID string) {
	b.mu.Lock()
	order, ok := b.orders[orderID]
	if !ok || order.Status != models.OrderStatusEvaluating || order.Type != models.OrderTypeStopLimit {
		b.mu.Unlock()
		return
	}
	order.Type = models.OrderTypeLimit
	order.StopPrice = nil
	order.Status = models.OrderStatusPending
	b.mu.Unlock()

	b.persist(ctx, orderID)

	b.logger.Info().Str("order_id", orderID).Msg("Stop leg fired, re-queued as limit")
}

// Get returns a copy of one order.
func (b *Book) Get(orderID string) (models.Order, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	order, ok := b.orders[orderID]
	if !ok {
		return models.Order{}, false
	}
	return *order, true
}

// ListByUser returns copies of all of a user's orders, newest first.
func (b *Book) ListByUser(userID string) []models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []models.Order
	for _, order := range b.orders {
		if order.UserID == userID {
			out = append(out, *order)
		}
	}
	sortByCreatedDesc(out)
	return out
}

// PendingBySymbol returns copies of all pending conditional orders grouped
// by symbol, so an evaluator tick does one price lookup per symbol.
func (b *Book) PendingBySymbol() map[string][]models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()

	out := make(map[string][]models.Order)
	for _, order := range b.orders {
		if order.Status == models.OrderStatusPending {
			out[order.Symbol] = append(out[order.Symbol], *order)
		}
	}
	return out
}

// Restore seeds the book from persisted orders at startup.
func (b *Book) Restore(persisted []models.Order) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i := range persisted {
		cp := persisted[i]
		// A claim does not survive a restart; the order is pending again.
		if cp.Status == models.OrderStatusEvaluating {
			cp.Status = models.OrderStatusPending
		}
		b.orders[cp.ID] = &cp
	}
}

func (b *Book) insert(ctx context.Context, order *models.Order) {
	b.mu.Lock()
	b.orders[order.ID] = order
	b.mu.Unlock()

	b.persist(ctx, order.ID)
}

func (b *Book) snapshot(orderID string) *models.Order {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if order, ok := b.orders[orderID]; ok {
		cp := *order
		return &cp
	}
	return nil
}

func (b *Book) persist(ctx context.Context, orderID string) {
	if b.persister == nil {
		return
	}
	cp := b.snapshot(orderID)
	if cp == nil {
		return
	}
	if err := b.persister.SaveOrder(ctx, cp); err != nil {
		b.logger.Warn().Err(err).Str("order_id", orderID).Msg("Persist order failed")
	}
}

func sortByCreatedDesc(orders []models.Order) {
	sort.Slice(orders, func(i, j int) bool {
		return orders[i].CreatedAt.After(orders[j].CreatedAt)
	})
}
