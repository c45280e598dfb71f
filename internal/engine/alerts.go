package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
	"cryptosim/internal/notify"
	"cryptosim/internal/pricefeed"
)

// AlertPersister receives alert snapshots on state changes. Best effort.
type AlertPersister interface {
	SaveAlert(ctx context.Context, alert *models.PriceAlert) error
}

// AlertEvaluator owns the standing price alerts and re-checks the active
// ones on every tick. Alerts never touch the ledger; a trigger only emits a
// notification.
type AlertEvaluator struct {
	mu     sync.RWMutex
	alerts map[string]*models.PriceAlert

	feed      pricefeed.PriceSource
	notifier  notify.Notifier
	persister AlertPersister
	logger    zerolog.Logger
}

// NewAlertEvaluator creates an alert evaluator. The persister is optional.
func NewAlertEvaluator(feed pricefeed.PriceSource, notifier notify.Notifier, persister AlertPersister, logger zerolog.Logger) *AlertEvaluator {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	return &AlertEvaluator{
		alerts:    make(map[string]*models.PriceAlert),
		feed:      feed,
		notifier:  notifier,
		persister: persister,
		logger:    logger,
	}
}

// AlertRequest carries the caller-supplied fields of a new alert.
type AlertRequest struct {
	UserID            string
	Symbol            string
	Condition         models.AlertCondition
	TargetValue       decimal.Decimal
	Priority          int
	Recurring         bool
	RecurringInterval models.AlertInterval
}

// Add validates and registers a new alert.
func (e *AlertEvaluator) Add(ctx context.Context, req AlertRequest) (*models.PriceAlert, error) {
	if req.UserID == "" {
		return nil, errors.NewValidationError("userId", req.UserID, "required")
	}
	if req.Symbol == "" {
		return nil, errors.NewValidationError("symbol", req.Symbol, "required")
	}
	switch req.Condition {
	case models.AlertConditionAbove, models.AlertConditionBelow,
		models.AlertConditionChangePercent, models.AlertConditionVolume:
	default:
		return nil, errors.NewValidationError("condition", req.Condition, "unknown alert condition")
	}
	if req.TargetValue.Sign() <= 0 {
		return nil, errors.NewValidationError("targetValue", req.TargetValue.String(), "must be positive")
	}
	interval := req.RecurringInterval
	if req.Recurring && interval == "" {
		interval = models.AlertIntervalDaily
	}

	alert := &models.PriceAlert{
		ID:                uuid.NewString(),
		UserID:            req.UserID,
		Symbol:            req.Symbol,
		Condition:         req.Condition,
		TargetValue:       req.TargetValue,
		Priority:          req.Priority,
		Active:            true,
		Recurring:         req.Recurring,
		RecurringInterval: interval,
		CreatedAt:         time.Now().UTC(),
	}

	e.mu.Lock()
	e.alerts[alert.ID] = alert
	e.mu.Unlock()

	e.persist(ctx, alert.ID)
	return e.snapshot(alert.ID), nil
}

// Remove deletes an alert.
func (e *AlertEvaluator) Remove(alertID, userID string) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	alert, ok := e.alerts[alertID]
	if !ok || alert.UserID != userID {
		return errors.ErrAlertNotFound
	}
	delete(e.alerts, alertID)
	return nil
}

// List returns copies of all of a user's alerts.
func (e *AlertEvaluator) List(userID string) []models.PriceAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var out []models.PriceAlert
	for _, alert := range e.alerts {
		if alert.UserID == userID {
			out = append(out, *alert)
		}
	}
	return out
}

// Restore seeds the evaluator from persisted alerts at startup.
func (e *AlertEvaluator) Restore(persisted []models.PriceAlert) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range persisted {
		cp := persisted[i]
		e.alerts[cp.ID] = &cp
	}
}

// Tick runs one evaluation pass: re-arm cooled-down recurring alerts, then
// check every active alert against a fresh quote, one lookup per symbol.
func (e *AlertEvaluator) Tick(ctx context.Context) {
	e.rearm(ctx)

	groups := e.activeBySymbol()
	if len(groups) == 0 {
		return
	}

	g, ctx := errgroup.WithContext(ctx)
	for symbol, batch := range groups {
		symbol, batch := symbol, batch
		g.Go(func() error {
			quote, err := e.feed.Quote(ctx, symbol)
			if err != nil {
				e.logger.Debug().Err(err).Str("symbol", symbol).Msg("Skipping alerts, price unavailable")
				return nil
			}
			for _, alert := range batch {
				if conditionMet(alert, quote) {
					e.trigger(ctx, alert.ID, quote)
				}
			}
			return nil
		})
	}
	_ = g.Wait()
}

// rearm reactivates recurring alerts whose cooldown has elapsed.
func (e *AlertEvaluator) rearm(ctx context.Context) {
	now := time.Now()
	var rearmed []string

	e.mu.Lock()
	for id, alert := range e.alerts {
		if alert.Active || !alert.Recurring || alert.TriggeredAt == nil {
			continue
		}
		if now.After(alert.TriggeredAt.Add(alert.RecurringInterval.Duration())) {
			alert.Active = true
			alert.TriggeredAt = nil
			rearmed = append(rearmed, id)
		}
	}
	e.mu.Unlock()

	for _, id := range rearmed {
		e.persist(ctx, id)
	}
}

func (e *AlertEvaluator) activeBySymbol() map[string][]models.PriceAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make(map[string][]models.PriceAlert)
	for _, alert := range e.alerts {
		if alert.Active {
			out[alert.Symbol] = append(out[alert.Symbol], *alert)
		}
	}
	return out
}

func (e *AlertEvaluator) trigger(ctx context.Context, alertID string, quote models.Quote) {
	now := time.Now().UTC()

	e.mu.Lock()
	alert, ok := e.alerts[alertID]
	if !ok || !alert.Active {
		e.mu.Unlock()
		return
	}
	alert.Active = false
	alert.TriggeredAt = &now
	cp := *alert
	e.mu.Unlock()

	e.persist(ctx, alertID)

	e.notifier.Notify(ctx, notify.Notification{
		UserID:  cp.UserID,
		Kind:    notify.KindAlertTriggered,
		Title:   "Price alert triggered",
		Message: cp.Symbol + " " + string(cp.Condition) + " " + cp.TargetValue.String(),
		Data: map[string]interface{}{
			"alert_id":  cp.ID,
			"symbol":    cp.Symbol,
			"condition": string(cp.Condition),
			"target":    cp.TargetValue.String(),
			"price":     quote.Price.String(),
			"priority":  cp.Priority,
		},
	})

	e.logger.Info().
		Str("alert_id", cp.ID).
		Str("symbol", cp.Symbol).
		Str("condition", string(cp.Condition)).
		Str("price", quote.Price.String()).
		Msg("Alert triggered")
}

// conditionMet checks an alert condition against a quote.
func conditionMet(alert models.PriceAlert, quote models.Quote) bool {
	switch alert.Condition {
	case models.AlertConditionAbove:
		return quote.Price.GreaterThanOrEqual(alert.TargetValue)
	case models.AlertConditionBelow:
		return quote.Price.LessThanOrEqual(alert.TargetValue)
	case models.AlertConditionChangePercent:
		return quote.ChangePercent24h.Abs().GreaterThanOrEqual(alert.TargetValue)
	case models.AlertConditionVolume:
		return quote.Volume24h.GreaterThanOrEqual(alert.TargetValue)
	}
	return false
}

func (e *AlertEvaluator) snapshot(alertID string) *models.PriceAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()
	if alert, ok := e.alerts[alertID]; ok {
		cp := *alert
		return &cp
	}
	return nil
}

func (e *AlertEvaluator) persist(ctx context.Context, alertID string) {
	if e.persister == nil {
		return
	}
	cp := e.snapshot(alertID)
	if cp == nil {
		return
	}
	if err := e.persister.SaveAlert(ctx, cp); err != nil {
		e.logger.Warn().Err(err).Str("alert_id", alertID).Msg("Persist alert failed")
	}
}
