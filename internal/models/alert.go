package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// AlertCondition is the kind of market event a price alert watches.
type AlertCondition string

const (
	AlertConditionAbove         AlertCondition = "above"
	AlertConditionBelow         AlertCondition = "below"
	AlertConditionChangePercent AlertCondition = "change_percent"
	AlertConditionVolume        AlertCondition = "volume"
)

// AlertInterval is the re-arm cooldown for recurring alerts.
type AlertInterval string

const (
	AlertIntervalDaily   AlertInterval = "daily"
	AlertIntervalWeekly  AlertInterval = "weekly"
	AlertIntervalMonthly AlertInterval = "monthly"
)

// Duration returns the cooldown length for the interval.
func (i AlertInterval) Duration() time.Duration {
	switch i {
	case AlertIntervalWeekly:
		return 7 * 24 * time.Hour
	case AlertIntervalMonthly:
		return 30 * 24 * time.Hour
	default:
		return 24 * time.Hour
	}
}

// PriceAlert is a standing alert independent of any order. Triggering emits
// a notification only; it never mutates the ledger.
type PriceAlert struct {
	ID                string
	UserID            string
	Symbol            string
	Condition         AlertCondition
	TargetValue       decimal.Decimal
	Priority          int
	Active            bool
	Recurring         bool
	RecurringInterval AlertInterval
	TriggeredAt       *time.Time
	CreatedAt         time.Time
}
