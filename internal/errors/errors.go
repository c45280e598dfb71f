// Package errors provides custom error types for domain-specific errors.
package errors

import (
	"errors"
	"fmt"
)

// Standard sentinel errors
var (
	ErrInsufficientFunds    = errors.New("insufficient funds")
	ErrInsufficientHoldings = errors.New("insufficient holdings")
	ErrInvalidOrderShape    = errors.New("invalid order shape")
	ErrPriceUnavailable     = errors.New("price unavailable")
	ErrNotCancellable       = errors.New("order not cancellable")
	ErrOrderExpired         = errors.New("order expired")
	ErrOrderNotFound        = errors.New("order not found")
	ErrAlertNotFound        = errors.New("alert not found")
	ErrPositionNotFound     = errors.New("position not found")
	ErrConfigInvalid        = errors.New("invalid configuration")
	ErrDatabaseError        = errors.New("database error")
)

// OrderError represents an error related to order operations.
type OrderError struct {
	OrderID string
	Symbol  string
	Action  string
	Reason  string
	Err     error
}

func (e *OrderError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("order error [%s] %s %s: %s: %v", e.OrderID, e.Action, e.Symbol, e.Reason, e.Err)
	}
	return fmt.Sprintf("order error [%s] %s %s: %s", e.OrderID, e.Action, e.Symbol, e.Reason)
}

func (e *OrderError) Unwrap() error {
	return e.Err
}

// NewOrderError creates a new OrderError.
func NewOrderError(orderID, symbol, action, reason string, err error) *OrderError {
	return &OrderError{
		OrderID: orderID,
		Symbol:  symbol,
		Action:  action,
		Reason:  reason,
		Err:     err,
	}
}

// LedgerError represents a failed wallet or position mutation.
type LedgerError struct {
	UserID  string
	Symbol  string
	Op      string
	Message string
	Err     error
}

func (e *LedgerError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("ledger error [%s] %s %s: %s: %v", e.UserID, e.Op, e.Symbol, e.Message, e.Err)
	}
	return fmt.Sprintf("ledger error [%s] %s %s: %s", e.UserID, e.Op, e.Symbol, e.Message)
}

func (e *LedgerError) Unwrap() error {
	return e.Err
}

// NewLedgerError creates a new LedgerError.
func NewLedgerError(userID, symbol, op, message string, err error) *LedgerError {
	return &LedgerError{
		UserID:  userID,
		Symbol:  symbol,
		Op:      op,
		Message: message,
		Err:     err,
	}
}

// ValidationError represents a validation error.
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s (%v): %s", e.Field, e.Value, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrInvalidOrderShape
}

// NewValidationError creates a new ValidationError.
func NewValidationError(field string, value interface{}, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	}
}

// FeedError represents a price feed failure for one symbol. It is transient:
// evaluators skip the symbol for the tick and retry on the next one.
type FeedError struct {
	Symbol string
	Err    error
}

func (e *FeedError) Error() string {
	return fmt.Sprintf("feed error [%s]: %v", e.Symbol, e.Err)
}

// Unwrap exposes both the sentinel and the underlying cause, so callers can
// match ErrPriceUnavailable while the HTTP status or context error stays
// reachable via errors.Is and errors.As.
func (e *FeedError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrPriceUnavailable}
	}
	return []error{ErrPriceUnavailable, e.Err}
}

// NewFeedError creates a new FeedError.
func NewFeedError(symbol string, err error) *FeedError {
	return &FeedError{Symbol: symbol, Err: err}
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", message, err)
}

// Wrapf wraps an error with formatted context.
func Wrapf(err error, format string, args ...interface{}) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w", fmt.Sprintf(format, args...), err)
}

// Is reports whether any error in err's chain matches target.
func Is(err, target error) bool {
	return errors.Is(err, target)
}

// As finds the first error in err's chain that matches target.
func As(err error, target interface{}) bool {
	return errors.As(err, target)
}
