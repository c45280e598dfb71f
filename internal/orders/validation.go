package orders

import (
	"time"

	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

// Request carries the caller-supplied fields of an order submission.
type Request struct {
	UserID string
	Symbol string
	Side   models.OrderSide
	Type   models.OrderType
	Amount decimal.Decimal

	LimitPrice      *decimal.Decimal
	StopPrice       *decimal.Decimal
	TrailingAmount  *decimal.Decimal
	TrailingPercent *decimal.Decimal

	TimeInForce models.TimeInForce
	ExpiresAt   *time.Time
	ReduceOnly  bool
	PostOnly    bool
}

// validate checks the request shape exhaustively for its order type: each
// type requires exactly its own price fields and nothing else.
func validate(req Request) error {
	if req.UserID == "" {
		return errors.NewValidationError("userId", req.UserID, "required")
	}
	if req.Symbol == "" {
		return errors.NewValidationError("symbol", req.Symbol, "required")
	}
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return errors.NewValidationError("side", req.Side, "must be buy or sell")
	}
	if req.Amount.Sign() <= 0 {
		return errors.NewValidationError("amount", req.Amount.String(), "must be positive")
	}

	if err := validatePriceFields(req); err != nil {
		return err
	}

	switch req.TimeInForce {
	case models.TimeInForceGTC, models.TimeInForceIOC, models.TimeInForceFOK:
		if req.ExpiresAt != nil {
			return errors.NewValidationError("expiresAt", req.ExpiresAt, "only valid for GTT orders")
		}
	case models.TimeInForceGTT:
		if req.Type == models.OrderTypeMarket {
			return errors.NewValidationError("timeInForce", req.TimeInForce, "not valid for market orders")
		}
		if req.ExpiresAt == nil {
			return errors.NewValidationError("expiresAt", nil, "required for GTT orders")
		}
	case "":
		// GTC is applied as the default.
	default:
		return errors.NewValidationError("timeInForce", req.TimeInForce, "unknown time in force")
	}

	if req.ReduceOnly && req.Side == models.OrderSideBuy {
		return errors.NewValidationError("reduceOnly", true, "only valid for sell orders")
	}
	if req.PostOnly && req.Type != models.OrderTypeLimit {
		return errors.NewValidationError("postOnly", true, "only valid for limit orders")
	}

	return nil
}

func validatePriceFields(req Request) error {
	requirePositive := func(field string, v *decimal.Decimal) error {
		if v == nil {
			return errors.NewValidationError(field, nil, "required for "+string(req.Type)+" orders")
		}
		if v.Sign() <= 0 {
			return errors.NewValidationError(field, v.String(), "must be positive")
		}
		return nil
	}
	forbid := func(field string, v *decimal.Decimal) error {
		if v != nil {
			return errors.NewValidationError(field, v.String(), "not valid for "+string(req.Type)+" orders")
		}
		return nil
	}

	switch req.Type {
	case models.OrderTypeMarket:
		for field, v := range map[string]*decimal.Decimal{
			"limitPrice": req.LimitPrice, "stopPrice": req.StopPrice,
			"trailingAmount": req.TrailingAmount, "trailingPercent": req.TrailingPercent,
		} {
			if err := forbid(field, v); err != nil {
				return err
			}
		}

	case models.OrderTypeLimit:
		if err := requirePositive("limitPrice", req.LimitPrice); err != nil {
			return err
		}
		for field, v := range map[string]*decimal.Decimal{
			"stopPrice": req.StopPrice, "trailingAmount": req.TrailingAmount,
			"trailingPercent": req.TrailingPercent,
		} {
			if err := forbid(field, v); err != nil {
				return err
			}
		}

	case models.OrderTypeStopLoss, models.OrderTypeTakeProfit:
		if err := requirePositive("stopPrice", req.StopPrice); err != nil {
			return err
		}
		for field, v := range map[string]*decimal.Decimal{
			"limitPrice": req.LimitPrice, "trailingAmount": req.TrailingAmount,
			"trailingPercent": req.TrailingPercent,
		} {
			if err := forbid(field, v); err != nil {
				return err
			}
		}

	case models.OrderTypeStopLimit:
		if err := requirePositive("stopPrice", req.StopPrice); err != nil {
			return err
		}
		if err := requirePositive("limitPrice", req.LimitPrice); err != nil {
			return err
		}
		for field, v := range map[string]*decimal.Decimal{
			"trailingAmount": req.TrailingAmount, "trailingPercent": req.TrailingPercent,
		} {
			if err := forbid(field, v); err != nil {
				return err
			}
		}

	case models.OrderTypeTrailingStop:
		if err := forbid("limitPrice", req.LimitPrice); err != nil {
			return err
		}
		if err := forbid("stopPrice", req.StopPrice); err != nil {
			return err
		}
		if (req.TrailingAmount == nil) == (req.TrailingPercent == nil) {
			return errors.NewValidationError("trailing", nil, "exactly one of trailingAmount and trailingPercent required")
		}
		if req.TrailingAmount != nil && req.TrailingAmount.Sign() <= 0 {
			return errors.NewValidationError("trailingAmount", req.TrailingAmount.String(), "must be positive")
		}
		if req.TrailingPercent != nil {
			if req.TrailingPercent.Sign() <= 0 || req.TrailingPercent.GreaterThanOrEqual(decimal.NewFromInt(1)) {
				return errors.NewValidationError("trailingPercent", req.TrailingPercent.String(), "must be in (0,1)")
			}
		}

	default:
		return errors.NewValidationError("type", req.Type, "unknown order type")
	}

	return nil
}
