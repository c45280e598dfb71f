// Package store provides data persistence interfaces and implementations.
package store

import (
	"context"

	"cryptosim/internal/models"
)

// DataStore is the persistence boundary of the simulator. The in-memory
// engine state is authoritative within a session; the store exists for audit
// history and restart recovery, and every write is best effort.
type DataStore interface {
	// Wallets
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	GetWallets(ctx context.Context) ([]models.Wallet, error)

	// Positions
	UpsertPosition(ctx context.Context, pos *models.Position) error
	DeletePosition(ctx context.Context, userID, symbol string) error
	GetPositions(ctx context.Context) ([]models.Position, error)

	// Orders
	SaveOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID string) (*models.Order, error)
	GetOpenOrders(ctx context.Context) ([]models.Order, error)
	GetOrders(ctx context.Context, userID string, limit int) ([]models.Order, error)

	// Trades
	SaveTrade(ctx context.Context, trade *models.Trade) error
	GetTrades(ctx context.Context, userID string, limit int) ([]models.Trade, error)

	// Alerts
	SaveAlert(ctx context.Context, alert *models.PriceAlert) error
	GetAlerts(ctx context.Context) ([]models.PriceAlert, error)

	// Lifecycle
	Close() error
}
