package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

// SQLiteStore implements DataStore using SQLite. Monetary values are stored
// as decimal strings so nothing is lost to float conversion.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates a new SQLite-based data store.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(time.Hour)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return store, nil
}

// initSchema creates all required tables and indexes.
func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS wallets (
		user_id TEXT PRIMARY KEY,
		balance TEXT NOT NULL,
		reserved TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS positions (
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		amount TEXT NOT NULL,
		total_invested TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (user_id, symbol)
	);

	CREATE TABLE IF NOT EXISTS orders (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		type TEXT NOT NULL,
		amount TEXT NOT NULL,
		limit_price TEXT,
		stop_price TEXT,
		trailing_amount TEXT,
		trailing_percent TEXT,
		time_in_force TEXT NOT NULL,
		expires_at DATETIME,
		reduce_only INTEGER DEFAULT 0,
		post_only INTEGER DEFAULT 0,
		status TEXT NOT NULL,
		reason TEXT,
		watermark TEXT,
		created_at DATETIME NOT NULL,
		filled_at DATETIME,
		filled_price TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_orders_user ON orders(user_id);
	CREATE INDEX IF NOT EXISTS idx_orders_status ON orders(status);

	CREATE TABLE IF NOT EXISTS trades (
		id TEXT PRIMARY KEY,
		order_id TEXT,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		side TEXT NOT NULL,
		amount TEXT NOT NULL,
		price TEXT NOT NULL,
		gross_value TEXT NOT NULL,
		fee TEXT NOT NULL,
		net_value TEXT NOT NULL,
		realized_pnl TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_trades_user ON trades(user_id);

	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL,
		symbol TEXT NOT NULL,
		condition TEXT NOT NULL,
		target_value TEXT NOT NULL,
		priority INTEGER DEFAULT 0,
		active INTEGER DEFAULT 1,
		recurring INTEGER DEFAULT 0,
		recurring_interval TEXT,
		triggered_at DATETIME,
		created_at DATETIME NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_alerts_user ON alerts(user_id);
	`

	_, err := s.db.Exec(schema)
	return err
}

// SaveWallet upserts a wallet snapshot.
func (s *SQLiteStore) SaveWallet(ctx context.Context, wallet *models.Wallet) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (user_id, balance, reserved, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id) DO UPDATE SET
			balance = excluded.balance,
			reserved = excluded.reserved,
			updated_at = CURRENT_TIMESTAMP`,
		wallet.UserID, wallet.Balance.String(), wallet.Reserved.String())
	if err != nil {
		return errors.Wrap(err, "saving wallet")
	}
	return nil
}

// GetWallets returns all persisted wallets.
func (s *SQLiteStore) GetWallets(ctx context.Context) ([]models.Wallet, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT user_id, balance, reserved FROM wallets`)
	if err != nil {
		return nil, errors.Wrap(err, "querying wallets")
	}
	defer rows.Close()

	var out []models.Wallet
	for rows.Next() {
		var w models.Wallet
		var balance, reserved string
		if err := rows.Scan(&w.UserID, &balance, &reserved); err != nil {
			return nil, errors.Wrap(err, "scanning wallet")
		}
		if w.Balance, err = decimal.NewFromString(balance); err != nil {
			return nil, errors.Wrap(err, "parsing wallet balance")
		}
		if w.Reserved, err = decimal.NewFromString(reserved); err != nil {
			return nil, errors.Wrap(err, "parsing wallet reserved")
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

// UpsertPosition upserts a position snapshot.
func (s *SQLiteStore) UpsertPosition(ctx context.Context, pos *models.Position) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO positions (user_id, symbol, amount, total_invested, updated_at)
		VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(user_id, symbol) DO UPDATE SET
			amount = excluded.amount,
			total_invested = excluded.total_invested,
			updated_at = CURRENT_TIMESTAMP`,
		pos.UserID, pos.Symbol, pos.Amount.String(), pos.TotalInvested.String())
	if err != nil {
		return errors.Wrap(err, "upserting position")
	}
	return nil
}

// DeletePosition removes a closed position.
func (s *SQLiteStore) DeletePosition(ctx context.Context, userID, symbol string) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM positions WHERE user_id = ? AND symbol = ?`, userID, symbol)
	if err != nil {
		return errors.Wrap(err, "deleting position")
	}
	return nil
}

// GetPositions returns all persisted positions.
func (s *SQLiteStore) GetPositions(ctx context.Context) ([]models.Position, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT user_id, symbol, amount, total_invested FROM positions`)
	if err != nil {
		return nil, errors.Wrap(err, "querying positions")
	}
	defer rows.Close()

	var out []models.Position
	for rows.Next() {
		var p models.Position
		var amount, invested string
		if err := rows.Scan(&p.UserID, &p.Symbol, &amount, &invested); err != nil {
			return nil, errors.Wrap(err, "scanning position")
		}
		if p.Amount, err = decimal.NewFromString(amount); err != nil {
			return nil, errors.Wrap(err, "parsing position amount")
		}
		if p.TotalInvested, err = decimal.NewFromString(invested); err != nil {
			return nil, errors.Wrap(err, "parsing position invested")
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// SaveOrder upserts an order snapshot.
func (s *SQLiteStore) SaveOrder(ctx context.Context, order *models.Order) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO orders (
			id, user_id, symbol, side, type, amount,
			limit_price, stop_price, trailing_amount, trailing_percent,
			time_in_force, expires_at, reduce_only, post_only,
			status, reason, watermark, created_at, filled_at, filled_price
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			type = excluded.type,
			stop_price = excluded.stop_price,
			status = excluded.status,
			reason = excluded.reason,
			watermark = excluded.watermark,
			filled_at = excluded.filled_at,
			filled_price = excluded.filled_price`,
		order.ID, order.UserID, order.Symbol, string(order.Side), string(order.Type),
		order.Amount.String(),
		decimalPtr(order.LimitPrice), decimalPtr(order.StopPrice),
		decimalPtr(order.TrailingAmount), decimalPtr(order.TrailingPercent),
		string(order.TimeInForce), timePtr(order.ExpiresAt),
		boolInt(order.ReduceOnly), boolInt(order.PostOnly),
		string(order.Status), order.Reason, decimalPtr(order.Watermark),
		order.CreatedAt, timePtr(order.FilledAt), decimalPtr(order.FilledPrice))
	if err != nil {
		return errors.Wrap(err, "saving order")
	}
	return nil
}

// GetOrder returns one order by ID.
func (s *SQLiteStore) GetOrder(ctx context.Context, orderID string) (*models.Order, error) {
	row := s.db.QueryRowContext(ctx, selectOrders+` WHERE id = ?`, orderID)
	order, err := scanOrder(row)
	if err == sql.ErrNoRows {
		return nil, errors.ErrOrderNotFound
	}
	if err != nil {
		return nil, errors.Wrap(err, "getting order")
	}
	return order, nil
}

// GetOpenOrders returns all non-terminal orders, used for restart recovery.
func (s *SQLiteStore) GetOpenOrders(ctx context.Context) ([]models.Order, error) {
	rows, err := s.db.QueryContext(ctx,
		selectOrders+` WHERE status IN (?, ?)`,
		string(models.OrderStatusPending), string(models.OrderStatusEvaluating))
	if err != nil {
		return nil, errors.Wrap(err, "querying open orders")
	}
	defer rows.Close()
	return scanOrders(rows)
}

// GetOrders returns a user's orders, newest first.
func (s *SQLiteStore) GetOrders(ctx context.Context, userID string, limit int) ([]models.Order, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		selectOrders+` WHERE user_id = ? ORDER BY created_at DESC LIMIT ?`, userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying orders")
	}
	defer rows.Close()
	return scanOrders(rows)
}

// SaveTrade inserts an immutable fill record.
func (s *SQLiteStore) SaveTrade(ctx context.Context, trade *models.Trade) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO trades (
			id, order_id, user_id, symbol, side, amount, price,
			gross_value, fee, net_value, realized_pnl, timestamp
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		trade.ID, trade.OrderID, trade.UserID, trade.Symbol, string(trade.Side),
		trade.Amount.String(), trade.Price.String(), trade.GrossValue.String(),
		trade.Fee.String(), trade.NetValue.String(), trade.RealizedPnL.String(),
		trade.Timestamp)
	if err != nil {
		return errors.Wrap(err, "saving trade")
	}
	return nil
}

// GetTrades returns a user's fills, newest first.
func (s *SQLiteStore) GetTrades(ctx context.Context, userID string, limit int) ([]models.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, order_id, user_id, symbol, side, amount, price,
			gross_value, fee, net_value, realized_pnl, timestamp
		FROM trades WHERE user_id = ? ORDER BY timestamp DESC LIMIT ?`,
		userID, limit)
	if err != nil {
		return nil, errors.Wrap(err, "querying trades")
	}
	defer rows.Close()

	var out []models.Trade
	for rows.Next() {
		var t models.Trade
		var side string
		var amount, price, gross, fee, net, pnl string
		if err := rows.Scan(&t.ID, &t.OrderID, &t.UserID, &t.Symbol, &side,
			&amount, &price, &gross, &fee, &net, &pnl, &t.Timestamp); err != nil {
			return nil, errors.Wrap(err, "scanning trade")
		}
		t.Side = models.OrderSide(side)
		for dst, src := range map[*decimal.Decimal]string{
			&t.Amount: amount, &t.Price: price, &t.GrossValue: gross,
			&t.Fee: fee, &t.NetValue: net, &t.RealizedPnL: pnl,
		} {
			if *dst, err = decimal.NewFromString(src); err != nil {
				return nil, errors.Wrap(err, "parsing trade decimal")
			}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// SaveAlert upserts an alert snapshot.
func (s *SQLiteStore) SaveAlert(ctx context.Context, alert *models.PriceAlert) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO alerts (
			id, user_id, symbol, condition, target_value, priority,
			active, recurring, recurring_interval, triggered_at, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			active = excluded.active,
			triggered_at = excluded.triggered_at`,
		alert.ID, alert.UserID, alert.Symbol, string(alert.Condition),
		alert.TargetValue.String(), alert.Priority,
		boolInt(alert.Active), boolInt(alert.Recurring),
		string(alert.RecurringInterval), timePtr(alert.TriggeredAt), alert.CreatedAt)
	if err != nil {
		return errors.Wrap(err, "saving alert")
	}
	return nil
}

// GetAlerts returns all persisted alerts.
func (s *SQLiteStore) GetAlerts(ctx context.Context) ([]models.PriceAlert, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, user_id, symbol, condition, target_value, priority,
			active, recurring, recurring_interval, triggered_at, created_at
		FROM alerts`)
	if err != nil {
		return nil, errors.Wrap(err, "querying alerts")
	}
	defer rows.Close()

	var out []models.PriceAlert
	for rows.Next() {
		var a models.PriceAlert
		var condition, interval, target string
		var active, recurring int
		var triggeredAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.UserID, &a.Symbol, &condition, &target,
			&a.Priority, &active, &recurring, &interval, &triggeredAt, &a.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scanning alert")
		}
		a.Condition = models.AlertCondition(condition)
		a.RecurringInterval = models.AlertInterval(interval)
		a.Active = active != 0
		a.Recurring = recurring != 0
		if a.TargetValue, err = decimal.NewFromString(target); err != nil {
			return nil, errors.Wrap(err, "parsing alert target")
		}
		if triggeredAt.Valid {
			t := triggeredAt.Time
			a.TriggeredAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

const selectOrders = `
	SELECT id, user_id, symbol, side, type, amount,
		limit_price, stop_price, trailing_amount, trailing_percent,
		time_in_force, expires_at, reduce_only, post_only,
		status, reason, watermark, created_at, filled_at, filled_price
	FROM orders`

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanOrder(row rowScanner) (*models.Order, error) {
	var o models.Order
	var side, otype, tif, status string
	var amount string
	var reason sql.NullString
	var limitPrice, stopPrice, trailingAmount, trailingPercent, watermark, filledPrice sql.NullString
	var expiresAt, filledAt sql.NullTime
	var reduceOnly, postOnly int

	err := row.Scan(&o.ID, &o.UserID, &o.Symbol, &side, &otype, &amount,
		&limitPrice, &stopPrice, &trailingAmount, &trailingPercent,
		&tif, &expiresAt, &reduceOnly, &postOnly,
		&status, &reason, &watermark, &o.CreatedAt, &filledAt, &filledPrice)
	if err != nil {
		return nil, err
	}

	o.Side = models.OrderSide(side)
	o.Type = models.OrderType(otype)
	o.TimeInForce = models.TimeInForce(tif)
	o.Status = models.OrderStatus(status)
	o.Reason = reason.String
	o.ReduceOnly = reduceOnly != 0
	o.PostOnly = postOnly != 0

	if o.Amount, err = decimal.NewFromString(amount); err != nil {
		return nil, err
	}
	for dst, src := range map[**decimal.Decimal]sql.NullString{
		&o.LimitPrice: limitPrice, &o.StopPrice: stopPrice,
		&o.TrailingAmount: trailingAmount, &o.TrailingPercent: trailingPercent,
		&o.Watermark: watermark, &o.FilledPrice: filledPrice,
	} {
		if !src.Valid {
			continue
		}
		d, err := decimal.NewFromString(src.String)
		if err != nil {
			return nil, err
		}
		*dst = &d
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		o.ExpiresAt = &t
	}
	if filledAt.Valid {
		t := filledAt.Time
		o.FilledAt = &t
	}
	return &o, nil
}

func scanOrders(rows *sql.Rows) ([]models.Order, error) {
	var out []models.Order
	for rows.Next() {
		order, err := scanOrder(rows)
		if err != nil {
			return nil, errors.Wrap(err, "scanning order")
		}
		out = append(out, *order)
	}
	return out, rows.Err()
}

func decimalPtr(d *decimal.Decimal) interface{} {
	if d == nil {
		return nil
	}
	return d.String()
}

func timePtr(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return *t
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ DataStore = (*SQLiteStore)(nil)
