// Package ledger owns wallet balances and positions. It is the single
// component allowed to mutate them, and every mutation happens through
// Execute under a per-user lock.
package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

// TradeSink receives fill records for persistence. Writes are best effort:
// a sink failure never rolls back a wallet or position mutation.
type TradeSink interface {
	SaveTrade(ctx context.Context, trade *models.Trade) error
	SaveWallet(ctx context.Context, wallet *models.Wallet) error
	UpsertPosition(ctx context.Context, pos *models.Position) error
	DeletePosition(ctx context.Context, userID, symbol string) error
}

// Ledger applies fills to wallets and positions and records trades.
type Ledger struct {
	feeRate         decimal.Decimal
	startingBalance decimal.Decimal

	mu        sync.Mutex
	userLocks map[string]*sync.Mutex
	wallets   map[string]*models.Wallet
	positions map[string]map[string]*models.Position // userID -> symbol
	trades    []models.Trade

	sink   TradeSink
	logger zerolog.Logger
}

// Config holds ledger construction parameters.
type Config struct {
	StartingBalance decimal.Decimal
	FeeRate         decimal.Decimal
	Sink            TradeSink // optional
	Logger          zerolog.Logger
}

// New creates a Ledger.
func New(cfg Config) *Ledger {
	feeRate := cfg.FeeRate
	if feeRate.IsZero() {
		feeRate = DefaultFeeRate
	}
	startingBalance := cfg.StartingBalance
	if startingBalance.IsZero() {
		startingBalance = decimal.NewFromInt(10000)
	}

	return &Ledger{
		feeRate:         feeRate,
		startingBalance: startingBalance,
		userLocks:       make(map[string]*sync.Mutex),
		wallets:         make(map[string]*models.Wallet),
		positions:       make(map[string]map[string]*models.Position),
		sink:            cfg.Sink,
		logger:          cfg.Logger,
	}
}

// FeeRate returns the configured fee rate.
func (l *Ledger) FeeRate() decimal.Decimal {
	return l.feeRate
}

// userLock returns the serialization lock for one user, creating it lazily.
// Executions for different users run in parallel; executions for the same
// user never do.
func (l *Ledger) userLock(userID string) *sync.Mutex {
	l.mu.Lock()
	defer l.mu.Unlock()
	lock, ok := l.userLocks[userID]
	if !ok {
		lock = &sync.Mutex{}
		l.userLocks[userID] = lock
	}
	return lock
}

// wallet returns the user's wallet, creating it with the starting balance on
// first use. Caller must hold the user lock.
func (l *Ledger) wallet(userID string) *models.Wallet {
	l.mu.Lock()
	defer l.mu.Unlock()
	w, ok := l.wallets[userID]
	if !ok {
		w = &models.Wallet{
			UserID:   userID,
			Balance:  l.startingBalance,
			Reserved: decimal.Zero,
		}
		l.wallets[userID] = w
	}
	return w
}

func (l *Ledger) position(userID, symbol string) *models.Position {
	l.mu.Lock()
	defer l.mu.Unlock()
	if byUser, ok := l.positions[userID]; ok {
		return byUser[symbol]
	}
	return nil
}

func (l *Ledger) setPosition(pos *models.Position) {
	l.mu.Lock()
	defer l.mu.Unlock()
	byUser, ok := l.positions[pos.UserID]
	if !ok {
		byUser = make(map[string]*models.Position)
		l.positions[pos.UserID] = byUser
	}
	byUser[pos.Symbol] = pos
}

func (l *Ledger) removePosition(userID, symbol string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if byUser, ok := l.positions[userID]; ok {
		delete(byUser, symbol)
	}
}

// Execute applies one fill: wallet debit/credit, position update and an
// immutable trade record. It is atomic: every failure path returns before
// the first mutation.
func (l *Ledger) Execute(ctx context.Context, userID, orderID, symbol string, side models.OrderSide, amount, price decimal.Decimal) (*models.Trade, error) {
	return l.ExecuteReleasing(ctx, userID, orderID, symbol, side, amount, price, decimal.Zero)
}

// ExecuteReleasing is Execute for a fill whose submission reserved funds:
// the reservation is released as part of the same atomic step, so the freed
// cash is visible to the availability check but never to a concurrent
// submission in between.
func (l *Ledger) ExecuteReleasing(ctx context.Context, userID, orderID, symbol string, side models.OrderSide, amount, price, release decimal.Decimal) (*models.Trade, error) {
	if amount.Sign() <= 0 {
		return nil, errors.NewLedgerError(userID, symbol, "execute", "amount must be positive", errors.ErrInvalidOrderShape)
	}
	if price.Sign() <= 0 {
		return nil, errors.NewLedgerError(userID, symbol, "execute", "price must be positive", errors.ErrInvalidOrderShape)
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	wallet := l.wallet(userID)
	gross := amount.Mul(price)
	fee := Fee(gross, l.feeRate)

	trade := &models.Trade{
		ID:         uuid.NewString(),
		OrderID:    orderID,
		UserID:     userID,
		Symbol:     symbol,
		Side:       side,
		Amount:     amount,
		Price:      price,
		GrossValue: gross,
		Fee:        fee,
		Timestamp:  time.Now().UTC(),
	}

	switch side {
	case models.OrderSideBuy:
		if err := l.applyBuy(wallet, trade, release); err != nil {
			return nil, err
		}
	case models.OrderSideSell:
		if err := l.applySell(wallet, trade); err != nil {
			return nil, err
		}
	default:
		return nil, errors.NewLedgerError(userID, symbol, "execute", "unknown side", errors.ErrInvalidOrderShape)
	}

	l.mu.Lock()
	l.trades = append(l.trades, *trade)
	l.mu.Unlock()

	l.persist(ctx, wallet, trade)

	l.logger.Info().
		Str("event", "fill").
		Str("user_id", userID).
		Str("order_id", orderID).
		Str("symbol", symbol).
		Str("side", string(side)).
		Str("amount", amount.String()).
		Str("price", price.String()).
		Str("fee", trade.Fee.String()).
		Msg("Fill executed")

	return trade, nil
}

// applyBuy debits totalCost and folds the fill into the position's running
// invested total. The average cost is recomputed from that total, never from
// averaging previous averages.
func (l *Ledger) applyBuy(wallet *models.Wallet, trade *models.Trade, release decimal.Decimal) error {
	totalCost := trade.GrossValue.Add(trade.Fee)

	available := wallet.Available().Add(release)
	if totalCost.GreaterThan(available) {
		return errors.NewLedgerError(trade.UserID, trade.Symbol, "buy",
			"cost "+totalCost.String()+" exceeds available "+available.String(),
			errors.ErrInsufficientFunds)
	}

	if release.Sign() > 0 {
		wallet.Reserved = wallet.Reserved.Sub(release)
		if wallet.Reserved.Sign() < 0 {
			wallet.Reserved = decimal.Zero
		}
	}
	wallet.Balance = wallet.Balance.Sub(totalCost)

	pos := l.position(trade.UserID, trade.Symbol)
	if pos == nil {
		pos = &models.Position{
			UserID:        trade.UserID,
			Symbol:        trade.Symbol,
			Amount:        trade.Amount,
			TotalInvested: trade.GrossValue,
		}
		l.setPosition(pos)
	} else {
		pos.Amount = pos.Amount.Add(trade.Amount)
		pos.TotalInvested = pos.TotalInvested.Add(trade.GrossValue)
	}

	trade.NetValue = totalCost.Neg()
	return nil
}

// applySell credits net proceeds and removes the sold proportion of the
// invested total. Selling the whole position removes it outright so no
// rounding dust survives.
func (l *Ledger) applySell(wallet *models.Wallet, trade *models.Trade) error {
	pos := l.position(trade.UserID, trade.Symbol)
	if pos == nil || trade.Amount.GreaterThan(pos.Amount) {
		held := decimal.Zero
		if pos != nil {
			held = pos.Amount
		}
		return errors.NewLedgerError(trade.UserID, trade.Symbol, "sell",
			"amount "+trade.Amount.String()+" exceeds held "+held.String(),
			errors.ErrInsufficientHoldings)
	}

	var investedRemoved decimal.Decimal
	closing := trade.Amount.Equal(pos.Amount)
	if closing {
		investedRemoved = pos.TotalInvested
	} else {
		investedRemoved = pos.TotalInvested.Mul(trade.Amount).Div(pos.Amount)
	}

	netProceeds := trade.GrossValue.Sub(trade.Fee)
	wallet.Balance = wallet.Balance.Add(netProceeds)

	if closing {
		l.removePosition(trade.UserID, trade.Symbol)
	} else {
		pos.Amount = pos.Amount.Sub(trade.Amount)
		pos.TotalInvested = pos.TotalInvested.Sub(investedRemoved)
	}

	trade.NetValue = netProceeds
	trade.RealizedPnL = netProceeds.Sub(investedRemoved)
	return nil
}

// Reserve locks funds against a pending buy order so later submissions see a
// reduced available balance.
func (l *Ledger) Reserve(userID string, amount decimal.Decimal) error {
	if amount.Sign() <= 0 {
		return nil
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	wallet := l.wallet(userID)
	if amount.GreaterThan(wallet.Available()) {
		return errors.NewLedgerError(userID, "", "reserve",
			"reservation "+amount.String()+" exceeds available "+wallet.Available().String(),
			errors.ErrInsufficientFunds)
	}
	wallet.Reserved = wallet.Reserved.Add(amount)
	return nil
}

// Release returns reserved funds to the available balance, clamping at zero
// so a double release cannot go negative.
func (l *Ledger) Release(userID string, amount decimal.Decimal) {
	if amount.Sign() <= 0 {
		return
	}

	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	wallet := l.wallet(userID)
	wallet.Reserved = wallet.Reserved.Sub(amount)
	if wallet.Reserved.Sign() < 0 {
		wallet.Reserved = decimal.Zero
	}
}

// Wallet returns a copy of the user's wallet, creating it on first use.
func (l *Ledger) Wallet(userID string) models.Wallet {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()
	return *l.wallet(userID)
}

// Position returns a copy of the user's position in a symbol, if any.
func (l *Ledger) Position(userID, symbol string) (models.Position, bool) {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	pos := l.position(userID, symbol)
	if pos == nil {
		return models.Position{}, false
	}
	return *pos, true
}

// Positions returns copies of all positions held by a user.
func (l *Ledger) Positions(userID string) []models.Position {
	lock := l.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	l.mu.Lock()
	defer l.mu.Unlock()

	byUser := l.positions[userID]
	out := make([]models.Position, 0, len(byUser))
	for _, pos := range byUser {
		out = append(out, *pos)
	}
	return out
}

// Trades returns copies of all recorded fills for a user, oldest first.
func (l *Ledger) Trades(userID string) []models.Trade {
	l.mu.Lock()
	defer l.mu.Unlock()

	var out []models.Trade
	for _, t := range l.trades {
		if t.UserID == userID {
			out = append(out, t)
		}
	}
	return out
}

// PortfolioValue returns cash plus the market value of all positions at the
// given prices. Symbols with no known price contribute their cost basis.
func (l *Ledger) PortfolioValue(userID string, prices map[string]decimal.Decimal) decimal.Decimal {
	wallet := l.Wallet(userID)
	total := wallet.Balance

	for _, pos := range l.Positions(userID) {
		if price, ok := prices[pos.Symbol]; ok {
			total = total.Add(pos.Amount.Mul(price))
		} else {
			total = total.Add(pos.TotalInvested)
		}
	}
	return total
}

// RestoreWallet seeds a wallet from persisted state. Used at startup only.
func (l *Ledger) RestoreWallet(w models.Wallet) {
	l.mu.Lock()
	defer l.mu.Unlock()
	cp := w
	l.wallets[w.UserID] = &cp
}

// RestorePosition seeds a position from persisted state. Used at startup only.
func (l *Ledger) RestorePosition(p models.Position) {
	cp := p
	l.setPosition(&cp)
}

func (l *Ledger) persist(ctx context.Context, wallet *models.Wallet, trade *models.Trade) {
	if l.sink == nil {
		return
	}

	if err := l.sink.SaveTrade(ctx, trade); err != nil {
		l.logger.Warn().Err(err).Str("trade_id", trade.ID).Msg("Persist trade failed")
	}
	if err := l.sink.SaveWallet(ctx, wallet); err != nil {
		l.logger.Warn().Err(err).Str("user_id", wallet.UserID).Msg("Persist wallet failed")
	}

	pos := l.position(trade.UserID, trade.Symbol)
	if pos == nil {
		if err := l.sink.DeletePosition(ctx, trade.UserID, trade.Symbol); err != nil {
			l.logger.Warn().Err(err).Str("symbol", trade.Symbol).Msg("Delete position failed")
		}
		return
	}
	if err := l.sink.UpsertPosition(ctx, pos); err != nil {
		l.logger.Warn().Err(err).Str("symbol", trade.Symbol).Msg("Persist position failed")
	}
}
