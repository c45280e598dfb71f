package ledger

import (
	"context"
	"sync"
	"testing"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"cryptosim/internal/errors"
	"cryptosim/internal/models"
)

func newTestLedger() *Ledger {
	return New(Config{
		StartingBalance: decimal.NewFromInt(10000),
		FeeRate:         decimal.NewFromFloat(0.001),
		Logger:          zerolog.Nop(),
	})
}

func dec(s string) decimal.Decimal {
	d, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

// TestBuyCreatesPosition verifies the first buy debits gross plus fee and
// opens a position at the fill price.
func TestBuyCreatesPosition(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	trade, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}

	if !trade.GrossValue.Equal(dec("4000")) {
		t.Errorf("gross = %s, want 4000", trade.GrossValue)
	}
	if !trade.Fee.Equal(dec("4")) {
		t.Errorf("fee = %s, want 4", trade.Fee)
	}

	wallet := l.Wallet("u1")
	if !wallet.Balance.Equal(dec("5996")) {
		t.Errorf("balance = %s, want 5996", wallet.Balance)
	}

	pos, ok := l.Position("u1", "BTC")
	if !ok {
		t.Fatal("expected a BTC position")
	}
	if !pos.Amount.Equal(dec("0.1")) {
		t.Errorf("amount = %s, want 0.1", pos.Amount)
	}
	if !pos.TotalInvested.Equal(dec("4000")) {
		t.Errorf("invested = %s, want 4000", pos.TotalInvested)
	}
	if !pos.AverageCost().Equal(dec("40000")) {
		t.Errorf("avg cost = %s, want 40000", pos.AverageCost())
	}
}

// TestTradeRecordsOrderID verifies a fill carries the order that produced
// it, so history can be tied back to orders.
func TestTradeRecordsOrderID(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	trade, err := l.Execute(ctx, "u1", "ord-1", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000"))
	if err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if trade.OrderID != "ord-1" {
		t.Errorf("trade order id = %q, want ord-1", trade.OrderID)
	}

	trades := l.Trades("u1")
	if len(trades) != 1 || trades[0].OrderID != "ord-1" {
		t.Errorf("stored trade order id = %q, want ord-1", trades[0].OrderID)
	}
}

// TestBuyAveragesCost verifies a second buy at a different price folds into
// the running invested total rather than averaging the previous average.
func TestBuyAveragesCost(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("first buy failed: %v", err)
	}
	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("44000")); err != nil {
		t.Fatalf("second buy failed: %v", err)
	}

	wallet := l.Wallet("u1")
	if !wallet.Balance.Equal(dec("1591.6")) {
		t.Errorf("balance = %s, want 1591.6", wallet.Balance)
	}

	pos, ok := l.Position("u1", "BTC")
	if !ok {
		t.Fatal("expected a BTC position")
	}
	if !pos.Amount.Equal(dec("0.2")) {
		t.Errorf("amount = %s, want 0.2", pos.Amount)
	}
	if !pos.TotalInvested.Equal(dec("8400")) {
		t.Errorf("invested = %s, want 8400", pos.TotalInvested)
	}
	if !pos.AverageCost().Equal(dec("42000")) {
		t.Errorf("avg cost = %s, want 42000", pos.AverageCost())
	}
}

// TestSellRealizesPnL verifies a partial sell credits net proceeds, removes
// the proportional invested amount and records realized P&L on the trade.
func TestSellRealizesPnL(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("44000")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	trade, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideSell, dec("0.1"), dec("50000"))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	if !trade.NetValue.Equal(dec("4995")) {
		t.Errorf("net proceeds = %s, want 4995", trade.NetValue)
	}
	if !trade.RealizedPnL.Equal(dec("795")) {
		t.Errorf("realized pnl = %s, want 795", trade.RealizedPnL)
	}

	wallet := l.Wallet("u1")
	if !wallet.Balance.Equal(dec("6586.6")) {
		t.Errorf("balance = %s, want 6586.6", wallet.Balance)
	}

	pos, ok := l.Position("u1", "BTC")
	if !ok {
		t.Fatal("expected remaining position")
	}
	if !pos.Amount.Equal(dec("0.1")) {
		t.Errorf("amount = %s, want 0.1", pos.Amount)
	}
	if !pos.TotalInvested.Equal(dec("4200")) {
		t.Errorf("invested = %s, want 4200", pos.TotalInvested)
	}
}

// TestFullCloseRemovesPosition verifies closing a position removes it
// outright and realized P&L uses the full invested total.
func TestFullCloseRemovesPosition(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	if _, err := l.Execute(ctx, "u1", "", "ETH", models.OrderSideBuy, dec("2"), dec("2500")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	trade, err := l.Execute(ctx, "u1", "", "ETH", models.OrderSideSell, dec("2"), dec("2600"))
	if err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	// net = 5200 - 5.2, invested removed = 5000
	if !trade.RealizedPnL.Equal(dec("194.8")) {
		t.Errorf("realized pnl = %s, want 194.8", trade.RealizedPnL)
	}

	if _, ok := l.Position("u1", "ETH"); ok {
		t.Error("position should be removed after a full close")
	}
	if len(l.Positions("u1")) != 0 {
		t.Error("positions list should be empty")
	}
}

// TestRoundTripCostsTwoFees verifies buying and selling at the same price
// loses exactly the two fees.
func TestRoundTripCostsTwoFees(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideSell, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("sell failed: %v", err)
	}

	wallet := l.Wallet("u1")
	want := dec("10000").Sub(dec("8")) // two fees of 4 each
	if !wallet.Balance.Equal(want) {
		t.Errorf("balance = %s, want %s", wallet.Balance, want)
	}
}

// TestInsufficientFunds verifies a buy exceeding the available balance fails
// before any mutation.
func TestInsufficientFunds(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	_, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("1"), dec("40000"))
	if !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	wallet := l.Wallet("u1")
	if !wallet.Balance.Equal(dec("10000")) {
		t.Errorf("balance = %s, want untouched 10000", wallet.Balance)
	}
	if _, ok := l.Position("u1", "BTC"); ok {
		t.Error("no position should exist after a rejected buy")
	}
	if len(l.Trades("u1")) != 0 {
		t.Error("no trade should be recorded after a rejected buy")
	}
}

// TestInsufficientHoldings verifies selling more than held, or selling with
// no position, fails without mutation.
func TestInsufficientHoldings(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	_, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideSell, dec("0.1"), dec("40000"))
	if !errors.Is(err, errors.ErrInsufficientHoldings) {
		t.Fatalf("err = %v, want ErrInsufficientHoldings", err)
	}

	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	_, err = l.Execute(ctx, "u1", "", "BTC", models.OrderSideSell, dec("0.2"), dec("40000"))
	if !errors.Is(err, errors.ErrInsufficientHoldings) {
		t.Fatalf("err = %v, want ErrInsufficientHoldings", err)
	}

	pos, _ := l.Position("u1", "BTC")
	if !pos.Amount.Equal(dec("0.1")) {
		t.Errorf("amount = %s, want untouched 0.1", pos.Amount)
	}
}

// TestInvalidExecuteInputs verifies zero and negative amounts and prices are
// rejected.
func TestInvalidExecuteInputs(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	cases := []struct {
		name   string
		amount decimal.Decimal
		price  decimal.Decimal
	}{
		{"zero amount", dec("0"), dec("40000")},
		{"negative amount", dec("-1"), dec("40000")},
		{"zero price", dec("1"), dec("0")},
		{"negative price", dec("1"), dec("-5")},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, tc.amount, tc.price)
			if !errors.Is(err, errors.ErrInvalidOrderShape) {
				t.Errorf("err = %v, want ErrInvalidOrderShape", err)
			}
		})
	}
}

// TestReserveRelease verifies reservations reduce the available balance and
// a double release clamps at zero.
func TestReserveRelease(t *testing.T) {
	l := newTestLedger()

	if err := l.Reserve("u1", dec("4000")); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}
	wallet := l.Wallet("u1")
	if !wallet.Available().Equal(dec("6000")) {
		t.Errorf("available = %s, want 6000", wallet.Available())
	}

	// A buy spending more than the unreserved remainder must fail.
	_, err := l.Execute(context.Background(), "u1", "", "BTC", models.OrderSideBuy, dec("0.2"), dec("40000"))
	if !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	if err := l.Reserve("u1", dec("7000")); !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("over-reserve err = %v, want ErrInsufficientFunds", err)
	}

	l.Release("u1", dec("4000"))
	l.Release("u1", dec("4000")) // double release
	wallet = l.Wallet("u1")
	if !wallet.Reserved.IsZero() {
		t.Errorf("reserved = %s, want 0 after double release", wallet.Reserved)
	}
}

// TestExecuteReleasing verifies a reserved buy can spend its own reservation
// and the reservation is gone afterwards.
func TestExecuteReleasing(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	// Reserve nearly the whole wallet, as a resting limit buy would.
	reserved := dec("8008")
	if err := l.Reserve("u1", reserved); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	// Without the release the buy cannot pass the availability check.
	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.2"), dec("40000")); !errors.Is(err, errors.ErrInsufficientFunds) {
		t.Fatalf("err = %v, want ErrInsufficientFunds", err)
	}

	if _, err := l.ExecuteReleasing(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.2"), dec("40000"), reserved); err != nil {
		t.Fatalf("ExecuteReleasing failed: %v", err)
	}

	wallet := l.Wallet("u1")
	if !wallet.Reserved.IsZero() {
		t.Errorf("reserved = %s, want 0", wallet.Reserved)
	}
	if !wallet.Balance.Equal(dec("1992")) {
		t.Errorf("balance = %s, want 1992", wallet.Balance)
	}
}

// TestConcurrentBuysOneWins verifies per-user serialization: two buys that
// each fit alone but not together produce exactly one fill.
func TestConcurrentBuysOneWins(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	// Each costs 6006; the wallet holds 10000.
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.15"), dec("40000"))
		}(i)
	}
	wg.Wait()

	var failed int
	for _, err := range errs {
		if err != nil {
			if !errors.Is(err, errors.ErrInsufficientFunds) {
				t.Fatalf("unexpected error: %v", err)
			}
			failed++
		}
	}
	if failed != 1 {
		t.Fatalf("failed buys = %d, want exactly 1", failed)
	}

	wallet := l.Wallet("u1")
	if !wallet.Balance.Equal(dec("3994")) {
		t.Errorf("balance = %s, want 3994", wallet.Balance)
	}
	pos, _ := l.Position("u1", "BTC")
	if !pos.Amount.Equal(dec("0.15")) {
		t.Errorf("amount = %s, want 0.15", pos.Amount)
	}
}

// TestDifferentUsersIsolated verifies users never see each other's wallets
// or positions.
func TestDifferentUsersIsolated(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	if !l.Wallet("u2").Balance.Equal(dec("10000")) {
		t.Error("u2 balance should be untouched")
	}
	if _, ok := l.Position("u2", "BTC"); ok {
		t.Error("u2 should hold no position")
	}
	if len(l.Trades("u2")) != 0 {
		t.Error("u2 should have no trades")
	}
}

// TestPortfolioValue verifies valuation uses live prices where known and
// cost basis otherwise.
func TestPortfolioValue(t *testing.T) {
	l := newTestLedger()
	ctx := context.Background()

	if _, err := l.Execute(ctx, "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}
	if _, err := l.Execute(ctx, "u1", "", "ETH", models.OrderSideBuy, dec("1"), dec("2500")); err != nil {
		t.Fatalf("buy failed: %v", err)
	}

	// balance = 10000 - 4004 - 2502.5 = 3493.5
	prices := map[string]decimal.Decimal{"BTC": dec("50000")}
	got := l.PortfolioValue("u1", prices)
	want := dec("3493.5").Add(dec("5000")).Add(dec("2500")) // ETH falls back to cost basis
	if !got.Equal(want) {
		t.Errorf("portfolio value = %s, want %s", got, want)
	}
}

// TestRestore verifies persisted wallets and positions seed the in-memory
// state at startup.
func TestRestore(t *testing.T) {
	l := newTestLedger()

	l.RestoreWallet(models.Wallet{UserID: "u1", Balance: dec("5000"), Reserved: dec("100")})
	l.RestorePosition(models.Position{UserID: "u1", Symbol: "BTC", Amount: dec("0.5"), TotalInvested: dec("20000")})

	wallet := l.Wallet("u1")
	if !wallet.Balance.Equal(dec("5000")) || !wallet.Reserved.Equal(dec("100")) {
		t.Errorf("wallet = %+v, want restored values", wallet)
	}
	pos, ok := l.Position("u1", "BTC")
	if !ok || !pos.AverageCost().Equal(dec("40000")) {
		t.Errorf("position = %+v, want restored with avg 40000", pos)
	}
}

type recordingSink struct {
	mu     sync.Mutex
	trades int
	fail   bool
}

func (s *recordingSink) SaveTrade(ctx context.Context, trade *models.Trade) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.fail {
		return errors.ErrDatabaseError
	}
	s.trades++
	return nil
}
func (s *recordingSink) SaveWallet(ctx context.Context, wallet *models.Wallet) error { return nil }
func (s *recordingSink) UpsertPosition(ctx context.Context, pos *models.Position) error {
	return nil
}
func (s *recordingSink) DeletePosition(ctx context.Context, userID, symbol string) error {
	return nil
}

// TestSinkFailureDoesNotRollBack verifies persistence is best effort: a
// failing sink never undoes the wallet mutation.
func TestSinkFailureDoesNotRollBack(t *testing.T) {
	sink := &recordingSink{fail: true}
	l := New(Config{
		StartingBalance: dec("10000"),
		FeeRate:         dec("0.001"),
		Sink:            sink,
		Logger:          zerolog.Nop(),
	})

	if _, err := l.Execute(context.Background(), "u1", "", "BTC", models.OrderSideBuy, dec("0.1"), dec("40000")); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	if !l.Wallet("u1").Balance.Equal(dec("5996")) {
		t.Error("balance should reflect the fill despite the sink failure")
	}
}
