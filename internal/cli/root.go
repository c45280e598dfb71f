// Package cli provides the command-line interface for the trading simulator.
package cli

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cryptosim/internal/config"
	"cryptosim/internal/engine"
	"cryptosim/internal/ledger"
	"cryptosim/internal/notify"
	"cryptosim/internal/orders"
	"cryptosim/internal/pricefeed"
	"cryptosim/internal/store"
)

// Version information
const Version = "0.1.0"

// App holds the application dependencies.
type App struct {
	Config     *config.Config
	Logger     zerolog.Logger
	Store      store.DataStore
	Ledger     *ledger.Ledger
	Book       *orders.Book
	Feed       pricefeed.PriceSource
	Sim        *pricefeed.SimulatedSource // non-nil in sim feed mode
	Alerts     *engine.AlertEvaluator
	Trigger    *engine.TriggerEvaluator
	Supervisor *engine.Supervisor

	userID string
}

// NewRootCmd creates the root command and wires the engine together.
func NewRootCmd(cfg *config.Config, logger zerolog.Logger) *cobra.Command {
	app := &App{
		Config: cfg,
		Logger: logger,
	}

	if dataStore, err := store.NewSQLiteStore(cfg.Store.DBPath); err != nil {
		logger.Warn().Err(err).Msg("Store unavailable, running without persistence")
	} else {
		app.Store = dataStore
	}

	if cfg.Feed.Mode == "http" {
		httpSource := pricefeed.NewHTTPSource(pricefeed.HTTPSourceConfig{
			BaseURL:    cfg.Feed.BaseURL,
			Timeout:    cfg.Feed.Timeout,
			MaxRetries: cfg.Feed.MaxRetries,
			Logger:     logger,
		})
		app.Feed = pricefeed.NewResilientSource(httpSource, pricefeed.DefaultResilientConfig())
	} else {
		app.Sim = pricefeed.NewSimulatedSource(time.Now().UnixNano(), map[string]float64{
			"BTC": 40000,
			"ETH": 2500,
			"SOL": 100,
		})
		app.Feed = app.Sim
	}

	notifier := notify.NewMultiNotifier(logger,
		notify.NewTerminalChannel(logger, cfg.Notifications.Enabled),
		notify.NewWebhookChannel(cfg.Notifications.Webhook.URL, cfg.Notifications.Webhook.Enabled),
	)

	var sink ledger.TradeSink
	if app.Store != nil {
		sink = app.Store
	}
	app.Ledger = ledger.New(ledger.Config{
		StartingBalance: decimal.NewFromFloat(cfg.Trading.StartingBalance),
		FeeRate:         decimal.NewFromFloat(cfg.Trading.FeeRate),
		Sink:            sink,
		Logger:          logger,
	})

	var persister orders.Persister
	var alertPersister engine.AlertPersister
	if app.Store != nil {
		persister = app.Store
		alertPersister = app.Store
	}
	app.Book = orders.New(app.Ledger, app.Feed, persister, logger)
	app.Alerts = engine.NewAlertEvaluator(app.Feed, notifier, alertPersister, logger)
	app.Trigger = engine.NewTriggerEvaluator(app.Book, app.Ledger, app.Feed, notifier, logger)
	app.Supervisor = engine.NewSupervisor(engine.SupervisorConfig{
		Trigger:         app.Trigger,
		Alerts:          app.Alerts,
		TriggerInterval: cfg.Engine.TriggerInterval,
		AlertInterval:   cfg.Engine.AlertInterval,
		Logger:          logger,
	})

	app.restore()

	rootCmd := &cobra.Command{
		Use:     "cryptosim",
		Short:   "Virtual cryptocurrency trading simulator",
		Long:    "cryptosim lets you trade crypto with paper money against live or simulated prices.",
		Version: Version,
	}

	rootCmd.PersistentFlags().StringVar(&app.userID, "user", "default", "user ID to act as")

	rootCmd.AddCommand(
		newRunCmd(app),
		newOrderCmd(app),
		newAlertCmd(app),
		newPortfolioCmd(app),
		newQuoteCmd(app),
	)

	return rootCmd
}

// restore reloads persisted state so pending orders and alerts survive a
// restart.
func (a *App) restore() {
	if a.Store == nil {
		return
	}
	ctx := context.Background()

	if wallets, err := a.Store.GetWallets(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Restoring wallets failed")
	} else {
		for _, w := range wallets {
			a.Ledger.RestoreWallet(w)
		}
	}

	if positions, err := a.Store.GetPositions(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Restoring positions failed")
	} else {
		for _, p := range positions {
			a.Ledger.RestorePosition(p)
		}
	}

	if open, err := a.Store.GetOpenOrders(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Restoring orders failed")
	} else if len(open) > 0 {
		a.Book.Restore(open)
		a.Logger.Info().Int("count", len(open)).Msg("Restored pending orders")
	}

	if alerts, err := a.Store.GetAlerts(ctx); err != nil {
		a.Logger.Warn().Err(err).Msg("Restoring alerts failed")
	} else if len(alerts) > 0 {
		a.Alerts.Restore(alerts)
	}
}
