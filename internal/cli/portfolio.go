package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cryptosim/internal/models"
	"cryptosim/pkg/utils"
)

func newPortfolioCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "portfolio",
		Short: "Show wallet, positions and trade history",
		RunE: func(cmd *cobra.Command, args []string) error {
			currency := app.Config.Trading.QuoteCurrency
			wallet := app.Ledger.Wallet(app.userID)
			fmt.Printf("Wallet %s\n", app.userID)
			fmt.Printf("  Balance:   %s %s\n", utils.FormatMoney(wallet.Balance), currency)
			fmt.Printf("  Reserved:  %s %s\n", utils.FormatMoney(wallet.Reserved), currency)
			fmt.Printf("  Available: %s %s\n", utils.FormatMoney(wallet.Available()), currency)

			positions := app.Ledger.Positions(app.userID)
			if len(positions) > 0 {
				fmt.Println("\nPositions")
				prices := make(map[string]decimal.Decimal, len(positions))
				for _, pos := range positions {
					line := fmt.Sprintf("  %-5s %s @ avg %s", pos.Symbol, pos.Amount.String(), utils.FormatMoney(pos.AverageCost()))
					quote, err := app.Feed.Quote(cmd.Context(), pos.Symbol)
					if err == nil {
						prices[pos.Symbol] = quote.Price
						line += fmt.Sprintf("  now %s  unrealized %s",
							utils.FormatMoney(quote.Price), utils.FormatPnL(pos.UnrealizedPnL(quote.Price)))
					}
					fmt.Println(line)
				}
				total := app.Ledger.PortfolioValue(app.userID, prices)
				fmt.Printf("\nPortfolio value: %s %s\n", utils.FormatMoney(total), currency)
			}

			trades := app.Ledger.Trades(app.userID)
			if len(trades) > 0 {
				fmt.Println("\nRecent trades")
				start := 0
				if len(trades) > 10 {
					start = len(trades) - 10
				}
				for _, t := range trades[start:] {
					line := fmt.Sprintf("  %s %-4s %s %s @ %s fee %s",
						t.Timestamp.Format("2006-01-02 15:04:05"),
						t.Side, t.Amount.String(), t.Symbol,
						utils.FormatMoney(t.Price), utils.FormatMoney(t.Fee))
					if t.Side == models.OrderSideSell {
						line += " pnl " + utils.FormatPnL(t.RealizedPnL)
					}
					fmt.Println(line)
				}
			}
			return nil
		},
	}
	return cmd
}
