package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"cryptosim/pkg/utils"
)

func newQuoteCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "quote <symbol>...",
		Short: "Show current prices",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			for _, symbol := range args {
				q, err := app.Feed.Quote(cmd.Context(), symbol)
				if err != nil {
					fmt.Printf("%-5s price unavailable\n", symbol)
					continue
				}
				fmt.Printf("%-5s %s  24h %s  vol %s\n",
					q.Symbol, utils.FormatMoney(q.Price),
					utils.FormatPercent(q.ChangePercent24h),
					utils.FormatCompact(q.Volume24h))
			}
			return nil
		},
	}
}
