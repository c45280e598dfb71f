package cli

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cryptosim/internal/models"
	"cryptosim/internal/orders"
)

func newOrderCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "order",
		Short: "Place, cancel and list orders",
	}
	cmd.AddCommand(newOrderPlaceCmd(app), newOrderCancelCmd(app), newOrderListCmd(app))
	return cmd
}

func newOrderPlaceCmd(app *App) *cobra.Command {
	var (
		symbol       string
		side         string
		orderType    string
		amount       float64
		limitPrice   float64
		stopPrice    float64
		trailAmount  float64
		trailPercent float64
		tif          string
		expiresIn    time.Duration
		reduceOnly   bool
		postOnly     bool
	)

	cmd := &cobra.Command{
		Use:   "place",
		Short: "Submit a new order",
		RunE: func(cmd *cobra.Command, args []string) error {
			req := orders.Request{
				UserID:      app.userID,
				Symbol:      symbol,
				Side:        models.OrderSide(side),
				Type:        models.OrderType(orderType),
				Amount:      decimal.NewFromFloat(amount),
				TimeInForce: models.TimeInForce(tif),
				ReduceOnly:  reduceOnly,
				PostOnly:    postOnly,
			}
			if limitPrice > 0 {
				d := decimal.NewFromFloat(limitPrice)
				req.LimitPrice = &d
			}
			if stopPrice > 0 {
				d := decimal.NewFromFloat(stopPrice)
				req.StopPrice = &d
			}
			if trailAmount > 0 {
				d := decimal.NewFromFloat(trailAmount)
				req.TrailingAmount = &d
			}
			if trailPercent > 0 {
				d := decimal.NewFromFloat(trailPercent)
				req.TrailingPercent = &d
			}
			if expiresIn > 0 {
				t := time.Now().Add(expiresIn)
				req.ExpiresAt = &t
			}

			order, err := app.Book.Submit(cmd.Context(), req)
			if err != nil {
				if order != nil {
					fmt.Printf("Order %s rejected: %s\n", order.ID, order.Reason)
					return nil
				}
				return err
			}

			switch order.Status {
			case models.OrderStatusFilled:
				fmt.Printf("Order %s filled at %s\n", order.ID, order.FilledPrice.String())
			case models.OrderStatusPending:
				fmt.Printf("Order %s accepted, waiting for trigger\n", order.ID)
			default:
				fmt.Printf("Order %s %s\n", order.ID, order.Status)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "trading symbol, e.g. BTC")
	cmd.Flags().StringVar(&side, "side", "buy", "buy or sell")
	cmd.Flags().StringVar(&orderType, "type", "market", "market, limit, stop_loss, take_profit, stop_limit, trailing_stop")
	cmd.Flags().Float64Var(&amount, "amount", 0, "order amount")
	cmd.Flags().Float64Var(&limitPrice, "limit", 0, "limit price")
	cmd.Flags().Float64Var(&stopPrice, "stop", 0, "stop price")
	cmd.Flags().Float64Var(&trailAmount, "trail-amount", 0, "trailing distance, absolute")
	cmd.Flags().Float64Var(&trailPercent, "trail-percent", 0, "trailing distance, fraction in (0,1)")
	cmd.Flags().StringVar(&tif, "tif", "GTC", "time in force: GTC, IOC, FOK, GTT")
	cmd.Flags().DurationVar(&expiresIn, "expires-in", 0, "GTT expiry from now, e.g. 24h")
	cmd.Flags().BoolVar(&reduceOnly, "reduce-only", false, "sell may only reduce an existing position")
	cmd.Flags().BoolVar(&postOnly, "post-only", false, "limit order must not take immediately")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("amount")

	return cmd
}

func newOrderCancelCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "cancel <order-id>",
		Short: "Cancel a pending order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Book.Cancel(cmd.Context(), args[0], app.userID); err != nil {
				return err
			}
			fmt.Printf("Order %s cancelled\n", args[0])
			return nil
		},
	}
}

func newOrderListCmd(app *App) *cobra.Command {
	var openOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List orders",
		RunE: func(cmd *cobra.Command, args []string) error {
			list := app.Book.ListByUser(app.userID)
			if openOnly {
				open := list[:0]
				for _, o := range list {
					if !o.Status.Terminal() {
						open = append(open, o)
					}
				}
				list = open
			}
			if len(list) == 0 {
				fmt.Println("No orders")
				return nil
			}
			for _, o := range list {
				line := fmt.Sprintf("%s  %-13s %-4s %-8s %s %s", o.ID, o.Type, o.Side, o.Status, o.Amount.String(), o.Symbol)
				if o.FilledPrice != nil {
					line += " @ " + o.FilledPrice.String()
				}
				if o.Reason != "" {
					line += " (" + o.Reason + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&openOnly, "open", false, "only show orders still awaiting a trigger")
	return cmd
}
