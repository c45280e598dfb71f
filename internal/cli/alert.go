package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"cryptosim/internal/engine"
	"cryptosim/internal/models"
)

func newAlertCmd(app *App) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "alert",
		Short: "Manage price alerts",
	}
	cmd.AddCommand(newAlertAddCmd(app), newAlertListCmd(app), newAlertRemoveCmd(app))
	return cmd
}

func newAlertAddCmd(app *App) *cobra.Command {
	var (
		symbol    string
		condition string
		target    float64
		priority  int
		recurring bool
		interval  string
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Register a new price alert",
		RunE: func(cmd *cobra.Command, args []string) error {
			alert, err := app.Alerts.Add(cmd.Context(), engine.AlertRequest{
				UserID:            app.userID,
				Symbol:            symbol,
				Condition:         models.AlertCondition(condition),
				TargetValue:       decimal.NewFromFloat(target),
				Priority:          priority,
				Recurring:         recurring,
				RecurringInterval: models.AlertInterval(interval),
			})
			if err != nil {
				return err
			}
			fmt.Printf("Alert %s created: %s %s %s\n", alert.ID, alert.Symbol, alert.Condition, alert.TargetValue.String())
			return nil
		},
	}

	cmd.Flags().StringVar(&symbol, "symbol", "", "trading symbol, e.g. BTC")
	cmd.Flags().StringVar(&condition, "condition", "above", "above, below, change_percent, volume")
	cmd.Flags().Float64Var(&target, "target", 0, "target value for the condition")
	cmd.Flags().IntVar(&priority, "priority", 0, "alert priority")
	cmd.Flags().BoolVar(&recurring, "recurring", false, "re-arm after the recurring interval")
	cmd.Flags().StringVar(&interval, "interval", "", "recurring interval: daily, weekly, monthly")
	_ = cmd.MarkFlagRequired("symbol")
	_ = cmd.MarkFlagRequired("target")

	return cmd
}

func newAlertListCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List alerts",
		RunE: func(cmd *cobra.Command, args []string) error {
			list := app.Alerts.List(app.userID)
			if len(list) == 0 {
				fmt.Println("No alerts")
				return nil
			}
			for _, a := range list {
				state := "active"
				if !a.Active {
					state = "triggered"
				}
				line := fmt.Sprintf("%s  %-5s %-14s %-12s %s", a.ID, a.Symbol, a.Condition, state, a.TargetValue.String())
				if a.Recurring {
					line += " (" + string(a.RecurringInterval) + ")"
				}
				fmt.Println(line)
			}
			return nil
		},
	}
}

func newAlertRemoveCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "remove <alert-id>",
		Short: "Remove an alert",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := app.Alerts.Remove(args[0], app.userID); err != nil {
				return err
			}
			fmt.Printf("Alert %s removed\n", args[0])
			return nil
		},
	}
}
