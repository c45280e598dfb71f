package cli

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
)

func newRunCmd(app *App) *cobra.Command {
	var stepInterval time.Duration

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the evaluator loops until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			app.Supervisor.Start(ctx)
			defer app.Supervisor.Stop()

			stop := make(chan struct{})
			if app.Sim != nil {
				go func() {
					ticker := time.NewTicker(stepInterval)
					defer ticker.Stop()
					for {
						select {
						case <-stop:
							return
						case <-ticker.C:
							app.Sim.Step()
						}
					}
				}()
			}

			app.Logger.Info().Msg("Simulator running, press Ctrl-C to stop")

			sig := make(chan os.Signal, 1)
			signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
			select {
			case <-sig:
			case <-ctx.Done():
			}
			close(stop)

			if app.Store != nil {
				if err := app.Store.Close(); err != nil {
					app.Logger.Warn().Err(err).Msg("Closing store failed")
				}
			}
			return nil
		},
	}

	cmd.Flags().DurationVar(&stepInterval, "sim-step", time.Second, "simulated price step interval")
	return cmd
}
