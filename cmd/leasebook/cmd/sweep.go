package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/smallbiznis/leasebook/internal/app"
	"github.com/smallbiznis/leasebook/internal/scheduler"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var sweepTimeout time.Duration

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Generate invoices for every due template once and print the summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		var sched *scheduler.Scheduler
		fxApp := fx.New(
			app.Core,
			fx.Populate(&sched),
		)
		if err := fxApp.Err(); err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), sweepTimeout)
		defer cancel()

		if err := fxApp.Start(ctx); err != nil {
			return fmt.Errorf("start: %w", err)
		}
		defer func() {
			stopCtx, stopCancel := context.WithTimeout(context.Background(), 15*time.Second)
			defer stopCancel()
			_ = fxApp.Stop(stopCtx)
		}()

		result, err := sched.Sweep(ctx)
		if err != nil {
			return err
		}

		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	},
}

func init() {
	sweepCmd.Flags().DurationVar(&sweepTimeout, "timeout", 10*time.Minute, "upper bound for the whole sweep")
}
