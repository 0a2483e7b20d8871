package cmd

import (
	"github.com/smallbiznis/leasebook/internal/app"
	"github.com/smallbiznis/leasebook/internal/scheduler"
	"github.com/smallbiznis/leasebook/internal/server"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the HTTP API and run the recurring invoice sweep loop",
	RunE: func(cmd *cobra.Command, args []string) error {
		fxApp := fx.New(
			app.Core,
			server.Module,
			scheduler.Loop,
		)
		if err := fxApp.Err(); err != nil {
			return err
		}
		fxApp.Run()
		return nil
	},
}
