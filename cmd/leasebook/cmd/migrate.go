package cmd

import (
	"context"
	"time"

	"github.com/smallbiznis/leasebook/internal/app"
	"github.com/smallbiznis/leasebook/internal/migration"
	"github.com/smallbiznis/leasebook/pkg/db"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply schema migrations regardless of DATABASE_AUTO_MIGRATE",
	RunE: func(cmd *cobra.Command, args []string) error {
		fxApp := fx.New(
			app.Infra,
			fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
				if err := migration.Migrate(conn, cfg.Type); err != nil {
					return err
				}
				log.Info("migrations applied", zap.String("db_type", cfg.Type))
				return nil
			}),
		)
		if err := fxApp.Err(); err != nil {
			return err
		}

		// Start and stop so the connection pool is closed by its lifecycle hook.
		ctx, cancel := context.WithTimeout(cmd.Context(), time.Minute)
		defer cancel()
		if err := fxApp.Start(ctx); err != nil {
			return err
		}
		return fxApp.Stop(ctx)
	},
}
