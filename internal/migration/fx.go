package migration

import (
	"github.com/smallbiznis/leasebook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

var Module = fx.Module("migrations",
	fx.Invoke(func(conn *gorm.DB, cfg db.Config, log *zap.Logger) error {
		if !cfg.AutoMigrate {
			log.Named("migration").Info("auto migration disabled")
			return nil
		}
		return Migrate(conn, cfg.Type)
	}),
)
