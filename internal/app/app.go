// Package app assembles the fx graph shared by every leasebook binary.
package app

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/leasebook/internal/audit"
	"github.com/smallbiznis/leasebook/internal/authorization"
	"github.com/smallbiznis/leasebook/internal/clock"
	"github.com/smallbiznis/leasebook/internal/config"
	"github.com/smallbiznis/leasebook/internal/invoice"
	"github.com/smallbiznis/leasebook/internal/migration"
	"github.com/smallbiznis/leasebook/internal/observability"
	"github.com/smallbiznis/leasebook/internal/property"
	"github.com/smallbiznis/leasebook/internal/providers"
	"github.com/smallbiznis/leasebook/internal/ratelimit"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice"
	"github.com/smallbiznis/leasebook/internal/scheduler"
	"github.com/smallbiznis/leasebook/internal/tenant"
	"github.com/smallbiznis/leasebook/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
)

// Infra is config, logging, the database and ids. It runs no migrations.
var Infra = fx.Options(
	config.Module,
	observability.Module,
	fx.Provide(RegisterSnowflake),
	db.Module,
	clock.Module,
	fx.WithLogger(func(log *zap.Logger) fxevent.Logger {
		return &fxevent.ZapLogger{Logger: log.Named("fx")}
	}),
)

// Core is Infra plus every domain service. Binaries add the server and/or the scheduler loop.
var Core = fx.Options(
	Infra,
	migration.Module,
	ratelimit.Module,
	audit.Module,
	authorization.Module,
	tenant.Module,
	property.Module,
	providers.Module,
	invoice.Module,
	recurringinvoice.Module,
	scheduler.Module,
)

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
