package recurringinvoice

import (
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/repository"
	"github.com/smallbiznis/leasebook/internal/recurringinvoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("recurringinvoice",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
