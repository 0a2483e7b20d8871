package invoice

import (
	"github.com/smallbiznis/leasebook/internal/invoice/render"
	"github.com/smallbiznis/leasebook/internal/invoice/repository"
	"github.com/smallbiznis/leasebook/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(render.NewRenderer),
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
