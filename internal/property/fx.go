package property

import (
	"github.com/smallbiznis/leasebook/internal/property/repository"
	"go.uber.org/fx"
)

var Module = fx.Module("property",
	fx.Provide(repository.Provide),
)
