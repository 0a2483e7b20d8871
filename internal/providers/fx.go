package providers

import (
	"github.com/smallbiznis/leasebook/internal/providers/email"
	"github.com/smallbiznis/leasebook/internal/providers/pdf"
	"go.uber.org/fx"
)

var Module = fx.Module("providers",
	email.Module,
	pdf.Module,
)
