package merchant

import (
	"github.com/parcelflow/parcelflow/internal/merchant/service"
	"go.uber.org/fx"
)

var Module = fx.Module("merchant.service",
	fx.Provide(service.New),
)
