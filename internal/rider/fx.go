package rider

import (
	"github.com/parcelflow/parcelflow/internal/rider/service"
	"go.uber.org/fx"
)

var Module = fx.Module("rider.service",
	fx.Provide(service.New),
)
