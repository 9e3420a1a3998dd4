package hub

import (
	"github.com/parcelflow/parcelflow/internal/hub/service"
	"go.uber.org/fx"
)

var Module = fx.Module("hub.service",
	fx.Provide(service.New),
)
