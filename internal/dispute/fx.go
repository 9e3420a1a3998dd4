package dispute

import (
	"github.com/parcelflow/parcelflow/internal/dispute/service"
	"go.uber.org/fx"
)

var Module = fx.Module("dispute.service",
	fx.Provide(service.New),
)
