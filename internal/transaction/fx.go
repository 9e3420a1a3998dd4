package transaction

import (
	"github.com/parcelflow/parcelflow/internal/transaction/service"
	"go.uber.org/fx"
)

var Module = fx.Module("transaction.service",
	fx.Provide(service.New),
)
