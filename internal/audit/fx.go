package audit

import (
	"github.com/parcelflow/parcelflow/internal/audit/repository"
	"github.com/parcelflow/parcelflow/internal/audit/service"
	"go.uber.org/fx"
)

var Module = fx.Module("audit.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.NewService),
)
