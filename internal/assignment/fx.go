package assignment

import (
	"github.com/parcelflow/parcelflow/internal/assignment/service"
	"go.uber.org/fx"
)

var Module = fx.Module("assignment.service",
	fx.Provide(service.New),
)
