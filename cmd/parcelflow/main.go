package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/parcelflow/parcelflow/internal/clock"
	"github.com/parcelflow/parcelflow/internal/config"
	"github.com/parcelflow/parcelflow/internal/locker"
	"github.com/parcelflow/parcelflow/internal/migration"
	"github.com/parcelflow/parcelflow/internal/observability"
	"github.com/parcelflow/parcelflow/internal/server"
	"github.com/parcelflow/parcelflow/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		locker.Module,
		migration.Module,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() (*snowflake.Node, error) {
	return snowflake.NewNode(1)
}
