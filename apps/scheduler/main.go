package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"github.com/smallbiznis/chargeplan/internal/lock"
	"github.com/smallbiznis/chargeplan/internal/observability"
	"github.com/smallbiznis/chargeplan/internal/observability/probe"
	"github.com/smallbiznis/chargeplan/internal/recordstore/backend"
	"github.com/smallbiznis/chargeplan/internal/scheduler"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()

	app := fx.New(
		config.Module,
		observability.Module,
		probe.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		backend.Module(cfg.RecordStore),
		devicehub.Module,
		lock.Module,

		// No server module!
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
