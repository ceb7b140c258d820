package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"github.com/smallbiznis/chargeplan/internal/ingestion"
	"github.com/smallbiznis/chargeplan/internal/lock"
	"github.com/smallbiznis/chargeplan/internal/observability"
	"github.com/smallbiznis/chargeplan/internal/recordstore/backend"
	"github.com/smallbiznis/chargeplan/internal/scheduler"
	"github.com/smallbiznis/chargeplan/internal/server"
	"go.uber.org/fx"
)

func main() {
	// the record store backend decides which infrastructure modules load
	cfg := config.Load()

	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		clock.Module,
		backend.Module(cfg.RecordStore),
		devicehub.Module,
		lock.Module,

		// HTTP API, MQTT telemetry and the dispatch sweep in one process
		server.Module,
		ingestion.SubscriberModule,
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
