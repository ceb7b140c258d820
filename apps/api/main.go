package main

import (
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"github.com/smallbiznis/chargeplan/internal/observability"
	"github.com/smallbiznis/chargeplan/internal/recordstore/backend"
	"github.com/smallbiznis/chargeplan/internal/server"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()

	app := fx.New(
		config.Module,
		observability.Module,
		clock.Module,
		backend.Module(cfg.RecordStore),

		// commands go out through the device hub
		devicehub.Module,

		server.Module,
	)
	app.Run()
}
