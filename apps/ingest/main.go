package main

import (
	"github.com/smallbiznis/chargeplan/internal/clock"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/devicehub"
	"github.com/smallbiznis/chargeplan/internal/ingestion"
	"github.com/smallbiznis/chargeplan/internal/observability"
	"github.com/smallbiznis/chargeplan/internal/observability/probe"
	"github.com/smallbiznis/chargeplan/internal/recordstore/backend"
	"go.uber.org/fx"
)

func main() {
	cfg := config.Load()

	app := fx.New(
		config.Module,
		observability.Module,
		probe.Module,
		clock.Module,
		backend.Module(cfg.RecordStore),
		devicehub.Module,

		// No server module!
		ingestion.Module,
		ingestion.SubscriberModule,
	)
	app.Run()
}
