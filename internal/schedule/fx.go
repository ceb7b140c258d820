package schedule

import (
	"github.com/smallbiznis/chargeplan/internal/schedule/service"
	"go.uber.org/fx"
)

var Module = fx.Module("schedule.service",
	fx.Provide(service.New),
)
