package device

import (
	"github.com/smallbiznis/chargeplan/internal/device/service"
	"go.uber.org/fx"
)

var Module = fx.Module("device.service",
	fx.Provide(service.New),
)
