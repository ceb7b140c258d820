// Package probe serves /metrics and /health for processes that do not run
// the HTTP API.
package probe

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/chargeplan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("observability.probe",
	fx.Invoke(Register),
)

func NewHandler() http.Handler {
	r := gin.New()
	r.Use(gin.Recovery())
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	return r
}

// Register listens on METRICS_ADDR. An empty address disables the listener.
func Register(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) {
	if cfg.MetricsAddr == "" {
		return
	}
	log = log.Named("probe")
	srv := &http.Server{
		Addr:              cfg.MetricsAddr,
		Handler:           NewHandler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("probe listener stopped", zap.String("addr", srv.Addr), zap.Error(err))
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}
