package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/smallbiznis/chargeplan/internal/config"
	"github.com/smallbiznis/chargeplan/internal/device"
	devicedomain "github.com/smallbiznis/chargeplan/internal/device/domain"
	"github.com/smallbiznis/chargeplan/internal/ingestion"
	"github.com/smallbiznis/chargeplan/internal/observability"
	obsmiddleware "github.com/smallbiznis/chargeplan/internal/observability/logger"
	obsmetrics "github.com/smallbiznis/chargeplan/internal/observability/metrics"
	obstracing "github.com/smallbiznis/chargeplan/internal/observability/tracing"
	"github.com/smallbiznis/chargeplan/internal/schedule"
	scheduledomain "github.com/smallbiznis/chargeplan/internal/schedule/domain"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("http.server",
	device.Module,
	schedule.Module,
	ingestion.Module,
	fx.Provide(registerGin),
	fx.Invoke(NewServer),
	fx.Invoke(run),
)

func NewEngine(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(obsmiddleware.GinMiddleware(obsmiddleware.MiddlewareConfig{
		Base:            log,
		Debug:           obsCfg.Debug(),
		ErrorClassifier: classifyErrorForLog,
	}))
	r.Use(obstracing.GinMiddleware())
	r.Use(obsmetrics.GinMiddleware(httpMetrics))
	r.Use(ErrorHandlingMiddleware())

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return r
}

func registerGin(obsCfg observability.Config, httpMetrics *obsmetrics.HTTPMetrics, log *zap.Logger) *gin.Engine {
	if !obsCfg.Debug() {
		gin.SetMode(gin.ReleaseMode)
	}
	return NewEngine(obsCfg, httpMetrics, log.Named("http"))
}

func run(lc fx.Lifecycle, shutdowner fx.Shutdowner, cfg config.Config, r *gin.Engine, log *zap.Logger) {
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Error("http server stopped", zap.String("addr", srv.Addr), zap.Error(err))
					_ = shutdowner.Shutdown(fx.ExitCode(1))
				}
			}()
			log.Info("http server listening", zap.String("addr", srv.Addr))
			return nil
		},
		OnStop: func(ctx context.Context) error {
			shutdownCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

type Server struct {
	engine      *gin.Engine
	cfg         config.Config
	deviceSvc   devicedomain.Service
	scheduleSvc scheduledomain.Service
	processor   *ingestion.Processor
	log         *zap.Logger
}

type ServerParams struct {
	fx.In

	Gin         *gin.Engine
	Cfg         config.Config
	DeviceSvc   devicedomain.Service
	ScheduleSvc scheduledomain.Service
	Processor   *ingestion.Processor
	Log         *zap.Logger
}

func NewServer(p ServerParams) *Server {
	svc := &Server{
		engine:      p.Gin,
		cfg:         p.Cfg,
		deviceSvc:   p.DeviceSvc,
		scheduleSvc: p.ScheduleSvc,
		processor:   p.Processor,
		log:         p.Log.Named("http.server"),
	}

	svc.registerCarRoutes()
	svc.registerTelemetryRoutes()
	svc.registerFallback()

	return svc
}

func (s *Server) Engine() *gin.Engine {
	return s.engine
}

func (s *Server) registerCarRoutes() {
	s.engine.GET("/cars", s.ListCars)

	car := s.engine.Group("/car/:deviceId", RequireDeviceID())
	{
		car.GET("/status", s.GetCarStatus)
		car.POST("/register", s.RegisterCar)

		// -------- Charging commands --------
		car.POST("/charging/start", s.StartCharging)
		car.POST("/charging/stop", s.StopCharging)

		// -------- Schedules --------
		car.GET("/schedules", s.ListSchedules)
		car.POST("/schedules", s.CreateSchedule)
		car.DELETE("/schedules/:scheduleId", s.DeleteSchedule)
	}
}

func (s *Server) registerTelemetryRoutes() {
	s.engine.POST("/telemetry", s.IngestTelemetry)
}

func (s *Server) registerFallback() {
	s.engine.NoRoute(func(c *gin.Context) {
		AbortWithError(c, ErrNotFound)
	})
}
