package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("scheduler",
	fx.Provide(ProvideConfig),
	fx.Provide(New),
	fx.Invoke(RegisterCron),
)

// RegisterCron fires RunOnce on the configured cron spec for the lifetime of the app.
func RegisterCron(lc fx.Lifecycle, cfg Config, sched *Scheduler, log *zap.Logger) error {
	cronLog := cronLogger{log: log.Named("scheduler.cron").Sugar()}
	runner := cron.New(
		cron.WithParser(cronParser),
		cron.WithLogger(cronLog),
		cron.WithChain(cron.Recover(cronLog), cron.SkipIfStillRunning(cronLog)),
	)

	ctx, cancel := context.WithCancel(context.Background())
	if _, err := runner.AddFunc(cfg.Cron, func() {
		if err := sched.RunOnce(ctx); err != nil {
			log.Warn("scheduler.sweep.failed", zap.Error(err))
		}
	}); err != nil {
		cancel()
		return err
	}

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runner.Start()
			log.Info("scheduler started", zap.String("cron", cfg.Cron))
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			done := runner.Stop()
			select {
			case <-done.Done():
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
			return nil
		},
	})
	return nil
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
