package lock

import (
	"context"
	"strings"

	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/chargeplan/internal/config"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

var Module = fx.Module("lock",
	fx.Provide(ProvideRedis),
	fx.Provide(NewLocker),
)

// ProvideRedis returns nil when REDIS_ADDR is unset.
func ProvideRedis(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		log.Named("lock").Info("redis not configured; dispatch sweep is single-flight per process only")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     strings.TrimSpace(cfg.Redis.Addr),
		Password: strings.TrimSpace(cfg.Redis.Password),
		DB:       cfg.Redis.DB,
	})
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			if err := client.Ping(ctx).Err(); err != nil {
				log.Named("lock").Warn("redis not reachable at startup", zap.Error(err))
			}
			return nil
		},
		OnStop: func(context.Context) error {
			return client.Close()
		},
	})
	return client
}
