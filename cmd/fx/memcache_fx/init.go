package memcache_fx

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"vivuplanner/internal/config"
	"vivuplanner/internal/infra"
	mem "vivuplanner/pkg/memcache"
)

var Module = fx.Provide(provideCache)

// provideCache shares lookups through redis when it is configured and keeps them in process otherwise.
func provideCache(lc fx.Lifecycle, cfg config.Config, log *zap.Logger) (mem.Cache, error) {
	client, err := infra.InitRedis(context.Background(), cfg.Redis)
	if err != nil {
		return nil, err
	}
	if client == nil {
		log.Info("redis not configured, using in-process cache")
		return mem.NewTTLCache(), nil
	}
	lc.Append(fx.StopHook(client.Close))
	log.Info("redis cache connected", zap.String("addr", cfg.Redis.Addr))
	return mem.NewRedisCache(client, "vivuplanner:"), nil
}
