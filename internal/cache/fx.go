package cache

import (
	"github.com/cielolabs/costwatch/internal/config"
	redis "github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// NewFromConfig selects the cache backend from configuration.
func NewFromConfig(cfg config.Config, log *zap.Logger) QueryCache {
	switch cfg.Cache.Backend {
	case "redis":
		if cfg.Cache.RedisAddr == "" {
			log.Warn("cache backend redis selected without CACHE_REDIS_ADDR, falling back to memory")
			return NewMemory()
		}
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.Cache.RedisAddr,
			Password: cfg.Cache.RedisPassword,
			DB:       cfg.Cache.RedisDB,
		})
		return NewRedis(client)
	case "none":
		return NewNop()
	default:
		return NewMemory()
	}
}

var Module = fx.Module("cache",
	fx.Provide(NewFromConfig),
)
