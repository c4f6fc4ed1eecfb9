package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"secondbrain/pkg/config"
)

// NewRedisClient 创建客户端并 ping 一次；ping 失败只告警，调用方决定是否降级
func NewRedisClient(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		logger.Warn("Redis ping failed", zap.String("addr", cfg.Addr), zap.Error(err))
		return rdb, fmt.Errorf("redis ping: %w", err)
	}
	logger.Info("Redis connection established", zap.String("addr", cfg.Addr))
	return rdb, nil
}
