package util

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Deduper 基于 SETNX 的投递去重
type Deduper struct {
	rdb    *redis.Client
	ttl    time.Duration
	logger *zap.Logger
}

func NewDeduper(rdb *redis.Client, ttl time.Duration, logger *zap.Logger) *Deduper {
	return &Deduper{rdb: rdb, ttl: ttl, logger: logger}
}

// AcquireOnce 第一次见到 (scope, id) 返回 true，重复返回 false。
// Redis 不可用时放行，宁可重复处理也不丢消息。
func (d *Deduper) AcquireOnce(ctx context.Context, scope string, id int64) bool {
	if d == nil || d.rdb == nil {
		return true
	}
	key := fmt.Sprintf("dedup:%s:%d", scope, id)

	ok, err := d.rdb.SetNX(ctx, key, 1, d.ttl).Result()
	if err != nil {
		d.logger.Warn("Redis dedup check failed, allowing processing",
			zap.String("scope", scope),
			zap.Int64("id", id),
			zap.Error(err),
		)
		return true
	}
	if !ok {
		d.logger.Info("Skipped duplicated delivery",
			zap.String("scope", scope),
			zap.Int64("id", id),
			zap.String("dedup_key", key),
		)
	}
	return ok
}
