package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type RedisStore struct {
	rdb    *redis.Client
	prefix string
	logger *zap.Logger
}

func NewRedisStore(rdb *redis.Client, logger *zap.Logger) *RedisStore {
	return &RedisStore{rdb: rdb, prefix: "session:await:", logger: logger}
}

func (s *RedisStore) key(owner int64) string {
	return fmt.Sprintf("%s%d", s.prefix, owner)
}

func (s *RedisStore) Await(ctx context.Context, owner int64, p Pending, ttl time.Duration) error {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	b, err := json.Marshal(p)
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, s.key(owner), b, ttl).Err(); err != nil {
		s.logger.Error("Failed to store pending edit", zap.Error(err), zap.Int64("owner", owner))
		return fmt.Errorf("await: %w", err)
	}
	return nil
}

func (s *RedisStore) Take(ctx context.Context, owner int64) (*Pending, error) {
	raw, err := s.rdb.GetDel(ctx, s.key(owner)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("take: %w", err)
	}
	var p Pending
	if err := json.Unmarshal(raw, &p); err != nil {
		s.logger.Warn("Dropping unreadable pending edit", zap.Error(err), zap.Int64("owner", owner))
		return nil, nil
	}
	return &p, nil
}

func (s *RedisStore) Clear(ctx context.Context, owner int64) error {
	return s.rdb.Del(ctx, s.key(owner)).Err()
}
