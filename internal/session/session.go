package session

import (
	"context"
	"time"

	"secondbrain/internal/model"
)

// DefaultTTL 等待文字回复的时限
const DefaultTTL = 5 * time.Minute

type Field string

const (
	FieldTitle  Field = "title"
	FieldDetail Field = "detail"
)

// Pending 某个 owner 正在等待的编辑
type Pending struct {
	Field  Field        `json:"field"`
	Bucket model.Bucket `json:"bucket"`
	ItemID string       `json:"item_id"`
}

// Store 每个 owner 至多一个等待中的编辑，过期后自动失效。
// Take 原子地读取并删除；没有时返回 nil, nil。
type Store interface {
	Await(ctx context.Context, owner int64, p Pending, ttl time.Duration) error
	Take(ctx context.Context, owner int64) (*Pending, error)
	Clear(ctx context.Context, owner int64) error
}
