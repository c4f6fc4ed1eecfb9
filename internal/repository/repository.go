package repository

import (
	"context"
	"errors"
	"time"

	"secondbrain/internal/model"
)

// ErrNotFound 目标行不存在或不属于该 owner
var ErrNotFound = errors.New("not found")

// ItemFilter 列表查询条件；Statuses 为空表示不过滤状态
type ItemFilter struct {
	Owner    int64
	Bucket   model.Bucket
	Statuses []model.Status
}

// Matches 内存实现与测试共用的过滤判断
func (f ItemFilter) Matches(it *model.Item) bool {
	if it.Owner != f.Owner || it.Bucket != f.Bucket {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, st := range f.Statuses {
		if it.Status == st {
			return true
		}
	}
	return false
}

// ItemStore 四个 bucket 表的 CRUD，所有操作按 owner 隔离。
// List 按创建顺序返回。
type ItemStore interface {
	Insert(ctx context.Context, it *model.Item) (*model.Item, error)
	Get(ctx context.Context, owner int64, bucket model.Bucket, id string) (*model.Item, error)
	Update(ctx context.Context, it *model.Item) error
	Delete(ctx context.Context, owner int64, bucket model.Bucket, id string) error
	List(ctx context.Context, f ItemFilter) ([]*model.Item, error)
	CompletedSince(ctx context.Context, owner int64, bucket model.Bucket, since time.Time) ([]*model.Item, error)
}

type InboxStore interface {
	InsertEntry(ctx context.Context, e *model.InboxEntry) (*model.InboxEntry, error)
	GetEntry(ctx context.Context, owner int64, id string) (*model.InboxEntry, error)
	UpdateEntry(ctx context.Context, e *model.InboxEntry) error
	DeleteEntry(ctx context.Context, owner int64, id string) error
	// FirstUnreviewed 最早一条未处理的 needs_review 记录
	FirstUnreviewed(ctx context.Context, owner int64) (*model.InboxEntry, error)
	CountUnreviewed(ctx context.Context, owner int64) (int, error)
}

type UndoStore interface {
	Push(ctx context.Context, e *model.UndoEntry) (int64, error)
	// Trim 只保留最新 keep 条，返回删除条数
	Trim(ctx context.Context, owner int64, keep int) (int64, error)
	Latest(ctx context.Context, owner int64) (*model.UndoEntry, error)
	DeleteUndo(ctx context.Context, owner int64, id int64) error
	CountUndo(ctx context.Context, owner int64) (int, error)
}

type SettingsStore interface {
	GetSetting(ctx context.Context, owner int64, key string) (string, error)
	SetSetting(ctx context.Context, owner int64, key, value string) error
	AllSettings(ctx context.Context, owner int64) (map[string]string, error)
}

// Store 汇总全部仓储能力，Postgres 与内存实现都满足它
type Store interface {
	ItemStore
	InboxStore
	UndoStore
	SettingsStore
}

func stamp(t time.Time) time.Time {
	if t.IsZero() {
		return time.Now().UTC()
	}
	return t
}
