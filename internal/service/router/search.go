package router

import (
	"context"
	"errors"
	"fmt"

	"secondbrain/internal/model"
	"secondbrain/internal/repository"
)

var openStatuses = []model.Status{model.StatusActive, model.StatusPaused, model.StatusSomeday}

// scope 依次搜索的 bucket 与状态组合
type scope struct {
	buckets []model.Bucket
	groups  [][]model.Status
}

func completionScope() scope {
	return scope{
		buckets: []model.Bucket{model.BucketAdmin, model.BucketProjects, model.BucketPeople},
		groups:  [][]model.Status{openStatuses},
	}
}

func deletionScope(hint model.Bucket) scope {
	return scope{
		buckets: narrow(model.Buckets, hint),
		groups:  [][]model.Status{openStatuses},
	}
}

// statusScope 先找未完成的，再找已完成的（重新打开）
func statusScope(hint model.Bucket) scope {
	all := []model.Bucket{model.BucketProjects, model.BucketAdmin, model.BucketIdeas, model.BucketPeople}
	return scope{
		buckets: narrow(all, hint),
		groups:  [][]model.Status{openStatuses, {model.StatusCompleted}},
	}
}

// narrow 提示的 bucket 在范围内时只搜它
func narrow(buckets []model.Bucket, hint model.Bucket) []model.Bucket {
	for _, b := range buckets {
		if b == hint {
			return []model.Bucket{hint}
		}
	}
	return buckets
}

// find 模糊标题搜索，按 bucket 顺序与创建顺序取第一个命中；没有返回 nil
func (d *Dispatcher) find(ctx context.Context, owner int64, sc scope, hint string) (*model.Item, error) {
	if hint == "" {
		return nil, nil
	}
	for _, statuses := range sc.groups {
		for _, b := range sc.buckets {
			items, err := d.items.List(ctx, repository.ItemFilter{Owner: owner, Bucket: b, Statuses: statuses})
			if err != nil {
				return nil, fmt.Errorf("search %s: %w", b, err)
			}
			for _, it := range items {
				if it.MatchesHint(hint) {
					return it, nil
				}
			}
		}
	}
	return nil, nil
}

// get ErrNotFound 返回 nil, nil
func (d *Dispatcher) get(ctx context.Context, owner int64, bucket model.Bucket, id string) (*model.Item, error) {
	if !bucket.Storable() {
		return nil, nil
	}
	it, err := d.items.Get(ctx, owner, bucket, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return it, err
}
