package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
	"secondbrain/internal/repository"
	"secondbrain/pkg/metrics"
)

type Reason string

const (
	ReasonNone     Reason = ""
	ReasonNotFound Reason = "not_found"
	ReasonInvalid  Reason = "invalid"
)

// Outcome 状态机转换结果。失败通过 OK/Reason 表达，不返回 error。
type Outcome struct {
	OK      bool
	Reason  Reason
	Message string
	// Changed 为 false 表示幂等的空操作
	Changed   bool
	Item      *model.Item
	Successor *model.Item
}

func notFound() Outcome {
	return Outcome{Reason: ReasonNotFound, Message: "Item not found."}
}

func invalid(msg string) Outcome {
	return Outcome{Reason: ReasonInvalid, Message: msg}
}

func unchanged(it *model.Item) Outcome {
	return Outcome{OK: true, Item: it, Message: "No change."}
}

// Recorder 变更前记录快照，由撤销账本实现
type Recorder interface {
	Record(ctx context.Context, owner int64, action model.ActionType, bucket model.Bucket, itemID string, snapshot *model.Item) error
}

// Clock now 用于 completed_at，Today 为 owner 本地日期
type Clock interface {
	Now() time.Time
	Today(ctx context.Context, owner int64) time.Time
}

type Service struct {
	items    repository.ItemStore
	clock    Clock
	recorder Recorder
	logger   *zap.Logger
}

func NewService(items repository.ItemStore, clock Clock, logger *zap.Logger) *Service {
	return &Service{items: items, clock: clock, logger: logger}
}

// SetRecorder 不设置时不记录撤销
func (s *Service) SetRecorder(r Recorder) {
	s.recorder = r
}

// load 把 ErrNotFound 转成 Outcome，其它错误原样返回
func (s *Service) load(ctx context.Context, owner int64, bucket model.Bucket, id string) (*model.Item, *Outcome, error) {
	if !bucket.Storable() {
		o := notFound()
		return nil, &o, nil
	}
	it, err := s.items.Get(ctx, owner, bucket, id)
	if errors.Is(err, repository.ErrNotFound) {
		o := notFound()
		return nil, &o, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("load %s/%s: %w", bucket, id, err)
	}
	return it, nil, nil
}

// record 只在写入成功后调用，before 是修改前的快照
func (s *Service) record(ctx context.Context, action model.ActionType, before *model.Item) {
	if s.recorder == nil {
		return
	}
	if err := s.recorder.Record(ctx, before.Owner, action, before.Bucket, before.ID, before); err != nil {
		s.logger.Warn("Failed to record undo entry",
			zap.Error(err),
			zap.String("action", string(action)),
			zap.String("item_id", before.ID),
		)
	}
}

// save 写回条目；并发删除导致的 ErrNotFound 也按 not found 报告
func (s *Service) save(ctx context.Context, action model.ActionType, it *model.Item) (Outcome, error) {
	err := s.items.Update(ctx, it)
	if errors.Is(err, repository.ErrNotFound) {
		metrics.IncrementTransition(string(action), "not_found")
		return notFound(), nil
	}
	if err != nil {
		metrics.IncrementTransition(string(action), "error")
		return Outcome{}, fmt.Errorf("save %s/%s: %w", it.Bucket, it.ID, err)
	}
	metrics.IncrementTransition(string(action), "ok")
	return Outcome{OK: true, Changed: true, Item: it}, nil
}

// SetStatus 进入 completed 时写 completed_at，重复条目生成一个后继条目；
// 离开 completed 时清空 completed_at。
func (s *Service) SetStatus(ctx context.Context, owner int64, bucket model.Bucket, id string, status model.Status) (Outcome, error) {
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}

	if status == model.StatusPaused && !model.Schemas[bucket].AllowsPaused {
		metrics.IncrementTransition("status", "invalid")
		return invalid("Only projects can be paused."), nil
	}
	if it.Status == status {
		return unchanged(it), nil
	}

	action := model.ActionStatus
	if status == model.StatusCompleted {
		action = model.ActionComplete
	}
	snap := it.Clone()
	before := it.Status
	it.Status = status
	if status == model.StatusCompleted {
		now := s.clock.Now().UTC()
		it.CompletedAt = &now
	} else if before == model.StatusCompleted {
		it.CompletedAt = nil
	}

	out, err := s.save(ctx, action, it)
	if err != nil || !out.OK {
		return out, err
	}
	s.record(ctx, action, snap)
	out.Message = fmt.Sprintf("Marked %s.", status)

	if status == model.StatusCompleted && it.IsRecurring() {
		succ, err := s.spawnSuccessor(ctx, it)
		if err != nil {
			// 两行写入之间的失败不回滚，条目已完成
			s.logger.Error("Failed to create successor", zap.Error(err), zap.String("item_id", it.ID))
			return out, err
		}
		out.Successor = succ
		out.Message = fmt.Sprintf("Marked completed. Next: %s.", succ.ScheduledDate.Format("2006-01-02"))
	}
	return out, nil
}

// Complete 等价于 SetStatus(completed)
func (s *Service) Complete(ctx context.Context, owner int64, bucket model.Bucket, id string) (Outcome, error) {
	return s.SetStatus(ctx, owner, bucket, id, model.StatusCompleted)
}

func (s *Service) spawnSuccessor(ctx context.Context, done *model.Item) (*model.Item, error) {
	today := s.clock.Today(ctx, done.Owner)
	anchor := today
	if done.ScheduledDate != nil {
		anchor = *done.ScheduledDate
	}
	next := done.Recurrence.Next(anchor, today)
	pattern := *done.Recurrence

	succ, err := s.items.Insert(ctx, &model.Item{
		Owner:         done.Owner,
		Bucket:        done.Bucket,
		Title:         done.Title,
		Detail:        done.Detail,
		Status:        model.StatusActive,
		Priority:      done.Priority,
		ScheduledDate: &next,
		Recurrence:    &pattern,
	})
	if err != nil {
		return nil, err
	}
	metrics.IncrementItemsCreated(string(succ.Bucket), "successor")
	s.logger.Info("Recurring successor created",
		zap.String("item_id", done.ID),
		zap.String("successor_id", succ.ID),
		zap.Time("next", next),
	)
	return succ, nil
}

func (s *Service) TogglePriority(ctx context.Context, owner int64, bucket model.Bucket, id string) (Outcome, error) {
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}
	snap := it.Clone()
	it.Priority = it.Priority.Toggle()

	out, err := s.save(ctx, model.ActionPriority, it)
	if out.OK {
		s.record(ctx, model.ActionPriority, snap)
		out.Message = fmt.Sprintf("Priority set to %s.", it.Priority)
	}
	return out, err
}

// SetDate date 为 nil 时清空；ideas 不带日期
func (s *Service) SetDate(ctx context.Context, owner int64, bucket model.Bucket, id string, date *time.Time) (Outcome, error) {
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}
	if !model.Schemas[bucket].DateBearing() {
		return invalid(fmt.Sprintf("%s items have no date.", bucket)), nil
	}

	var next *time.Time
	if date != nil {
		d := recurrence.Truncate(*date)
		next = &d
	}
	if sameDate(it.ScheduledDate, next) {
		return unchanged(it), nil
	}

	snap := it.Clone()
	it.ScheduledDate = next
	out, err := s.save(ctx, model.ActionDate, it)
	if out.OK {
		s.record(ctx, model.ActionDate, snap)
		out.Message = "Date cleared."
		if next != nil {
			out.Message = fmt.Sprintf("Date set to %s.", next.Format("2006-01-02"))
		}
	}
	return out, err
}

// SetRecurrence pattern 为 nil 时同时清空 is_recurring
func (s *Service) SetRecurrence(ctx context.Context, owner int64, bucket model.Bucket, id string, pattern *recurrence.Pattern) (Outcome, error) {
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}
	if !model.Schemas[bucket].DateBearing() {
		return invalid(fmt.Sprintf("%s items cannot repeat.", bucket)), nil
	}
	if samePattern(it.Recurrence, pattern) {
		return unchanged(it), nil
	}

	if pattern == nil {
		it.Recurrence = nil
	} else {
		p := *pattern
		it.Recurrence = &p
	}
	out, err := s.save(ctx, "recurrence", it)
	if out.OK {
		out.Message = "Recurrence cleared."
		if pattern != nil {
			out.Message = fmt.Sprintf("Repeats %s.", pattern.Describe())
		}
	}
	return out, err
}

func (s *Service) Rename(ctx context.Context, owner int64, bucket model.Bucket, id, title string) (Outcome, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return invalid("Title cannot be empty."), nil
	}
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}
	if it.Title == title {
		return unchanged(it), nil
	}
	it.Title = title
	out, err := s.save(ctx, "rename", it)
	if out.OK {
		out.Message = "Title updated."
	}
	return out, err
}

func (s *Service) Redescribe(ctx context.Context, owner int64, bucket model.Bucket, id, detail string) (Outcome, error) {
	detail = strings.TrimSpace(detail)
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}
	if it.Detail == detail {
		return unchanged(it), nil
	}
	it.Detail = detail
	out, err := s.save(ctx, "redescribe", it)
	if out.OK {
		out.Message = "Description updated."
	}
	return out, err
}

// Move 删除后重建：新条目拿到新 ID，bucket 特有字段丢失
func (s *Service) Move(ctx context.Context, owner int64, bucket model.Bucket, id string, dest model.Bucket) (Outcome, error) {
	if !dest.Storable() {
		return invalid(fmt.Sprintf("Unknown bucket %q.", dest)), nil
	}
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}
	if bucket == dest {
		return unchanged(it), nil
	}

	moved, err := s.items.Insert(ctx, model.MoveInto(it, dest))
	if err != nil {
		metrics.IncrementTransition(string(model.ActionMove), "error")
		return Outcome{}, fmt.Errorf("move %s -> %s: %w", bucket, dest, err)
	}
	if err := s.items.Delete(ctx, owner, bucket, id); err != nil && !errors.Is(err, repository.ErrNotFound) {
		s.logger.Error("Moved item but failed to delete source",
			zap.Error(err),
			zap.String("item_id", id),
			zap.String("new_id", moved.ID),
		)
		return Outcome{}, fmt.Errorf("move delete source: %w", err)
	}
	s.record(ctx, model.ActionMove, it.Clone())

	metrics.IncrementTransition(string(model.ActionMove), "ok")
	metrics.IncrementItemsCreated(string(dest), "move")
	s.logger.Info("Item moved",
		zap.String("from", string(bucket)),
		zap.String("to", string(dest)),
		zap.String("item_id", id),
		zap.String("new_id", moved.ID),
	)
	return Outcome{OK: true, Changed: true, Item: moved, Message: fmt.Sprintf("Moved to %s.", dest)}, nil
}

func (s *Service) Delete(ctx context.Context, owner int64, bucket model.Bucket, id string) (Outcome, error) {
	it, miss, err := s.load(ctx, owner, bucket, id)
	if miss != nil || err != nil {
		return deref(miss), err
	}

	err = s.items.Delete(ctx, owner, bucket, id)
	if errors.Is(err, repository.ErrNotFound) {
		return notFound(), nil
	}
	if err != nil {
		metrics.IncrementTransition(string(model.ActionDelete), "error")
		return Outcome{}, fmt.Errorf("delete %s/%s: %w", bucket, id, err)
	}
	s.record(ctx, model.ActionDelete, it.Clone())
	metrics.IncrementTransition(string(model.ActionDelete), "ok")
	return Outcome{OK: true, Changed: true, Item: it, Message: fmt.Sprintf("Deleted %q.", it.Title)}, nil
}

func deref(o *Outcome) Outcome {
	if o == nil {
		return Outcome{}
	}
	return *o
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return recurrence.Truncate(*a).Equal(recurrence.Truncate(*b))
}

func samePattern(a, b *recurrence.Pattern) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}
