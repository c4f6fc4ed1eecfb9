package undo

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/repository"
	"secondbrain/pkg/metrics"
)

const DefaultLimit = 10

const (
	MsgNothing       = "Nothing to undo."
	MsgMove          = "Undo is not supported for moves."
	MsgItemMissing   = "That item no longer exists, nothing was restored."
	// 撤销重复条目的完成不会删除已生成的后继条目
	MsgSuccessorKept = "Its next occurrence is still scheduled."
)

type Result struct {
	Success bool
	Message string
	Action  model.ActionType
	Bucket  model.Bucket
	Item    *model.Item
}

// Ledger 每个 owner 最近 limit 条变更前快照，按栈顺序撤销
type Ledger struct {
	entries repository.UndoStore
	items   repository.ItemStore
	limit   int
	logger  *zap.Logger
}

func NewLedger(entries repository.UndoStore, items repository.ItemStore, limit int, logger *zap.Logger) *Ledger {
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Ledger{entries: entries, items: items, limit: limit, logger: logger}
}

// Record 追加后裁剪到 limit 条。裁剪失败只记日志。
func (l *Ledger) Record(ctx context.Context, owner int64, action model.ActionType, bucket model.Bucket, itemID string, snapshot *model.Item) error {
	id, err := l.entries.Push(ctx, &model.UndoEntry{
		Owner:      owner,
		ActionType: action,
		Bucket:     bucket,
		ItemID:     itemID,
		Snapshot:   snapshot,
	})
	if err != nil {
		return fmt.Errorf("push undo entry: %w", err)
	}
	if _, err := l.entries.Trim(ctx, owner, l.limit); err != nil {
		l.logger.Warn("Failed to trim undo log", zap.Error(err), zap.Int64("owner", owner))
	}
	l.logger.Debug("Undo entry recorded",
		zap.Int64("undo_id", id),
		zap.String("action", string(action)),
		zap.String("item_id", itemID),
	)
	return nil
}

// UndoLast 撤销最近一次变更。条目被消费后不会再次应用；
// move 和目标已不存在的条目同样被消费，但返回 Success=false。
func (l *Ledger) UndoLast(ctx context.Context, owner int64) (Result, error) {
	entry, err := l.entries.Latest(ctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return Result{Message: MsgNothing}, nil
	}
	if err != nil {
		return Result{}, fmt.Errorf("read undo log: %w", err)
	}

	res, err := l.reverse(ctx, owner, entry)
	if err != nil {
		metrics.IncrementUndo(string(entry.ActionType), "error")
		return Result{}, err
	}
	if err := l.entries.DeleteUndo(ctx, owner, entry.ID); err != nil {
		return Result{}, fmt.Errorf("consume undo entry: %w", err)
	}

	outcome := "ok"
	if !res.Success {
		outcome = "rejected"
	}
	metrics.IncrementUndo(string(entry.ActionType), outcome)
	l.logger.Info("Undo processed",
		zap.Int64("owner", owner),
		zap.String("action", string(entry.ActionType)),
		zap.String("item_id", entry.ItemID),
		zap.Bool("success", res.Success),
	)
	return res, nil
}

func (l *Ledger) reverse(ctx context.Context, owner int64, e *model.UndoEntry) (Result, error) {
	res := Result{Action: e.ActionType, Bucket: e.Bucket}
	snap := e.Snapshot

	if e.ActionType == model.ActionMove {
		res.Message = MsgMove
		return res, nil
	}
	if snap == nil {
		res.Message = MsgItemMissing
		return res, nil
	}

	if e.ActionType == model.ActionDelete {
		_, err := l.items.Get(ctx, owner, e.Bucket, e.ItemID)
		if err == nil {
			res.Message = fmt.Sprintf("%q already exists.", snap.Title)
			return res, nil
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return res, err
		}
		restored, err := l.items.Insert(ctx, snap)
		if err != nil {
			return res, fmt.Errorf("restore deleted item: %w", err)
		}
		metrics.IncrementItemsCreated(string(restored.Bucket), "undo")
		res.Success, res.Item = true, restored
		res.Message = fmt.Sprintf("Restored %q.", restored.Title)
		return res, nil
	}

	current, err := l.items.Get(ctx, owner, e.Bucket, e.ItemID)
	if errors.Is(err, repository.ErrNotFound) {
		res.Message = MsgItemMissing
		return res, nil
	}
	if err != nil {
		return res, err
	}

	switch e.ActionType {
	case model.ActionComplete, model.ActionStatus:
		current.Status = snap.Status
		current.CompletedAt = snap.CompletedAt
		res.Message = fmt.Sprintf("%q is %s again.", current.Title, current.Status)
		if e.ActionType == model.ActionComplete && snap.IsRecurring() {
			res.Message += " " + MsgSuccessorKept
		}
	case model.ActionPriority:
		current.Priority = snap.Priority
		res.Message = fmt.Sprintf("Priority of %q restored to %s.", current.Title, current.Priority)
	case model.ActionDate:
		current.ScheduledDate = snap.ScheduledDate
		res.Message = fmt.Sprintf("Date of %q restored.", current.Title)
	default:
		res.Message = fmt.Sprintf("Cannot undo %q.", e.ActionType)
		return res, nil
	}

	err = l.items.Update(ctx, current)
	if errors.Is(err, repository.ErrNotFound) {
		res.Message = MsgItemMissing
		return res, nil
	}
	if err != nil {
		return res, fmt.Errorf("restore item: %w", err)
	}
	res.Success, res.Item = true, current
	return res, nil
}
