package router

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/repository"
	"secondbrain/internal/service/intent"
	"secondbrain/internal/service/lifecycle"
	"secondbrain/internal/service/undo"
	"secondbrain/internal/session"
	"secondbrain/pkg/logger"
	"secondbrain/pkg/metrics"
)

type Route string

const (
	RouteEdit     Route = "edit"
	RouteDone     Route = "done_prefix"
	RouteDelete   Route = "delete_confirm"
	RouteStatus   Route = "status_change"
	RouteComplete Route = "completion"
	RouteCapture  Route = "capture"
	RouteButton   Route = "button"
	RouteUndo     Route = "undo"
)

// Target 待确认删除的条目
type Target struct {
	Bucket model.Bucket
	ID     string
	Title  string
}

// Reply 路由结果，由传输层渲染成消息和按钮
type Reply struct {
	Route     Route
	OK        bool
	Message   string
	Item      *model.Item
	Successor *model.Item

	Inbox          *model.InboxEntry
	Classification *intent.Classification

	// Confirm 非空时需要用户确认删除
	Confirm *Target
	// Awaiting 非空时等待用户发来文字
	Awaiting *session.Pending
}

// Intents 意图判断，Gateway 实现
type Intents interface {
	Classify(ctx context.Context, text string, owner int64) intent.Classification
	DetectCompletion(ctx context.Context, text string) intent.Completion
	DetectDeletion(ctx context.Context, text string) intent.Deletion
	DetectStatusChange(ctx context.Context, text string) intent.StatusChange
}

type Dispatcher struct {
	items      repository.ItemStore
	inbox      repository.InboxStore
	life       *lifecycle.Service
	ledger     *undo.Ledger
	intents    Intents
	sessions   session.Store
	sessionTTL time.Duration
	logger     *zap.Logger
}

func NewDispatcher(
	items repository.ItemStore,
	inbox repository.InboxStore,
	life *lifecycle.Service,
	ledger *undo.Ledger,
	intents Intents,
	sessions session.Store,
	logger *zap.Logger,
) *Dispatcher {
	return &Dispatcher{
		items:      items,
		inbox:      inbox,
		life:       life,
		ledger:     ledger,
		intents:    intents,
		sessions:   sessions,
		sessionTTL: session.DefaultTTL,
		logger:     logger,
	}
}

func (d *Dispatcher) SetSessionTTL(ttl time.Duration) {
	if ttl > 0 {
		d.sessionTTL = ttl
	}
}

// Handle 处理一条文字消息。按固定顺序尝试：等待中的编辑、done: 前缀、删除、
// 状态变更、完成，最后作为新捕获。前几步命中意图但找不到条目时继续往下走。
func (d *Dispatcher) Handle(ctx context.Context, owner int64, text, source string) (Reply, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Reply{Route: RouteCapture, Message: "Nothing to capture."}, nil
	}
	log := logger.WithTrace(ctx, d.logger).With(zap.Int64("owner", owner))

	if r, ok, err := d.applyPending(ctx, owner, text); err != nil || ok {
		return decided(r), err
	}

	if hint, ok := donePrefix(text); ok {
		it, err := d.find(ctx, owner, completionScope(), hint)
		if err != nil {
			return Reply{}, err
		}
		if it != nil {
			out, err := d.life.Complete(ctx, owner, it.Bucket, it.ID)
			return decided(fromOutcome(RouteDone, out)), err
		}
		log.Debug("done: prefix matched nothing", zap.String("hint", hint))
	}

	if del := d.intents.DetectDeletion(ctx, text); del.IsDeletion {
		it, err := d.find(ctx, owner, deletionScope(del.BucketHint), del.TaskHint)
		if err != nil {
			return Reply{}, err
		}
		if it != nil {
			return decided(Reply{
				Route:   RouteDelete,
				OK:      true,
				Message: "Delete \"" + it.Title + "\"?",
				Item:    it,
				Confirm: &Target{Bucket: it.Bucket, ID: it.ID, Title: it.Title},
			}), nil
		}
		log.Debug("Deletion intent matched nothing", zap.String("hint", del.TaskHint))
	}

	if sc := d.intents.DetectStatusChange(ctx, text); sc.IsStatusChange {
		it, err := d.find(ctx, owner, statusScope(sc.BucketHint), sc.TaskHint)
		if err != nil {
			return Reply{}, err
		}
		if it != nil {
			out, err := d.life.SetStatus(ctx, owner, it.Bucket, it.ID, sc.NewStatus)
			return decided(fromOutcome(RouteStatus, out)), err
		}
		log.Debug("Status change intent matched nothing", zap.String("hint", sc.TaskHint))
	}

	if c := d.intents.DetectCompletion(ctx, text); c.IsCompletion {
		it, err := d.find(ctx, owner, completionScope(), c.TaskHint)
		if err != nil {
			return Reply{}, err
		}
		if it != nil {
			out, err := d.life.Complete(ctx, owner, it.Bucket, it.ID)
			return decided(fromOutcome(RouteComplete, out)), err
		}
		log.Debug("Completion intent matched nothing", zap.String("hint", c.TaskHint))
	}

	return d.Capture(ctx, owner, text, source)
}

// applyPending 消费等待中的标题/描述编辑。会话存储不可用时只记日志，消息照常路由。
func (d *Dispatcher) applyPending(ctx context.Context, owner int64, text string) (Reply, bool, error) {
	if d.sessions == nil {
		return Reply{}, false, nil
	}
	p, err := d.sessions.Take(ctx, owner)
	if err != nil {
		d.logger.Warn("Session store unavailable, skipping pending edit", zap.Error(err), zap.Int64("owner", owner))
		return Reply{}, false, nil
	}
	if p == nil {
		return Reply{}, false, nil
	}

	var out lifecycle.Outcome
	switch p.Field {
	case session.FieldTitle:
		out, err = d.life.Rename(ctx, owner, p.Bucket, p.ItemID, text)
	case session.FieldDetail:
		out, err = d.life.Redescribe(ctx, owner, p.Bucket, p.ItemID, text)
	default:
		return Reply{}, false, nil
	}
	return fromOutcome(RouteEdit, out), true, err
}

// AwaitEdit 让下一条文字消息成为该条目的新标题或描述
func (d *Dispatcher) AwaitEdit(ctx context.Context, owner int64, field session.Field, bucket model.Bucket, id string) (Reply, error) {
	it, err := d.get(ctx, owner, bucket, id)
	if err != nil {
		return Reply{}, err
	}
	if it == nil {
		return Reply{Route: RouteButton, Message: "Item not found."}, nil
	}
	p := session.Pending{Field: field, Bucket: bucket, ItemID: id}
	if err := d.sessions.Await(ctx, owner, p, d.sessionTTL); err != nil {
		return Reply{}, err
	}
	msg := "Send the new title."
	if field == session.FieldDetail {
		msg = "Send the new description."
	}
	return Reply{Route: RouteButton, OK: true, Message: msg, Item: it, Awaiting: &p}, nil
}

// ConfirmDelete 删除确认后的实际删除
func (d *Dispatcher) ConfirmDelete(ctx context.Context, owner int64, bucket model.Bucket, id string) (Reply, error) {
	out, err := d.life.Delete(ctx, owner, bucket, id)
	return fromOutcome(RouteButton, out), err
}

func (d *Dispatcher) Undo(ctx context.Context, owner int64) (Reply, error) {
	res, err := d.ledger.UndoLast(ctx, owner)
	if err != nil {
		return Reply{}, err
	}
	return decided(Reply{Route: RouteUndo, OK: res.Success, Message: res.Message, Item: res.Item}), nil
}

func donePrefix(text string) (string, bool) {
	if len(text) < 5 || !strings.EqualFold(text[:5], "done:") {
		return "", false
	}
	hint := strings.TrimSpace(text[5:])
	return hint, hint != ""
}

func fromOutcome(route Route, out lifecycle.Outcome) Reply {
	return Reply{
		Route:     route,
		OK:        out.OK,
		Message:   out.Message,
		Item:      out.Item,
		Successor: out.Successor,
	}
}

func decided(r Reply) Reply {
	if r.Route != "" {
		metrics.IncrementRouterDecision(string(r.Route))
	}
	return r
}
