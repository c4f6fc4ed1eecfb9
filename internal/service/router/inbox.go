package router

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/repository"
	"secondbrain/internal/service/intent"
	"secondbrain/pkg/metrics"
)

// Capture 新捕获：先写 inbox 记录，再分类路由到 bucket；
// needs_review 时记录保持未处理，等待人工复核。
func (d *Dispatcher) Capture(ctx context.Context, owner int64, text, source string) (Reply, error) {
	if source == "" {
		source = model.SourceTelegram
	}
	c := d.intents.Classify(ctx, text, owner)

	entry, err := d.inbox.InsertEntry(ctx, &model.InboxEntry{
		Owner:      owner,
		RawMessage: text,
		Source:     source,
		Category:   c.Bucket,
		Confidence: c.Confidence,
		AITitle:    c.Title,
		AIResponse: c.Raw,
	})
	if err != nil {
		return Reply{}, fmt.Errorf("log capture: %w", err)
	}

	reply := Reply{Route: RouteCapture, OK: true, Inbox: entry, Classification: &c}
	if !c.Bucket.Storable() {
		reply.Message = "Saved for review."
		d.logger.Info("Capture needs review",
			zap.Int64("owner", owner),
			zap.String("inbox_id", entry.ID),
			zap.Float64("confidence", c.Confidence),
		)
		return decided(reply), nil
	}

	it, err := d.route(ctx, owner, entry, c)
	if err != nil {
		return Reply{}, err
	}
	reply.Item = it
	reply.Message = fmt.Sprintf("Saved to %s: %s", it.Bucket, it.Title)
	return decided(reply), nil
}

// route 按分类结果建条目，并把 inbox 记录标记为已处理
func (d *Dispatcher) route(ctx context.Context, owner int64, entry *model.InboxEntry, c intent.Classification) (*model.Item, error) {
	it := &model.Item{
		Owner:        owner,
		Bucket:       c.Bucket,
		Title:        c.Title,
		Detail:       c.Detail,
		Status:       model.StatusActive,
		Priority:     model.PriorityNormal,
		InboxEntryID: entry.ID,
	}
	if it.Title == "" {
		it.Title = entry.RawMessage
	}
	schema := model.Schemas[c.Bucket]
	if schema.DateBearing() && c.ScheduledDate != nil {
		day := *c.ScheduledDate
		it.ScheduledDate = &day
	}
	if schema.HasNextAction {
		it.NextAction = c.NextAction
	}

	created, err := d.items.Insert(ctx, it)
	if err != nil {
		return nil, fmt.Errorf("route to %s: %w", c.Bucket, err)
	}
	metrics.IncrementItemsCreated(string(created.Bucket), "capture")

	entry.Category = c.Bucket
	entry.Confidence = c.Confidence
	entry.Processed = true
	entry.TargetBucket = created.Bucket
	entry.TargetID = created.ID
	if err := d.inbox.UpdateEntry(ctx, entry); err != nil {
		return nil, fmt.Errorf("mark processed: %w", err)
	}
	d.logger.Info("Capture routed",
		zap.Int64("owner", owner),
		zap.String("inbox_id", entry.ID),
		zap.String("bucket", string(created.Bucket)),
		zap.String("item_id", created.ID),
	)
	return created, nil
}

// Reclassify 修正分类或处理复核：删除旧的目标条目，以置信度 1.0 重新路由
func (d *Dispatcher) Reclassify(ctx context.Context, owner int64, inboxID string, bucket model.Bucket) (Reply, error) {
	if !bucket.Storable() {
		return Reply{Route: RouteButton, Message: fmt.Sprintf("Unknown bucket %q.", bucket)}, nil
	}
	entry, err := d.entry(ctx, owner, inboxID)
	if err != nil || entry == nil {
		return Reply{Route: RouteButton, Message: "Capture not found."}, err
	}

	c := intent.Classification{
		Bucket: entry.Category,
		Title:  entry.AITitle,
		Detail: entry.RawMessage,
		Raw:    entry.AIResponse,
	}
	if entry.Linked() {
		old, err := d.get(ctx, owner, entry.TargetBucket, entry.TargetID)
		if err != nil {
			return Reply{}, err
		}
		if old != nil {
			if old.Bucket == bucket {
				return Reply{Route: RouteButton, OK: true, Message: "Already in " + string(bucket) + ".", Item: old, Inbox: entry}, nil
			}
			c.Title, c.Detail = old.Title, old.Detail
			c.ScheduledDate = old.ScheduledDate
			c.NextAction = old.NextAction
			if err := d.items.Delete(ctx, owner, old.Bucket, old.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
				return Reply{}, fmt.Errorf("reclassify delete old: %w", err)
			}
		}
	}

	c = c.WithBucket(bucket)
	it, err := d.route(ctx, owner, entry, c)
	if err != nil {
		return Reply{}, err
	}
	return decided(Reply{
		Route:          RouteButton,
		OK:             true,
		Message:        fmt.Sprintf("Moved to %s: %s", it.Bucket, it.Title),
		Item:           it,
		Inbox:          entry,
		Classification: &c,
	}), nil
}

// CancelCapture 撤回一次捕获：删除关联条目和 inbox 记录
func (d *Dispatcher) CancelCapture(ctx context.Context, owner int64, inboxID string) (Reply, error) {
	entry, err := d.entry(ctx, owner, inboxID)
	if err != nil || entry == nil {
		return Reply{Route: RouteButton, Message: "Capture not found."}, err
	}
	if entry.Linked() {
		err := d.items.Delete(ctx, owner, entry.TargetBucket, entry.TargetID)
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			return Reply{}, fmt.Errorf("cancel capture item: %w", err)
		}
	}
	if err := d.inbox.DeleteEntry(ctx, owner, entry.ID); err != nil && !errors.Is(err, repository.ErrNotFound) {
		return Reply{}, fmt.Errorf("cancel capture entry: %w", err)
	}
	return Reply{Route: RouteButton, OK: true, Message: "Capture cancelled.", Inbox: entry}, nil
}

// NextReview 最早一条待复核记录及剩余数量；没有时 entry 为 nil
func (d *Dispatcher) NextReview(ctx context.Context, owner int64) (*model.InboxEntry, int, error) {
	entry, err := d.inbox.FirstUnreviewed(ctx, owner)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, err
	}
	n, err := d.inbox.CountUnreviewed(ctx, owner)
	if err != nil {
		return nil, 0, err
	}
	return entry, n, nil
}

func (d *Dispatcher) entry(ctx context.Context, owner int64, id string) (*model.InboxEntry, error) {
	e, err := d.inbox.GetEntry(ctx, owner, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil
	}
	return e, err
}
