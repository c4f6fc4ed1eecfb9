package router

import (
	"context"
	"fmt"

	"secondbrain/internal/session"
)

// Press 执行一次按钮回调
func (d *Dispatcher) Press(ctx context.Context, owner int64, cb Callback) (Reply, error) {
	switch cb.Action {
	case ActionFix:
		return d.Reclassify(ctx, owner, cb.InboxID, cb.Bucket)
	case ActionCancel:
		return d.CancelCapture(ctx, owner, cb.InboxID)
	case ActionUndo:
		return d.Undo(ctx, owner)
	case ActionCancelDelete:
		return Reply{Route: RouteButton, OK: true, Message: "Kept it."}, nil
	case ActionDelete:
		it, err := d.get(ctx, owner, cb.Bucket, cb.ItemID)
		if err != nil {
			return Reply{}, err
		}
		if it == nil {
			return Reply{Route: RouteButton, Message: "Item not found."}, nil
		}
		return Reply{
			Route:   RouteButton,
			OK:      true,
			Message: fmt.Sprintf("Delete %q?", it.Title),
			Item:    it,
			Confirm: &Target{Bucket: it.Bucket, ID: it.ID, Title: it.Title},
		}, nil
	case ActionConfirmDelete:
		return d.ConfirmDelete(ctx, owner, cb.Bucket, cb.ItemID)
	case ActionEditTitle:
		return d.AwaitEdit(ctx, owner, session.FieldTitle, cb.Bucket, cb.ItemID)
	case ActionEditDetail:
		return d.AwaitEdit(ctx, owner, session.FieldDetail, cb.Bucket, cb.ItemID)
	}

	var (
		reply Reply
		err   error
	)
	switch cb.Action {
	case ActionDone:
		out, e := d.life.Complete(ctx, owner, cb.Bucket, cb.ItemID)
		reply, err = fromOutcome(RouteButton, out), e
	case ActionMove:
		out, e := d.life.Move(ctx, owner, cb.Bucket, cb.ItemID, cb.Dest)
		reply, err = fromOutcome(RouteButton, out), e
	case ActionPriority:
		out, e := d.life.TogglePriority(ctx, owner, cb.Bucket, cb.ItemID)
		reply, err = fromOutcome(RouteButton, out), e
	case ActionStatus:
		out, e := d.life.SetStatus(ctx, owner, cb.Bucket, cb.ItemID, cb.Status)
		reply, err = fromOutcome(RouteButton, out), e
	case ActionDate:
		out, e := d.life.SetDate(ctx, owner, cb.Bucket, cb.ItemID, cb.Date)
		reply, err = fromOutcome(RouteButton, out), e
	case ActionRecur:
		out, e := d.life.SetRecurrence(ctx, owner, cb.Bucket, cb.ItemID, cb.Pattern)
		reply, err = fromOutcome(RouteButton, out), e
	default:
		return Reply{Route: RouteButton, Message: "Unknown action."}, nil
	}
	return reply, err
}
