package router

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
)

var ErrBadCallback = errors.New("bad callback data")

// MaxCallbackBytes Telegram callback_data 的上限。
// UUID 在回调里编码成 22 字符的 base64url，最长的 recur 回调也在限制内。
const MaxCallbackBytes = 64

type Action string

const (
	ActionFix           Action = "fix"
	ActionCancel        Action = "cancel"
	ActionDone          Action = "done"
	ActionDelete        Action = "delete"
	ActionConfirmDelete Action = "confirm_del"
	ActionCancelDelete  Action = "cancel_del"
	ActionMove          Action = "moveto"
	ActionPriority      Action = "prio"
	ActionStatus        Action = "status"
	ActionDate          Action = "date"
	ActionRecur         Action = "recur"
	ActionEditTitle     Action = "edit_title"
	ActionEditDetail    Action = "edit_desc"
	ActionUndo          Action = "undo"
)

// 参数个数（不含 action 本身）
var callbackArity = map[Action]int{
	ActionFix:           2,
	ActionCancel:        1,
	ActionDone:          2,
	ActionDelete:        2,
	ActionConfirmDelete: 2,
	ActionCancelDelete:  0,
	ActionMove:          3,
	ActionPriority:      2,
	ActionStatus:        3,
	ActionDate:          3,
	ActionRecur:         3,
	ActionEditTitle:     2,
	ActionEditDetail:    2,
	ActionUndo:          0,
}

// Callback 按钮回调数据。Date/Pattern 为 nil 表示清空。
type Callback struct {
	Action  Action
	InboxID string
	Bucket  model.Bucket
	ItemID  string
	Dest    model.Bucket
	Status  model.Status
	Date    *time.Time
	Pattern *recurrence.Pattern
}

// ParseCallback 解析按钮回调字符串，如 status:projects:<id>:paused。
// 重复规则本身带冒号，所以最后一段不再切分。
func ParseCallback(data string) (Callback, error) {
	head, rest, _ := strings.Cut(data, ":")
	action := Action(head)
	arity, ok := callbackArity[action]
	if !ok {
		return Callback{}, fmt.Errorf("%w: unknown action %q", ErrBadCallback, head)
	}

	var args []string
	if arity > 0 {
		args = strings.SplitN(rest, ":", arity)
	}
	if len(args) != arity || (arity == 0 && rest != "") {
		return Callback{}, fmt.Errorf("%w: %q", ErrBadCallback, data)
	}
	for _, a := range args {
		if a == "" {
			return Callback{}, fmt.Errorf("%w: empty field in %q", ErrBadCallback, data)
		}
	}

	cb := Callback{Action: action}
	switch action {
	case ActionFix:
		cb.InboxID = expandID(args[0])
		b, ok := model.ParseBucket(args[1])
		if !ok || !b.Storable() {
			return Callback{}, fmt.Errorf("%w: bucket %q", ErrBadCallback, args[1])
		}
		cb.Bucket = b
		return cb, nil
	case ActionCancel:
		cb.InboxID = expandID(args[0])
		return cb, nil
	case ActionCancelDelete, ActionUndo:
		return cb, nil
	}

	b, ok := model.ParseBucket(args[0])
	if !ok || !b.Storable() {
		return Callback{}, fmt.Errorf("%w: bucket %q", ErrBadCallback, args[0])
	}
	cb.Bucket, cb.ItemID = b, expandID(args[1])

	switch action {
	case ActionMove:
		dest, ok := model.ParseBucket(args[2])
		if !ok || !dest.Storable() {
			return Callback{}, fmt.Errorf("%w: bucket %q", ErrBadCallback, args[2])
		}
		cb.Dest = dest
	case ActionStatus:
		st, ok := model.ParseStatus(args[2])
		if !ok {
			return Callback{}, fmt.Errorf("%w: status %q", ErrBadCallback, args[2])
		}
		cb.Status = st
	case ActionDate:
		if args[2] != "none" {
			day, err := time.Parse("2006-01-02", args[2])
			if err != nil {
				return Callback{}, fmt.Errorf("%w: date %q", ErrBadCallback, args[2])
			}
			cb.Date = &day
		}
	case ActionRecur:
		if args[2] != "none" {
			p, err := recurrence.Parse(args[2])
			if err != nil {
				return Callback{}, fmt.Errorf("%w: %v", ErrBadCallback, err)
			}
			cb.Pattern = &p
		}
	}
	return cb, nil
}

// String 编码成回调字符串，与 ParseCallback 互逆
func (cb Callback) String() string {
	switch cb.Action {
	case ActionFix:
		return join(cb.Action, compactID(cb.InboxID), string(cb.Bucket))
	case ActionCancel:
		return join(cb.Action, compactID(cb.InboxID))
	case ActionCancelDelete, ActionUndo:
		return string(cb.Action)
	case ActionMove:
		return join(cb.Action, string(cb.Bucket), compactID(cb.ItemID), string(cb.Dest))
	case ActionStatus:
		return join(cb.Action, string(cb.Bucket), compactID(cb.ItemID), string(cb.Status))
	case ActionDate:
		v := "none"
		if cb.Date != nil {
			v = cb.Date.Format("2006-01-02")
		}
		return join(cb.Action, string(cb.Bucket), compactID(cb.ItemID), v)
	case ActionRecur:
		v := "none"
		if cb.Pattern != nil {
			v = cb.Pattern.String()
		}
		return join(cb.Action, string(cb.Bucket), compactID(cb.ItemID), v)
	}
	return join(cb.Action, string(cb.Bucket), compactID(cb.ItemID))
}

func join(a Action, parts ...string) string {
	return string(a) + ":" + strings.Join(parts, ":")
}

// compactID UUID 压成 22 字符，其它 ID 原样保留
func compactID(id string) string {
	u, err := uuid.Parse(id)
	if err != nil || len(id) != 36 {
		return id
	}
	return base64.RawURLEncoding.EncodeToString(u[:])
}

func expandID(s string) string {
	if len(s) != 22 {
		return s
	}
	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return s
	}
	u, err := uuid.FromBytes(raw)
	if err != nil {
		return s
	}
	return u.String()
}
