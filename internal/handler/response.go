package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/service/router"
)

// OwnerKey AuthMiddleware 写入 gin.Context 的 owner id
const OwnerKey = "owner_id"

// 仓储不可达时统一的对外错误
const msgFailed = "the operation failed"

type button struct {
	Label string `json:"label"`
	Data  string `json:"data"`
}

type replyBody struct {
	Route     router.Route `json:"route"`
	OK        bool         `json:"ok"`
	Message   string       `json:"message"`
	Item      *model.Item  `json:"item,omitempty"`
	Successor *model.Item  `json:"successor,omitempty"`
	InboxID   string       `json:"inbox_id,omitempty"`
	Category  model.Bucket `json:"category,omitempty"`
	Awaiting  string       `json:"awaiting,omitempty"`
	Buttons   []button     `json:"buttons,omitempty"`
}

// render 结果对象转成响应体，附带传输层可直接展示的按钮
func render(r router.Reply) replyBody {
	body := replyBody{
		Route:     r.Route,
		OK:        r.OK,
		Message:   r.Message,
		Item:      r.Item,
		Successor: r.Successor,
	}
	if r.Inbox != nil {
		body.InboxID = r.Inbox.ID
		body.Category = r.Inbox.Category
	}
	if r.Awaiting != nil {
		body.Awaiting = string(r.Awaiting.Field)
	}

	switch {
	case r.Confirm != nil:
		body.Buttons = []button{
			{Label: "Delete", Data: router.Callback{Action: router.ActionConfirmDelete, Bucket: r.Confirm.Bucket, ItemID: r.Confirm.ID}.String()},
			{Label: "Keep", Data: router.Callback{Action: router.ActionCancelDelete}.String()},
		}
	case r.Route == router.RouteCapture && r.Inbox != nil:
		for _, b := range model.Buckets {
			if r.Item != nil && r.Item.Bucket == b {
				continue
			}
			body.Buttons = append(body.Buttons, button{
				Label: string(b),
				Data:  router.Callback{Action: router.ActionFix, InboxID: r.Inbox.ID, Bucket: b}.String(),
			})
		}
		body.Buttons = append(body.Buttons, button{
			Label: "Cancel",
			Data:  router.Callback{Action: router.ActionCancel, InboxID: r.Inbox.ID}.String(),
		})
	}
	return body
}

func ownerFrom(c *gin.Context) (int64, bool) {
	v, ok := c.Get(OwnerKey)
	if !ok {
		return 0, false
	}
	owner, ok := v.(int64)
	return owner, ok
}

func requireOwner(c *gin.Context, logger *zap.Logger) (int64, bool) {
	owner, ok := ownerFrom(c)
	if !ok {
		logger.Warn("Request without authenticated owner", zap.String("path", c.FullPath()))
		c.JSON(http.StatusUnauthorized, gin.H{"error": "owner not authenticated"})
		return 0, false
	}
	return owner, true
}

func fail(c *gin.Context, logger *zap.Logger, what string, err error) {
	logger.Error(what, zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msgFailed})
}
