package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/service/router"
	"secondbrain/pkg/logger"
	"secondbrain/pkg/util"
)

type CaptureHandler struct {
	router  *router.Dispatcher
	deduper *util.Deduper
	logger  *zap.Logger
}

// NewCaptureHandler deduper 可为 nil，此时不去重
func NewCaptureHandler(r *router.Dispatcher, deduper *util.Deduper, logger *zap.Logger) *CaptureHandler {
	return &CaptureHandler{router: r, deduper: deduper, logger: logger}
}

type captureRequest struct {
	Text     string `json:"text" binding:"required"`
	Source   string `json:"source"`
	UpdateID int64  `json:"update_id"`
}

// Capture POST /capture
func (h *CaptureHandler) Capture(c *gin.Context) {
	owner, ok := requireOwner(c, h.logger)
	if !ok {
		return
	}
	var req captureRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}
	switch req.Source {
	case "":
		req.Source = model.SourceTelegram
	case model.SourceTelegram, model.SourceShortcut:
	default:
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid source"})
		return
	}

	ctx := c.Request.Context()
	if req.UpdateID != 0 && !h.deduper.AcquireOnce(ctx, "update", req.UpdateID) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	log := logger.WithTrace(ctx, h.logger)
	log.Info("Capture request received",
		zap.Int64("owner", owner),
		zap.String("source", req.Source),
		zap.Int("length", len(req.Text)),
	)

	reply, err := h.router.Handle(ctx, owner, req.Text, req.Source)
	if err != nil {
		fail(c, log, "Capture failed", err)
		return
	}
	c.JSON(http.StatusOK, render(reply))
}

type callbackRequest struct {
	Data     string `json:"data" binding:"required"`
	UpdateID int64  `json:"update_id"`
}

// Callback POST /callback，按钮回调
func (h *CaptureHandler) Callback(c *gin.Context) {
	owner, ok := requireOwner(c, h.logger)
	if !ok {
		return
	}
	var req callbackRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request"})
		return
	}

	ctx := c.Request.Context()
	if req.UpdateID != 0 && !h.deduper.AcquireOnce(ctx, "update", req.UpdateID) {
		c.JSON(http.StatusOK, gin.H{"status": "duplicate"})
		return
	}

	cb, err := router.ParseCallback(req.Data)
	if err != nil {
		h.logger.Warn("Rejected callback", zap.String("data", req.Data), zap.Error(err))
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid callback data"})
		return
	}

	log := logger.WithTrace(ctx, h.logger)
	reply, err := h.router.Press(ctx, owner, cb)
	if err != nil {
		fail(c, log, "Callback failed", err)
		return
	}
	log.Info("Callback handled",
		zap.Int64("owner", owner),
		zap.String("action", string(cb.Action)),
		zap.Bool("ok", reply.OK),
	)
	c.JSON(http.StatusOK, render(reply))
}

// Undo POST /undo
func (h *CaptureHandler) Undo(c *gin.Context) {
	owner, ok := requireOwner(c, h.logger)
	if !ok {
		return
	}
	reply, err := h.router.Undo(c.Request.Context(), owner)
	if err != nil {
		fail(c, h.logger, "Undo failed", err)
		return
	}
	c.JSON(http.StatusOK, render(reply))
}

// NextReview GET /review
func (h *CaptureHandler) NextReview(c *gin.Context) {
	owner, ok := requireOwner(c, h.logger)
	if !ok {
		return
	}
	entry, remaining, err := h.router.NextReview(c.Request.Context(), owner)
	if err != nil {
		fail(c, h.logger, "Review lookup failed", err)
		return
	}
	if entry == nil {
		c.JSON(http.StatusOK, gin.H{"remaining": 0, "message": "Nothing to review."})
		return
	}

	buttons := make([]button, 0, len(model.Buckets)+1)
	for _, b := range model.Buckets {
		buttons = append(buttons, button{
			Label: string(b),
			Data:  router.Callback{Action: router.ActionFix, InboxID: entry.ID, Bucket: b}.String(),
		})
	}
	buttons = append(buttons, button{
		Label: "Discard",
		Data:  router.Callback{Action: router.ActionCancel, InboxID: entry.ID}.String(),
	})
	c.JSON(http.StatusOK, gin.H{
		"remaining": remaining,
		"entry":     entry,
		"buttons":   buttons,
	})
}
