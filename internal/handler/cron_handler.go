package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	mqcontracts "secondbrain/contracts/mq"
	"secondbrain/internal/service/digest"
	"secondbrain/pkg/access"
	"secondbrain/pkg/trace"
)

// Publisher mq.Publisher 的发布能力
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// CronHandler 外部时钟每小时调用一次，为每个 owner 发布 schedule.trigger
type CronHandler struct {
	publisher Publisher
	owners    access.AllowList
	now       func() time.Time
	logger    *zap.Logger
}

func NewCronHandler(p Publisher, owners access.AllowList, now func() time.Time, logger *zap.Logger) *CronHandler {
	if now == nil {
		now = time.Now
	}
	return &CronHandler{publisher: p, owners: owners, now: now, logger: logger}
}

// Trigger POST /cron/:kind[?force=true]
func (h *CronHandler) Trigger(c *gin.Context) {
	kind, ok := digest.ParseKind(c.Param("kind"))
	if !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unknown report kind"})
		return
	}
	if h.publisher == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "message queue not configured"})
		return
	}
	owners := h.owners.Owners()
	if len(owners) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no owners configured"})
		return
	}

	ctx := c.Request.Context()
	force := c.Query("force") == "true"
	published := 0
	for _, owner := range owners {
		err := h.publisher.Publish(ctx, mqcontracts.RoutingScheduleTrigger, mqcontracts.ScheduleTriggerPayload{
			TraceID: trace.FromContext(ctx),
			OwnerID: owner,
			Kind:    string(kind),
			FiredAt: h.now().UTC(),
			Force:   force,
		})
		if err != nil {
			h.logger.Error("Failed to publish schedule trigger",
				zap.Int64("owner", owner),
				zap.String("kind", string(kind)),
				zap.Error(err),
			)
			continue
		}
		published++
	}

	h.logger.Info("Schedule triggers published",
		zap.String("kind", string(kind)),
		zap.Int("published", published),
		zap.Int("owners", len(owners)),
	)
	status := http.StatusAccepted
	if published == 0 {
		status = http.StatusBadGateway
	}
	c.JSON(status, gin.H{"kind": kind, "published": published})
}
