package mqhandler

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	mqcontracts "secondbrain/contracts/mq"
	"secondbrain/internal/service/digest"
	"secondbrain/pkg/access"
	"secondbrain/pkg/logger"
	"secondbrain/pkg/trace"
)

// Publisher mq.Publisher 的发布能力
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload any) error
}

// ScheduleTriggerHandler 消费 schedule.trigger：到了 owner 的本地发送小时才生成报告，
// 结果以 notify.report 发布给传输层
type ScheduleTriggerHandler struct {
	reports   *digest.Service
	cal       digest.Calendar
	publisher Publisher
	owners    access.AllowList
	now       func() time.Time
	logger    *zap.Logger
}

func NewScheduleTriggerHandler(reports *digest.Service, cal digest.Calendar, p Publisher, owners access.AllowList, now func() time.Time, logger *zap.Logger) *ScheduleTriggerHandler {
	if now == nil {
		now = time.Now
	}
	return &ScheduleTriggerHandler{
		reports:   reports,
		cal:       cal,
		publisher: p,
		owners:    owners,
		now:       now,
		logger:    logger,
	}
}

// Handle 幂等：报告只读，重复投递最多导致重复通知
func (h *ScheduleTriggerHandler) Handle(ctx context.Context, raw json.RawMessage) error {
	var p mqcontracts.ScheduleTriggerPayload
	if err := json.Unmarshal(raw, &p); err != nil {
		h.logger.Error("Failed to unmarshal schedule trigger payload", zap.Error(err))
		return err
	}
	if trace.FromContext(ctx) == "" {
		ctx = trace.Ensure(ctx, p.TraceID)
	}
	log := logger.WithTrace(ctx, h.logger).With(
		zap.Int64("owner", p.OwnerID),
		zap.String("kind", p.Kind),
	)

	kind, ok := digest.ParseKind(p.Kind)
	if !ok {
		log.Warn("Unknown report kind, dropping")
		return nil
	}
	if !h.owners.Allowed(p.OwnerID) {
		log.Warn("Owner not allowed, dropping")
		return nil
	}

	firedAt := p.FiredAt
	if firedAt.IsZero() {
		firedAt = h.now()
	}
	if !p.Force && !h.reports.ShouldSendNow(ctx, p.OwnerID, kind, firedAt) {
		log.Debug("Not the owner's send hour, skipping", zap.Time("fired_at", firedAt))
		return nil
	}

	text, report, err := h.build(ctx, p.OwnerID, kind)
	if err != nil {
		log.Error("Failed to build report", zap.Error(err))
		return err
	}
	if text == "" {
		log.Debug("Nothing to report, skipping")
		return nil
	}

	body, err := json.Marshal(report)
	if err != nil {
		return fmt.Errorf("marshal %s report: %w", kind, err)
	}
	out := mqcontracts.NotifyReportPayload{
		TraceID:     trace.FromContext(ctx),
		OwnerID:     p.OwnerID,
		Kind:        string(kind),
		Date:        h.cal.Today(ctx, p.OwnerID).Format("2006-01-02"),
		Text:        text,
		Report:      body,
		GeneratedAt: h.now().UTC(),
	}
	if err := h.publisher.Publish(ctx, mqcontracts.RoutingNotifyReport, out); err != nil {
		log.Error("Failed to publish report", zap.Error(err))
		return err
	}

	log.Info("Report published", zap.String("date", out.Date), zap.Int("length", len(text)))
	return nil
}

func (h *ScheduleTriggerHandler) build(ctx context.Context, owner int64, kind digest.Kind) (string, any, error) {
	switch kind {
	case digest.KindRecap:
		r, err := h.reports.Recap(ctx, owner)
		if err != nil {
			return "", nil, err
		}
		return r.Text(), r, nil
	case digest.KindReminder:
		r, err := h.reports.Reminders(ctx, owner)
		if err != nil {
			return "", nil, err
		}
		if r.Empty() {
			return "", r, nil
		}
		return r.Text(), r, nil
	}
	d, err := h.reports.Digest(ctx, owner)
	if err != nil {
		return "", nil, err
	}
	return d.Text(), d, nil
}
