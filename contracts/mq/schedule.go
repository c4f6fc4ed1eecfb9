package mq

import "time"

const (
	RoutingScheduleTrigger = "schedule.trigger"
	RoutingNotifyReport    = "notify.report"
)

// ScheduleTriggerPayload 外部时钟触发一次报告生成
type ScheduleTriggerPayload struct {
	TraceID string    `json:"trace_id,omitempty"`
	OwnerID int64     `json:"owner_id"`
	Kind    string    `json:"kind"` // digest / recap / reminder
	FiredAt time.Time `json:"fired_at"`
	// Force 忽略发送小时检查
	Force bool `json:"force,omitempty"`
}
