package mq

import (
	"encoding/json"
	"time"
)

// NotifyReportPayload 已生成的报告，交给传输层发送
type NotifyReportPayload struct {
	TraceID     string          `json:"trace_id,omitempty"`
	OwnerID     int64           `json:"owner_id"`
	Kind        string          `json:"kind"`
	Date        string          `json:"date"` // YYYY-MM-DD，owner 本地日期
	Text        string          `json:"text"`
	Report      json.RawMessage `json:"report"`
	GeneratedAt time.Time       `json:"generated_at"`
}
