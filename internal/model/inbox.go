package model

import (
	"encoding/json"
	"time"
)

const (
	SourceTelegram = "telegram"
	SourceShortcut = "shortcut"
)

// InboxEntry 每条原始消息的审计记录
type InboxEntry struct {
	ID           string          `json:"id"`
	Owner        int64           `json:"owner"`
	RawMessage   string          `json:"raw_message"`
	Source       string          `json:"source"`
	Category     Bucket          `json:"category"`
	Confidence   float64         `json:"confidence"`
	AITitle      string          `json:"ai_title"`
	AIResponse   json.RawMessage `json:"ai_response,omitempty"`
	Processed    bool            `json:"processed"`
	TargetBucket Bucket          `json:"target_bucket,omitempty"`
	TargetID     string          `json:"target_id,omitempty"`
	CreatedAt    time.Time       `json:"created_at"`
}

// Linked 是否已路由到某个 bucket 条目
func (e *InboxEntry) Linked() bool {
	return e.TargetBucket != "" && e.TargetID != ""
}

type ActionType string

const (
	ActionComplete ActionType = "complete"
	ActionDelete   ActionType = "delete"
	ActionPriority ActionType = "priority"
	ActionDate     ActionType = "date"
	ActionStatus   ActionType = "status"
	ActionMove     ActionType = "move"
)

// UndoEntry 变更前的条目快照
type UndoEntry struct {
	ID         int64      `json:"id"`
	Owner      int64      `json:"owner"`
	ActionType ActionType `json:"action_type"`
	Bucket     Bucket     `json:"bucket"`
	ItemID     string     `json:"item_id"`
	Snapshot   *Item      `json:"previous_snapshot"`
	CreatedAt  time.Time  `json:"created_at"`
}

// 每个用户的设置项
const (
	SettingTimezone     = "timezone"
	SettingDigestHour   = "digest_hour"
	SettingRecapHour    = "recap_hour"
	SettingReminderHour = "reminder_hour"
)
