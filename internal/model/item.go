package model

import (
	"encoding/json"
	"strings"
	"time"

	"secondbrain/internal/recurrence"
)

type Status string

const (
	StatusActive    Status = "active"
	StatusPaused    Status = "paused" // 仅 projects
	StatusSomeday   Status = "someday"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, bool) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case StatusActive, StatusPaused, StatusSomeday, StatusCompleted:
		return st, true
	}
	return "", false
}

type Priority string

const (
	PriorityNormal Priority = "normal"
	PriorityHigh   Priority = "high"
)

// Toggle normal <-> high
func (p Priority) Toggle() Priority {
	if p == PriorityHigh {
		return PriorityNormal
	}
	return PriorityHigh
}

// Item 四个 bucket 统一的条目
type Item struct {
	ID            string              `json:"id"`
	Owner         int64               `json:"owner"`
	Bucket        Bucket              `json:"bucket"`
	Title         string              `json:"title"`
	Detail        string              `json:"detail"`
	Status        Status              `json:"status"`
	Priority      Priority            `json:"priority"`
	ScheduledDate *time.Time          `json:"scheduled_date,omitempty"`
	NextAction    string              `json:"next_action,omitempty"`
	Recurrence    *recurrence.Pattern `json:"-"`
	InboxEntryID  string              `json:"inbox_entry_id,omitempty"`
	CreatedAt     time.Time           `json:"created_at"`
	CompletedAt   *time.Time          `json:"completed_at,omitempty"`
}

// IsRecurring 由 Recurrence 推导，两者不会不一致
func (it *Item) IsRecurring() bool {
	return it.Recurrence != nil
}

// RecurrencePattern 返回持久化格式，非重复条目返回空串
func (it *Item) RecurrencePattern() string {
	if it.Recurrence == nil {
		return ""
	}
	return it.Recurrence.String()
}

// Clone 深拷贝，用于 undo 快照
func (it *Item) Clone() *Item {
	c := *it
	if it.ScheduledDate != nil {
		d := *it.ScheduledDate
		c.ScheduledDate = &d
	}
	if it.CompletedAt != nil {
		d := *it.CompletedAt
		c.CompletedAt = &d
	}
	if it.Recurrence != nil {
		p := *it.Recurrence
		c.Recurrence = &p
	}
	return &c
}

// IsOverdue 手动设置的日期早于今天即为逾期
func (it *Item) IsOverdue(today time.Time) bool {
	if it.ScheduledDate == nil || it.Status == StatusCompleted {
		return false
	}
	return it.ScheduledDate.Before(recurrence.Truncate(today))
}

// MatchesHint 模糊标题匹配：忽略大小写，任一方向的子串包含
func (it *Item) MatchesHint(hint string) bool {
	h := strings.ToLower(strings.TrimSpace(hint))
	title := strings.ToLower(strings.TrimSpace(it.Title))
	if h == "" || title == "" {
		return false
	}
	return strings.Contains(title, h) || strings.Contains(h, title)
}

type itemJSON struct {
	*itemAlias
	IsRecurring       bool   `json:"is_recurring"`
	RecurrencePattern string `json:"recurrence_pattern,omitempty"`
}

type itemAlias Item

// MarshalJSON 把重复规则展开成 is_recurring + recurrence_pattern 两个字段
func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemJSON{
		itemAlias:         (*itemAlias)(&it),
		IsRecurring:       it.IsRecurring(),
		RecurrencePattern: it.RecurrencePattern(),
	})
}

func (it *Item) UnmarshalJSON(data []byte) error {
	aux := itemJSON{itemAlias: (*itemAlias)(it)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	it.Recurrence = nil
	if aux.IsRecurring && aux.RecurrencePattern != "" {
		p, err := recurrence.Parse(aux.RecurrencePattern)
		if err != nil {
			return err
		}
		it.Recurrence = &p
	}
	return nil
}
