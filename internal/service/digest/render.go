package digest

import (
	"fmt"
	"strings"

	"secondbrain/internal/model"
)

// 纯文本渲染，供没有富文本能力的通知通道使用

func (d *Digest) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Good morning. %s\n", d.Date.Format("Monday, Jan 2"))
	section(&b, "Due today", d.DueToday)
	section(&b, "Overdue", d.Overdue)
	section(&b, "Follow up with", d.FollowUps)
	if len(d.Projects) > 0 {
		b.WriteString("\nProjects\n")
		for _, p := range d.Projects {
			fmt.Fprintf(&b, "- %s: %s\n", p.Title, p.NextAction)
		}
	}
	if d.NeedsReview > 0 {
		fmt.Fprintf(&b, "\n%d capture(s) need review.\n", d.NeedsReview)
	}
	return strings.TrimRight(b.String(), "\n")
}

func (r *Recap) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Recap for %s\n", r.Date.Format("Monday, Jan 2"))
	total := 0
	for _, bucket := range model.Buckets {
		total += len(r.Completed[bucket])
		section(&b, "Completed "+string(bucket), r.Completed[bucket])
	}
	if total == 0 {
		b.WriteString("\nNothing completed today.\n")
	}
	section(&b, "Tomorrow", r.Tomorrow)
	section(&b, "Overdue", r.Overdue)
	return strings.TrimRight(b.String(), "\n")
}

func (r *Reminders) Text() string {
	if len(r.Due) == 0 {
		return ""
	}
	var b strings.Builder
	section(&b, "Reminder, due today", r.Due)
	return strings.TrimSpace(b.String())
}

// Empty 没有内容时不发送提醒
func (r *Reminders) Empty() bool {
	return len(r.Due) == 0
}

func section(b *strings.Builder, title string, items []*model.Item) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, it := range items {
		mark := ""
		if it.Priority == model.PriorityHigh {
			mark = " (!)"
		}
		fmt.Fprintf(b, "- %s%s\n", it.Title, mark)
	}
}
