package digest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
	"secondbrain/internal/repository"
)

type Kind string

const (
	KindDigest   Kind = "digest"
	KindRecap    Kind = "recap"
	KindReminder Kind = "reminder"
)

func ParseKind(s string) (Kind, bool) {
	switch k := Kind(s); k {
	case KindDigest, KindRecap, KindReminder:
		return k, true
	}
	return "", false
}

// settingKey 每种报告对应的发送小时设置
func (k Kind) settingKey() string {
	switch k {
	case KindRecap:
		return model.SettingRecapHour
	case KindReminder:
		return model.SettingReminderHour
	}
	return model.SettingDigestHour
}

// Calendar owner 的本地时间视图，settings.Service 实现
type Calendar interface {
	Location(ctx context.Context, owner int64) *time.Location
	LocalNow(ctx context.Context, owner int64) time.Time
	Today(ctx context.Context, owner int64) time.Time
	Hour(ctx context.Context, owner int64, key string) int
}

// Digest 早间摘要
type Digest struct {
	Owner       int64         `json:"owner"`
	Date        time.Time     `json:"date"`
	Projects    []*model.Item `json:"projects"`
	DueToday    []*model.Item `json:"due_today"`
	Overdue     []*model.Item `json:"overdue"`
	FollowUps   []*model.Item `json:"follow_ups"`
	NeedsReview int           `json:"needs_review"`
}

// Recap 晚间回顾
type Recap struct {
	Owner     int64                          `json:"owner"`
	Date      time.Time                      `json:"date"`
	Completed map[model.Bucket][]*model.Item `json:"completed"`
	Tomorrow  []*model.Item                  `json:"tomorrow"`
	Overdue   []*model.Item                  `json:"overdue"`
}

// Reminders 当天到期的提醒
type Reminders struct {
	Owner int64         `json:"owner"`
	Date  time.Time     `json:"date"`
	Due   []*model.Item `json:"due"`
}

type Service struct {
	items  repository.ItemStore
	inbox  repository.InboxStore
	cal    Calendar
	logger *zap.Logger
}

func NewService(items repository.ItemStore, inbox repository.InboxStore, cal Calendar, logger *zap.Logger) *Service {
	return &Service{items: items, inbox: inbox, cal: cal, logger: logger}
}

// ShouldSendNow owner 本地小时等于配置的发送小时
func (s *Service) ShouldSendNow(ctx context.Context, owner int64, kind Kind, now time.Time) bool {
	local := now.In(s.cal.Location(ctx, owner))
	return local.Hour() == s.cal.Hour(ctx, owner, kind.settingKey())
}

func (s *Service) Digest(ctx context.Context, owner int64) (*Digest, error) {
	today := s.cal.Today(ctx, owner)
	d := &Digest{Owner: owner, Date: today}

	projects, err := s.active(ctx, owner, model.BucketProjects)
	if err != nil {
		return nil, err
	}
	for _, p := range projects {
		if p.NextAction != "" {
			d.Projects = append(d.Projects, p)
		}
	}

	for _, b := range []model.Bucket{model.BucketAdmin, model.BucketProjects, model.BucketPeople} {
		items, err := s.active(ctx, owner, b)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			switch {
			case it.IsOverdue(today):
				d.Overdue = append(d.Overdue, it)
			case dueOn(it, today) && b == model.BucketPeople:
				d.FollowUps = append(d.FollowUps, it)
			case dueOn(it, today):
				d.DueToday = append(d.DueToday, it)
			}
		}
	}

	d.NeedsReview, err = s.inbox.CountUnreviewed(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("count review queue: %w", err)
	}
	s.logger.Info("Digest built",
		zap.Int64("owner", owner),
		zap.Int("due_today", len(d.DueToday)),
		zap.Int("overdue", len(d.Overdue)),
		zap.Int("needs_review", d.NeedsReview),
	)
	return d, nil
}

// Recap 本地零点以来完成的条目、明天的重点（明天到期或高优先级）、逾期条目
func (s *Service) Recap(ctx context.Context, owner int64) (*Recap, error) {
	local := s.cal.LocalNow(ctx, owner)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, local.Location())
	today := recurrence.Truncate(local)
	tomorrow := today.AddDate(0, 0, 1)

	r := &Recap{Owner: owner, Date: today, Completed: map[model.Bucket][]*model.Item{}}
	for _, b := range model.Buckets {
		done, err := s.items.CompletedSince(ctx, owner, b, midnight.UTC())
		if err != nil {
			return nil, fmt.Errorf("completed %s: %w", b, err)
		}
		if len(done) > 0 {
			r.Completed[b] = done
		}
	}

	for _, b := range []model.Bucket{model.BucketAdmin, model.BucketProjects, model.BucketPeople} {
		items, err := s.active(ctx, owner, b)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if it.IsOverdue(today) {
				r.Overdue = append(r.Overdue, it)
				continue
			}
			if dueOn(it, tomorrow) || it.Priority == model.PriorityHigh {
				r.Tomorrow = append(r.Tomorrow, it)
			}
		}
	}
	return r, nil
}

func (s *Service) Reminders(ctx context.Context, owner int64) (*Reminders, error) {
	today := s.cal.Today(ctx, owner)
	r := &Reminders{Owner: owner, Date: today}
	for _, b := range []model.Bucket{model.BucketAdmin, model.BucketProjects, model.BucketPeople} {
		items, err := s.active(ctx, owner, b)
		if err != nil {
			return nil, err
		}
		for _, it := range items {
			if dueOn(it, today) {
				r.Due = append(r.Due, it)
			}
		}
	}
	return r, nil
}

func (s *Service) active(ctx context.Context, owner int64, b model.Bucket) ([]*model.Item, error) {
	items, err := s.items.List(ctx, repository.ItemFilter{Owner: owner, Bucket: b, Statuses: []model.Status{model.StatusActive}})
	if err != nil {
		return nil, fmt.Errorf("list active %s: %w", b, err)
	}
	return items, nil
}

func dueOn(it *model.Item, day time.Time) bool {
	return it.ScheduledDate != nil && recurrence.Truncate(*it.ScheduledDate).Equal(day)
}
