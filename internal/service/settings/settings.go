package settings

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"
	_ "time/tzdata"

	"go.uber.org/zap"

	"secondbrain/internal/model"
	"secondbrain/internal/recurrence"
	"secondbrain/internal/repository"
)

var ErrInvalidSetting = errors.New("invalid setting")

type Defaults struct {
	Timezone     string
	DigestHour   int
	RecapHour    int
	ReminderHour int
}

func DefaultDefaults() Defaults {
	return Defaults{Timezone: "America/Denver", DigestHour: 7, RecapHour: 21, ReminderHour: 14}
}

func (d Defaults) value(key string) (string, bool) {
	switch key {
	case model.SettingTimezone:
		return d.Timezone, true
	case model.SettingDigestHour:
		return strconv.Itoa(d.DigestHour), true
	case model.SettingRecapHour:
		return strconv.Itoa(d.RecapHour), true
	case model.SettingReminderHour:
		return strconv.Itoa(d.ReminderHour), true
	}
	return "", false
}

// Service 每个 owner 的设置，同时也是按 owner 时区计算“今天”的时钟
type Service struct {
	store    repository.SettingsStore
	defaults Defaults
	now      func() time.Time
	logger   *zap.Logger
}

func NewService(store repository.SettingsStore, defaults Defaults, now func() time.Time, logger *zap.Logger) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, defaults: defaults, now: now, logger: logger}
}

func (s *Service) Now() time.Time {
	return s.now()
}

// Get 未设置时返回默认值
func (s *Service) Get(ctx context.Context, owner int64, key string) (string, error) {
	def, known := s.defaults.value(key)
	if !known {
		return "", fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
	v, err := s.store.GetSetting(ctx, owner, key)
	if errors.Is(err, repository.ErrNotFound) {
		return def, nil
	}
	if err != nil {
		return "", err
	}
	return v, nil
}

func (s *Service) Set(ctx context.Context, owner int64, key, value string) error {
	if _, known := s.defaults.value(key); !known {
		return fmt.Errorf("%w: unknown key %q", ErrInvalidSetting, key)
	}
	if key == model.SettingTimezone {
		if _, err := time.LoadLocation(value); err != nil {
			return fmt.Errorf("%w: timezone %q", ErrInvalidSetting, value)
		}
	} else if h, err := strconv.Atoi(value); err != nil || h < 0 || h > 23 {
		return fmt.Errorf("%w: %s must be an hour 0-23", ErrInvalidSetting, key)
	}
	return s.store.SetSetting(ctx, owner, key, value)
}

// All 已保存的值覆盖默认值
func (s *Service) All(ctx context.Context, owner int64) (map[string]string, error) {
	saved, err := s.store.AllSettings(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	for _, key := range []string{model.SettingTimezone, model.SettingDigestHour, model.SettingRecapHour, model.SettingReminderHour} {
		out[key], _ = s.defaults.value(key)
		if v, ok := saved[key]; ok {
			out[key] = v
		}
	}
	return out, nil
}

// Location 读取失败或时区非法时退回默认时区，再退回 UTC
func (s *Service) Location(ctx context.Context, owner int64) *time.Location {
	name, err := s.Get(ctx, owner, model.SettingTimezone)
	if err != nil {
		s.logger.Warn("Falling back to default timezone", zap.Int64("owner", owner), zap.Error(err))
		name = s.defaults.Timezone
	}
	if loc, err := time.LoadLocation(name); err == nil {
		return loc
	}
	if loc, err := time.LoadLocation(s.defaults.Timezone); err == nil {
		return loc
	}
	return time.UTC
}

func (s *Service) LocalNow(ctx context.Context, owner int64) time.Time {
	return s.now().In(s.Location(ctx, owner))
}

// Today owner 本地日期（UTC 零点表示）
func (s *Service) Today(ctx context.Context, owner int64) time.Time {
	return recurrence.Truncate(s.LocalNow(ctx, owner))
}

// Hour 读取小时类设置，非法值退回默认
func (s *Service) Hour(ctx context.Context, owner int64, key string) int {
	def, _ := s.defaults.value(key)
	fallback, _ := strconv.Atoi(def)
	v, err := s.Get(ctx, owner, key)
	if err != nil {
		return fallback
	}
	h, err := strconv.Atoi(v)
	if err != nil || h < 0 || h > 23 {
		return fallback
	}
	return h
}
