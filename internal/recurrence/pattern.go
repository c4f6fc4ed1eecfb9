package recurrence

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// Kind 重复规则类型
type Kind int

const (
	KindDaily               Kind = iota + 1 // daily
	KindWeekly                              // weekly:<0-6>
	KindBiweekly                            // biweekly:<0-6>
	KindMonthlyDay                          // monthly:<1-31>
	KindMonthlyLast                         // monthly:last
	KindMonthlyFirstWeekday                 // monthly:first_<mon..sun>
)

// Pattern 是重复规则的结构化表示，字符串形式只在持久化层出现。
// Weekday 以周一为 0，周日为 6。
type Pattern struct {
	Kind    Kind
	Weekday int
	Day     int
}

var ErrInvalidPattern = errors.New("invalid recurrence pattern")

var weekdayAbbrev = []string{"mon", "tue", "wed", "thu", "fri", "sat", "sun"}

func Daily() Pattern                     { return Pattern{Kind: KindDaily} }
func WeeklyOn(weekday int) Pattern       { return Pattern{Kind: KindWeekly, Weekday: weekday} }
func BiweeklyOn(weekday int) Pattern     { return Pattern{Kind: KindBiweekly, Weekday: weekday} }
func MonthlyOnDay(day int) Pattern       { return Pattern{Kind: KindMonthlyDay, Day: day} }
func MonthlyLast() Pattern               { return Pattern{Kind: KindMonthlyLast} }
func MonthlyFirstWeekday(wd int) Pattern { return Pattern{Kind: KindMonthlyFirstWeekday, Weekday: wd} }

// Parse 解析持久化格式的重复规则
func Parse(raw string) (Pattern, error) {
	s := strings.ToLower(strings.TrimSpace(raw))
	if s == "daily" {
		return Daily(), nil
	}

	head, arg, ok := strings.Cut(s, ":")
	if !ok || arg == "" {
		return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
	}

	switch head {
	case "weekly", "biweekly":
		wd, err := strconv.Atoi(arg)
		if err != nil || wd < 0 || wd > 6 {
			return Pattern{}, fmt.Errorf("%w: weekday out of range in %q", ErrInvalidPattern, raw)
		}
		if head == "weekly" {
			return WeeklyOn(wd), nil
		}
		return BiweeklyOn(wd), nil

	case "monthly":
		if arg == "last" {
			return MonthlyLast(), nil
		}
		if name, found := strings.CutPrefix(arg, "first_"); found {
			for i, abbrev := range weekdayAbbrev {
				if abbrev == name {
					return MonthlyFirstWeekday(i), nil
				}
			}
			return Pattern{}, fmt.Errorf("%w: unknown weekday in %q", ErrInvalidPattern, raw)
		}
		day, err := strconv.Atoi(arg)
		if err != nil || day < 1 || day > 31 {
			return Pattern{}, fmt.Errorf("%w: day out of range in %q", ErrInvalidPattern, raw)
		}
		return MonthlyOnDay(day), nil
	}

	return Pattern{}, fmt.Errorf("%w: %q", ErrInvalidPattern, raw)
}

// String 返回持久化格式
func (p Pattern) String() string {
	switch p.Kind {
	case KindDaily:
		return "daily"
	case KindWeekly:
		return fmt.Sprintf("weekly:%d", p.Weekday)
	case KindBiweekly:
		return fmt.Sprintf("biweekly:%d", p.Weekday)
	case KindMonthlyDay:
		return fmt.Sprintf("monthly:%d", p.Day)
	case KindMonthlyLast:
		return "monthly:last"
	case KindMonthlyFirstWeekday:
		if p.Weekday >= 0 && p.Weekday < len(weekdayAbbrev) {
			return "monthly:first_" + weekdayAbbrev[p.Weekday]
		}
	}
	return ""
}

// Describe 返回给用户看的简短描述
func (p Pattern) Describe() string {
	names := []string{"Monday", "Tuesday", "Wednesday", "Thursday", "Friday", "Saturday", "Sunday"}
	switch p.Kind {
	case KindDaily:
		return "every day"
	case KindWeekly:
		return "every " + names[p.Weekday]
	case KindBiweekly:
		return "every other " + names[p.Weekday]
	case KindMonthlyDay:
		return fmt.Sprintf("monthly on day %d", p.Day)
	case KindMonthlyLast:
		return "last day of each month"
	case KindMonthlyFirstWeekday:
		return "first " + names[p.Weekday] + " of each month"
	}
	return "unknown"
}
