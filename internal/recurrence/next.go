package recurrence

import "time"

// Truncate 把时间截断为 UTC 零点的日期
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// Date 构造一个 UTC 零点日期
func Date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// NextOccurrence 计算下一次发生日期，结果保证严格晚于 today。
// 无法解析的规则按 anchor+1 天处理，不返回错误。
func NextOccurrence(raw string, anchor, today time.Time) time.Time {
	p, err := Parse(raw)
	if err != nil {
		return advancePast(Truncate(anchor).AddDate(0, 0, 1), Truncate(today))
	}
	return p.Next(anchor, today)
}

// Next 计算 anchor 之后的下一次发生日期。
// anchor 太久远导致结果不晚于 today 时，以 today 为锚点重新计算，保持规则本身的星期/日期。
func (p Pattern) Next(anchor, today time.Time) time.Time {
	anchor = Truncate(anchor)
	today = Truncate(today)

	next := p.after(anchor)
	if !next.After(today) {
		next = p.after(today)
	}
	return advancePast(next, today)
}

func (p Pattern) after(a time.Time) time.Time {
	switch p.Kind {
	case KindDaily:
		return a.AddDate(0, 0, 1)

	case KindWeekly:
		return nextWeekday(a, p.Weekday)

	case KindBiweekly:
		next := nextWeekday(a, p.Weekday)
		if next.Sub(a) <= 7*24*time.Hour {
			next = next.AddDate(0, 0, 7)
		}
		return next

	case KindMonthlyDay:
		candidate := Date(a.Year(), a.Month(), clampDay(a.Year(), a.Month(), p.Day))
		if candidate.After(a) {
			return candidate
		}
		y, m := nextMonth(a)
		return Date(y, m, clampDay(y, m, p.Day))

	case KindMonthlyLast:
		y, m := nextMonth(a)
		return Date(y, m, daysIn(y, m))

	case KindMonthlyFirstWeekday:
		first := firstWeekdayOf(a.Year(), a.Month(), p.Weekday)
		if first.After(a) {
			return first
		}
		y, m := nextMonth(a)
		return firstWeekdayOf(y, m, p.Weekday)
	}

	return a.AddDate(0, 0, 1)
}

func advancePast(next, today time.Time) time.Time {
	for !next.After(today) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// MondayIndex 把 time.Weekday 转成周一为 0 的序号
func MondayIndex(d time.Weekday) int {
	return (int(d) + 6) % 7
}

func nextWeekday(a time.Time, weekday int) time.Time {
	ahead := (weekday - MondayIndex(a.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return a.AddDate(0, 0, ahead)
}

func nextMonth(a time.Time) (int, time.Month) {
	if a.Month() == time.December {
		return a.Year() + 1, time.January
	}
	return a.Year(), a.Month() + 1
}

func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

func clampDay(year int, month time.Month, day int) int {
	if last := daysIn(year, month); day > last {
		return last
	}
	return day
}

func firstWeekdayOf(year int, month time.Month, weekday int) time.Time {
	first := Date(year, month, 1)
	offset := (weekday - MondayIndex(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset)
}
