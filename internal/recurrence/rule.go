// Package recurrence 负责把重复规则展开为具体的日历日期序列。
// 该包只做纯日期运算，不依赖存储层。
package recurrence

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

// 支持的频率单位
const (
	UnitDaily   = "daily"
	UnitWeekly  = "weekly"
	UnitMonthly = "monthly"
)

var (
	// ErrInvalidRule 在规则配置非法时返回
	ErrInvalidRule = errors.New("invalid recurrence rule")
)

// Rule 描述一条重复规则，属于某个重复计划模板的值对象
// Weekdays 仅对 weekly 生效：为空时沿用锚点日期所在的星期几，
// 非空时每个周期内所有命中的星期都会生成日期
// Monthday 仅对 monthly 生效：超出当月天数时收敛到当月最后一天
// Until 为空表示开放式重复
type Rule struct {
	Unit     string
	Interval int
	Weekdays []time.Weekday
	Monthday int
	Until    *time.Time
}

// Validate 校验规则本身及其与锚点日期的关系。
// 非法规则必须在创建时被拦截，不允许流入展开逻辑。
func (r Rule) Validate(anchor time.Time) error {
	switch r.Unit {
	case UnitDaily, UnitWeekly, UnitMonthly:
	default:
		return fmt.Errorf("%w: unsupported unit %q", ErrInvalidRule, r.Unit)
	}

	if r.Interval <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidRule)
	}

	if r.Monthday < 0 || r.Monthday > 31 {
		return fmt.Errorf("%w: monthday out of range", ErrInvalidRule)
	}
	if r.Monthday > 0 && r.Unit != UnitMonthly {
		return fmt.Errorf("%w: monthday only applies to monthly rules", ErrInvalidRule)
	}

	if len(r.Weekdays) > 0 && r.Unit != UnitWeekly {
		return fmt.Errorf("%w: weekday set only applies to weekly rules", ErrInvalidRule)
	}

	if r.Until != nil && Truncate(*r.Until).Before(Truncate(anchor)) {
		return fmt.Errorf("%w: until precedes anchor date", ErrInvalidRule)
	}

	return nil
}

// ParseWeekdays 解析 "mon,wed,fri" 形式的星期集合，忽略大小写与空白。
func ParseWeekdays(csv string) ([]time.Weekday, error) {
	csv = strings.TrimSpace(csv)
	if csv == "" {
		return nil, nil
	}

	names := map[string]time.Weekday{
		"mon": time.Monday,
		"tue": time.Tuesday,
		"wed": time.Wednesday,
		"thu": time.Thursday,
		"fri": time.Friday,
		"sat": time.Saturday,
		"sun": time.Sunday,
	}

	seen := make(map[time.Weekday]bool)
	var days []time.Weekday
	for _, part := range strings.Split(csv, ",") {
		key := strings.ToLower(strings.TrimSpace(part))
		if len(key) > 3 {
			key = key[:3]
		}
		day, ok := names[key]
		if !ok {
			return nil, fmt.Errorf("%w: unknown weekday %q", ErrInvalidRule, part)
		}
		if !seen[day] {
			seen[day] = true
			days = append(days, day)
		}
	}

	sort.Slice(days, func(i, j int) bool { return days[i] < days[j] })
	return days, nil
}

// FormatWeekdays 把星期集合序列化为持久化用的 csv 形式。
func FormatWeekdays(days []time.Weekday) string {
	short := map[time.Weekday]string{
		time.Monday:    "mon",
		time.Tuesday:   "tue",
		time.Wednesday: "wed",
		time.Thursday:  "thu",
		time.Friday:    "fri",
		time.Saturday:  "sat",
		time.Sunday:    "sun",
	}

	parts := make([]string, 0, len(days))
	for _, d := range days {
		parts = append(parts, short[d])
	}
	return strings.Join(parts, ",")
}

// Truncate 将时间归一化到当日零点，统一按本地日历日比较。
func Truncate(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}
