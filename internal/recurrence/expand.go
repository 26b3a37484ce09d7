package recurrence

import "time"

// OccurrencesInRange 展开规则在 [rangeStart, rangeEnd]（含两端）内的全部日期。
// 结果升序且无重复。展开始终从锚点出发而非查询窗口起点，
// 以保证间隔相位稳定（如"每 3 天"不随窗口位置漂移）。
// 调用方必须先用 Validate 拦截非法规则。
func OccurrencesInRange(r Rule, anchor, rangeStart, rangeEnd time.Time) []time.Time {
	anchor = Truncate(anchor)
	start := Truncate(rangeStart)
	limit := Truncate(rangeEnd)

	if limit.Before(start) {
		return nil
	}
	if r.Until != nil {
		if until := Truncate(*r.Until); until.Before(limit) {
			limit = until
		}
	}
	if limit.Before(anchor) {
		return nil
	}

	switch r.Unit {
	case UnitDaily:
		return stepDays(anchor, start, limit, r.Interval)
	case UnitWeekly:
		if len(r.Weekdays) == 0 {
			return stepDays(anchor, start, limit, 7*r.Interval)
		}
		return weeklyByWeekdays(r, anchor, start, limit)
	case UnitMonthly:
		return monthly(r, anchor, start, limit)
	}

	return nil
}

// stepDays 以固定天数为步长从锚点前进，覆盖 daily 与无星期集合的 weekly。
func stepDays(anchor, start, limit time.Time, step int) []time.Time {
	var out []time.Time
	for d := anchor; !d.After(limit); d = d.AddDate(0, 0, step) {
		if d.Before(start) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// weeklyByWeekdays 按周区间展开：每个命中的周内，
// 星期集合中的每一天都生成一条日期（不只是锚点所在的星期几）。
func weeklyByWeekdays(r Rule, anchor, start, limit time.Time) []time.Time {
	match := make(map[time.Weekday]bool, len(r.Weekdays))
	for _, d := range r.Weekdays {
		match[d] = true
	}

	var out []time.Time
	for ws := startOfWeek(anchor); !ws.After(limit); ws = ws.AddDate(0, 0, 7*r.Interval) {
		for off := 0; off < 7; off++ {
			d := ws.AddDate(0, 0, off)
			if d.Before(anchor) || d.Before(start) {
				continue
			}
			if d.After(limit) {
				break
			}
			if match[d.Weekday()] {
				out = append(out, d)
			}
		}
	}
	return out
}

// monthly 按月步进。目标日超过当月天数时收敛到当月最后一天，
// 绝不滚动到下个月。
func monthly(r Rule, anchor, start, limit time.Time) []time.Time {
	day := r.Monthday
	if day <= 0 {
		day = anchor.Day()
	}

	var out []time.Time
	for k := 0; ; k++ {
		months := int(anchor.Month()) - 1 + k*r.Interval
		year := anchor.Year() + months/12
		month := time.Month(months%12 + 1)

		dom := day
		if dim := daysInMonth(year, month, anchor.Location()); dom > dim {
			dom = dim
		}

		d := time.Date(year, month, dom, 0, 0, 0, 0, anchor.Location())
		if d.After(limit) {
			return out
		}
		if d.Before(anchor) || d.Before(start) {
			continue
		}
		out = append(out, d)
	}
}

// startOfWeek 返回所在 ISO 周的周一（周一为一周起点）。
func startOfWeek(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return Truncate(t).AddDate(0, 0, -offset)
}

func daysInMonth(year int, month time.Month, loc *time.Location) int {
	// 下月第 0 天即本月最后一天
	return time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()
}
