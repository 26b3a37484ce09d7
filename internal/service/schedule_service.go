package service

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/planlog/internal/db"
	"github.com/planlog/internal/recurrence"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ScheduleService 负责窗口查询：合并已落库的计划项与重复模板
// 按需展开出的虚拟实例，并在首次操作虚拟实例时将其物化。
type ScheduleService struct {
	db    *gorm.DB
	plans *PlanService
}

// WindowItem 是窗口查询的结果条目。
// Virtual=true 表示该实例尚未落库，只为展示/统计而临时计算得出。
type WindowItem struct {
	Item    db.PlanItem
	Virtual bool
}

// WindowRollup 汇总窗口内的完成情况
type WindowRollup struct {
	Total int
	Done  int
	Todo  int
}

// NewScheduleService 构造 ScheduleService
func NewScheduleService(gdb *gorm.DB) *ScheduleService {
	return &ScheduleService{db: gdb, plans: NewPlanService(gdb)}
}

// QueryWindow 返回 [start, end]（含两端）内到期的全部计划项实例，
// goalPublicID 为空时不过滤目标。排序规则：todo 在前，
// 组内按到期日升序、目标优先级升序（1 最优先）。
func (s *ScheduleService) QueryWindow(goalPublicID string, start, end time.Time) ([]WindowItem, error) {
	start = recurrence.Truncate(start)
	end = recurrence.Truncate(end)
	if end.Before(start) {
		return nil, fmt.Errorf("%w: window end precedes start", ErrValidation)
	}

	var goalID uint
	if goalPublicID != "" {
		var goal db.Goal
		if err := s.db.Where("public_id = ?", goalPublicID).First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrGoalNotFound
			}
			return nil, storageErr("find goal", err)
		}
		goalID = goal.ID
	}

	// 已落库的条目：一次性任务与已物化的重复实例，模板本身不在窗口中展示
	stored := s.db.Preload("Goal").
		Where("due_date >= ? AND due_date < ?", start, end.AddDate(0, 0, 1)).
		Where("schedule_type <> ? OR template_id IS NOT NULL", db.ScheduleRecurring)
	if goalID != 0 {
		stored = stored.Where("goal_id = ?", goalID)
	}

	var items []db.PlanItem
	if err := stored.Find(&items).Error; err != nil {
		return nil, storageErr("list window items", err)
	}

	result := make([]WindowItem, 0, len(items))
	for _, item := range items {
		result = append(result, WindowItem{Item: item})
	}

	// 已物化实例按 (模板, 日期) 身份去重。单独按 occurrence_date 查询，
	// 这样即使某个实例的到期日被改到窗口之外，也不会再为同一天生成虚拟实例
	var occupied []db.PlanItem
	if err := s.db.Select("template_id", "occurrence_date").
		Where("template_id IS NOT NULL AND occurrence_date >= ? AND occurrence_date < ?", start, end.AddDate(0, 0, 1)).
		Find(&occupied).Error; err != nil {
		return nil, storageErr("list materialized occurrences", err)
	}
	materialized := make(map[occurrenceKey]bool, len(occupied))
	for _, item := range occupied {
		materialized[newOccurrenceKey(*item.TemplateID, *item.OccurrenceDate)] = true
	}

	// 重复模板按需展开，已物化的日期不再生成虚拟实例
	templates := s.db.Preload("Goal").
		Where("schedule_type = ? AND template_id IS NULL", db.ScheduleRecurring)
	if goalID != 0 {
		templates = templates.Where("goal_id = ?", goalID)
	}

	var tpls []db.PlanItem
	if err := templates.Find(&tpls).Error; err != nil {
		return nil, storageErr("list recurring templates", err)
	}

	for _, tpl := range tpls {
		rule, err := ruleOf(tpl)
		if err != nil {
			return nil, err
		}
		for _, date := range recurrence.OccurrencesInRange(rule, anchorOf(tpl), start, end) {
			if materialized[newOccurrenceKey(tpl.ID, date)] {
				continue
			}
			result = append(result, WindowItem{Item: virtualOccurrence(tpl, date), Virtual: true})
		}
	}

	sortWindow(result)
	return result, nil
}

// Rollup 统计窗口内的总数与 todo/done 数量
func (s *ScheduleService) Rollup(goalPublicID string, start, end time.Time) (WindowRollup, error) {
	items, err := s.QueryWindow(goalPublicID, start, end)
	if err != nil {
		return WindowRollup{}, err
	}

	rollup := WindowRollup{Total: len(items)}
	for _, entry := range items {
		if entry.Item.Status == db.ItemStatusDone {
			rollup.Done++
		} else {
			rollup.Todo++
		}
	}
	return rollup, nil
}

// Materialize 把重复模板在指定日期的虚拟实例落库为独立记录。
// 同一 (模板, 日期) 至多存在一条记录：并发物化时唯一索引保证先写者胜出，
// 后来者直接复用已存在的记录而不是报错。
func (s *ScheduleService) Materialize(templatePublicID string, date time.Time) (*db.PlanItem, error) {
	tpl, err := s.plans.Get(templatePublicID)
	if err != nil {
		return nil, err
	}
	if !tpl.IsTemplate() {
		return nil, ErrNotRecurring
	}

	date = recurrence.Truncate(date)
	rule, err := ruleOf(*tpl)
	if err != nil {
		return nil, err
	}
	if len(recurrence.OccurrencesInRange(rule, anchorOf(*tpl), date, date)) == 0 {
		return nil, fmt.Errorf("%w: %s is not an occurrence of this template", ErrValidation, date.Format("2006-01-02"))
	}

	record := virtualOccurrence(*tpl, date)
	record.PublicID = uuid.NewString()

	if err := s.db.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "template_id"}, {Name: "occurrence_date"}},
		DoNothing: true,
	}).Create(&record).Error; err != nil {
		return nil, storageErr("materialize occurrence", err)
	}

	// 无论是否撞上并发写入，都以库中已有记录为准
	var winner db.PlanItem
	if err := s.db.Where("template_id = ? AND occurrence_date = ?", tpl.ID, date).First(&winner).Error; err != nil {
		return nil, storageErr("reload occurrence", err)
	}
	return &winner, nil
}

// ToggleOccurrence 切换重复实例的状态，虚拟实例会先物化再切换
func (s *ScheduleService) ToggleOccurrence(templatePublicID string, date time.Time, now time.Time) (*db.PlanItem, error) {
	record, err := s.Materialize(templatePublicID, date)
	if err != nil {
		return nil, err
	}
	return s.plans.Toggle(record.PublicID, now)
}

type occurrenceKey struct {
	templateID uint
	date       string
}

func newOccurrenceKey(templateID uint, date time.Time) occurrenceKey {
	return occurrenceKey{templateID: templateID, date: date.Format("2006-01-02")}
}

// virtualOccurrence 生成某一天的实例快照：类型与重复配置镜像模板，
// 状态与完成时间归实例自己所有。
// 虚拟实例沿用模板的对外 ID——(模板, 日期) 正是它的寻址方式；
// 物化时会换成自己的新 ID。
func virtualOccurrence(tpl db.PlanItem, date time.Time) db.PlanItem {
	occ := tpl
	occ.Model = gorm.Model{}
	occ.TemplateID = &tpl.ID
	occ.OccurrenceDate = &date
	occ.DueDate = &date
	occ.Status = db.ItemStatusTodo
	occ.CompletionDate = nil
	return occ
}

// ruleOf 从模板的持久化列还原规则值对象
func ruleOf(tpl db.PlanItem) (recurrence.Rule, error) {
	weekdays, err := recurrence.ParseWeekdays(tpl.RecurWeekdays)
	if err != nil {
		return recurrence.Rule{}, fmt.Errorf("%w: %w", ErrValidation, err)
	}
	return recurrence.Rule{
		Unit:     tpl.RecurUnit,
		Interval: tpl.RecurInterval,
		Weekdays: weekdays,
		Monthday: tpl.RecurMonthday,
		Until:    tpl.RecurUntil,
	}, nil
}

// anchorOf 返回展开锚点：优先模板到期日，缺省用创建时间
func anchorOf(tpl db.PlanItem) time.Time {
	if tpl.DueDate != nil {
		return *tpl.DueDate
	}
	return tpl.CreatedAt
}

func sortWindow(items []WindowItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Item, items[j].Item
		if a.Status != b.Status {
			return a.Status != db.ItemStatusDone
		}
		ad, bd := dueOf(a), dueOf(b)
		if !ad.Equal(bd) {
			return ad.Before(bd)
		}
		if a.Goal.Priority != b.Goal.Priority {
			return a.Goal.Priority < b.Goal.Priority
		}
		return a.Title < b.Title
	})
}

func dueOf(item db.PlanItem) time.Time {
	if item.DueDate == nil {
		return time.Time{}
	}
	return recurrence.Truncate(*item.DueDate)
}
