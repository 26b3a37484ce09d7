package db

import (
	"time"

	"gorm.io/gorm"
)

// PlanItem 状态枚举，后续可扩展 cancelled 等
const (
	ItemStatusTodo = "todo"
	ItemStatusDone = "done"
)

// PlanItem 类型枚举
const (
	ItemTypeTask      = "task"
	ItemTypeMilestone = "milestone"
	ItemTypeHabit     = "habit"
)

// ScheduleType 取值
const (
	ScheduleOneOff    = "one-off"
	ScheduleRecurring = "recurring"
)

// PlanItem 定义了计划项模型，隶属于某个 Goal，可通过 ParentID 形成树
// CompletionDate 与 Status 强耦合：status=done 时必须存在，否则必须为空
// Recur* 字段仅在 ScheduleType=recurring 的模板上有意义
// TemplateID+OccurrenceDate 采用唯一索引，保证同一重复模板的同一天
// 至多被物化为一条记录（并发物化时先写者胜出）
type PlanItem struct {
	gorm.Model
	PublicID       string `gorm:"uniqueIndex;size:36"`
	GoalID         uint   `gorm:"index"`
	Goal           Goal   `gorm:"constraint:OnDelete:CASCADE"`
	ParentID       *uint  `gorm:"index"`
	Title          string
	Description    string
	Type           string
	Status         string
	DueDate        *time.Time
	CompletionDate *time.Time
	Effort         *int
	Period         string
	ScheduleType   string
	RecurUnit      string
	RecurInterval  int
	RecurWeekdays  string
	RecurMonthday  int
	RecurUntil     *time.Time
	TemplateID     *uint      `gorm:"index:idx_plan_item_occurrence,unique"`
	OccurrenceDate *time.Time `gorm:"index:idx_plan_item_occurrence,unique"`
}

// TableName 重写确保唯一索引作用到 template_id + occurrence_date
func (PlanItem) TableName() string {
	return "plan_items"
}

// IsTemplate 判断该记录是否为重复计划模板（而非某一天的具体实例）
func (p PlanItem) IsTemplate() bool {
	return p.ScheduleType == ScheduleRecurring && p.TemplateID == nil
}
