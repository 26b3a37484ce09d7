package db

import (
	"time"

	"gorm.io/gorm"
)

// Goal 状态枚举
const (
	GoalStatusActive   = "active"
	GoalStatusDone     = "done"
	GoalStatusArchived = "archived"
)

// TimeHorizon 取值
const (
	HorizonYear    = "year"
	HorizonQuarter = "quarter"
	HorizonMonth   = "month"
	HorizonCustom  = "custom"
)

// MetricMode 决定完成计划项时 CurrentValue 的联动策略
const (
	MetricModeManual = "manual"
	MetricModeCount  = "count"
	MetricModeEffort = "effort"
)

// Goal 定义了长期目标模型
// PublicID 是对外暴露的不透明标识，内部仍使用自增主键做外键关联
// SuccessMetric/TargetValue/CurrentValue 描述可量化的成功指标，
// MetricMode 控制计划项完成事件如何回写 CurrentValue（默认 manual 不联动）
// Priority 取值 1-5，1 为最高
type Goal struct {
	gorm.Model
	PublicID      string `gorm:"uniqueIndex;size:36"`
	Title         string
	Description   string
	Category      string
	TimeHorizon   string
	StartDate     time.Time
	EndDate       *time.Time
	Status        string
	Priority      int
	SuccessMetric string
	TargetValue   *float64
	CurrentValue  float64
	MetricMode    string
	PlanItems     []PlanItem `gorm:"constraint:OnDelete:CASCADE"`
}
