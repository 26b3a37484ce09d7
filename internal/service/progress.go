package service

import (
	"github.com/planlog/internal/db"
)

// ProgressStrategy 决定计划项完成/撤销完成时如何回写目标的 CurrentValue。
// 原始数据里该联动并无固定公式，因此做成按 MetricMode 选择的策略：
// manual 不联动（默认），count 按完成数累加，effort 按预估分钟数累加。
type ProgressStrategy interface {
	Apply(goal *db.Goal, item db.PlanItem, completed bool)
}

type manualProgress struct{}

func (manualProgress) Apply(*db.Goal, db.PlanItem, bool) {}

type countProgress struct{}

func (countProgress) Apply(goal *db.Goal, _ db.PlanItem, completed bool) {
	if completed {
		goal.CurrentValue++
	} else {
		goal.CurrentValue--
	}
	clampCurrentValue(goal)
}

type effortProgress struct{}

func (effortProgress) Apply(goal *db.Goal, item db.PlanItem, completed bool) {
	if item.Effort == nil {
		return
	}
	delta := float64(*item.Effort)
	if !completed {
		delta = -delta
	}
	goal.CurrentValue += delta
	clampCurrentValue(goal)
}

func clampCurrentValue(goal *db.Goal) {
	// CurrentValue 永不为负
	if goal.CurrentValue < 0 {
		goal.CurrentValue = 0
	}
}

func strategyFor(mode string) ProgressStrategy {
	switch mode {
	case db.MetricModeCount:
		return countProgress{}
	case db.MetricModeEffort:
		return effortProgress{}
	default:
		return manualProgress{}
	}
}

// ProgressRatio 计算目标的数值完成度。
// 未设置目标值（或目标值非正）时返回 ok=false 表示未定义；
// 超额完成时收敛到 1，与前台满进度条的展示口径一致。
func ProgressRatio(goal db.Goal) (float64, bool) {
	if goal.TargetValue == nil || *goal.TargetValue <= 0 {
		return 0, false
	}

	ratio := goal.CurrentValue / *goal.TargetValue
	if ratio > 1 {
		ratio = 1
	}
	if ratio < 0 {
		ratio = 0
	}
	return ratio, true
}
