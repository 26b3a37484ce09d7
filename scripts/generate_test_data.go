package main

import (
	"fmt"
	"log"
	"time"

	"github.com/planlog/internal/config"
	"github.com/planlog/internal/db"
	"github.com/planlog/internal/recurrence"
	"github.com/planlog/internal/service"
)

// 测试数据生成器
func main() {
	// 初始化数据库
	cfg := config.Load()
	if err := db.Init(cfg.DatabasePath); err != nil {
		log.Fatal("数据库初始化失败:", err)
	}

	fmt.Println("开始生成测试数据...")

	// 检查是否已存在目标
	var count int64
	db.DB.Model(&db.Goal{}).Count(&count)
	if count > 0 {
		fmt.Println("目标已存在，跳过创建")
		return
	}

	now := time.Now()
	goals := service.NewGoalService(db.DB)
	plans := service.NewPlanService(db.DB)

	// 年度阅读目标：count 策略，完成一本 +1
	target := 12.0
	reading, err := goals.Create(service.GoalInput{
		Title:         "读完 12 本书",
		Category:      "学习",
		TimeHorizon:   db.HorizonYear,
		Priority:      2,
		SuccessMetric: "books",
		TargetValue:   &target,
		MetricMode:    db.MetricModeCount,
	}, now)
	if err != nil {
		log.Fatal("创建目标失败:", err)
	}

	quarter, err := plans.Create(service.PlanItemInput{
		GoalID:  reading.PublicID,
		Title:   "第一季度读 3 本",
		Type:    db.ItemTypeMilestone,
		DueDate: datePtr(now.AddDate(0, 3, 0)),
	}, now)
	if err != nil {
		log.Fatal("创建计划项失败:", err)
	}

	for _, title := range []string{"《Go 程序设计语言》", "《SQLite 权威指南》", "《深度工作》"} {
		if _, err := plans.Create(service.PlanItemInput{
			GoalID:   reading.PublicID,
			ParentID: quarter.PublicID,
			Title:    title,
		}, now); err != nil {
			log.Fatal("创建计划项失败:", err)
		}
	}

	// 每晚阅读半小时：重复模板，周一/三/五
	anchor := recurrence.Truncate(now)
	effort := 30
	if _, err := plans.Create(service.PlanItemInput{
		GoalID:       reading.PublicID,
		Title:        "晚间阅读 30 分钟",
		Type:         db.ItemTypeHabit,
		DueDate:      &anchor,
		Effort:       &effort,
		ScheduleType: db.ScheduleRecurring,
		Recurrence: &recurrence.Rule{
			Unit:     recurrence.UnitWeekly,
			Interval: 1,
			Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		},
	}, now); err != nil {
		log.Fatal("创建重复模板失败:", err)
	}

	// 健身目标：effort 策略，完成一次累加训练分钟数
	fitnessTarget := 3000.0
	fitness, err := goals.Create(service.GoalInput{
		Title:         "累计训练 3000 分钟",
		Category:      "健康",
		TimeHorizon:   db.HorizonYear,
		Priority:      3,
		SuccessMetric: "minutes",
		TargetValue:   &fitnessTarget,
		MetricMode:    db.MetricModeEffort,
	}, now)
	if err != nil {
		log.Fatal("创建目标失败:", err)
	}

	runEffort := 45
	if _, err := plans.Create(service.PlanItemInput{
		GoalID:       fitness.PublicID,
		Title:        "晨跑 5 公里",
		Type:         db.ItemTypeHabit,
		DueDate:      &anchor,
		Effort:       &runEffort,
		ScheduleType: db.ScheduleRecurring,
		Recurrence: &recurrence.Rule{
			Unit:     recurrence.UnitDaily,
			Interval: 2,
		},
	}, now); err != nil {
		log.Fatal("创建重复模板失败:", err)
	}

	fmt.Println("测试数据生成完成！")
	fmt.Println("目标: 2 个（阅读、健身）")
	fmt.Println("计划项: 里程碑 + 子任务 + 2 个重复模板")
}

func datePtr(t time.Time) *time.Time {
	d := recurrence.Truncate(t)
	return &d
}
