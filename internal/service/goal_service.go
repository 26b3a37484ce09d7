package service

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/planlog/internal/db"
	"gorm.io/gorm"
)

// topLevelPreview 限制目标列表里附带的顶层计划项数量
const topLevelPreview = 5

// GoalService 负责目标的增删改查与进度读取
type GoalService struct {
	db *gorm.DB
}

// GoalFilter 描述目标列表过滤条件
type GoalFilter struct {
	Status string
}

// GoalInput 定义创建目标时可配置字段
type GoalInput struct {
	Title         string
	Description   string
	Category      string
	TimeHorizon   string
	StartDate     *time.Time
	EndDate       *time.Time
	Priority      int
	SuccessMetric string
	TargetValue   *float64
	MetricMode    string
}

// GoalUpdate 定义部分更新时的可选字段，nil 表示保持不变
type GoalUpdate struct {
	Title         *string
	Description   *string
	Category      *string
	TimeHorizon   *string
	StartDate     *time.Time
	EndDate       *time.Time
	Priority      *int
	Status        *string
	SuccessMetric *string
	TargetValue   *float64
	CurrentValue  *float64
	MetricMode    *string
}

// NewGoalService 构造 GoalService
func NewGoalService(gdb *gorm.DB) *GoalService {
	return &GoalService{db: gdb}
}

// Create 新建目标。StartDate 缺省为 now，Priority 缺省为 3。
func (s *GoalService) Create(input GoalInput, now time.Time) (*db.Goal, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	priority := input.Priority
	if priority == 0 {
		priority = 3
	}
	if priority < 1 || priority > 5 {
		return nil, ErrInvalidPriority
	}

	horizon, err := normalizeHorizon(input.TimeHorizon)
	if err != nil {
		return nil, err
	}

	mode, err := normalizeMetricMode(input.MetricMode)
	if err != nil {
		return nil, err
	}

	if strings.TrimSpace(input.SuccessMetric) != "" {
		if input.TargetValue == nil || *input.TargetValue < 0 {
			return nil, ErrTargetRequired
		}
	}
	if input.TargetValue != nil && *input.TargetValue < 0 {
		return nil, ErrNegativeValue
	}

	start := now
	if input.StartDate != nil {
		start = *input.StartDate
	}

	goal := db.Goal{
		PublicID:      uuid.NewString(),
		Title:         title,
		Description:   strings.TrimSpace(input.Description),
		Category:      strings.TrimSpace(input.Category),
		TimeHorizon:   horizon,
		StartDate:     start,
		EndDate:       input.EndDate,
		Status:        db.GoalStatusActive,
		Priority:      priority,
		SuccessMetric: strings.TrimSpace(input.SuccessMetric),
		TargetValue:   input.TargetValue,
		MetricMode:    mode,
	}

	if err := s.db.Create(&goal).Error; err != nil {
		return nil, storageErr("create goal", err)
	}
	return &goal, nil
}

// List 返回目标集合，按优先级升序排列，并附带最多 5 条顶层计划项预览
func (s *GoalService) List(filter GoalFilter) ([]db.Goal, error) {
	var goals []db.Goal

	query := s.db.Model(&db.Goal{}).
		Preload("PlanItems", func(tx *gorm.DB) *gorm.DB {
			return tx.Where("parent_id IS NULL").Order("created_at asc")
		}).
		Order("priority asc").
		Order("created_at asc")

	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	if err := query.Find(&goals).Error; err != nil {
		return nil, storageErr("list goals", err)
	}

	for i := range goals {
		if len(goals[i].PlanItems) > topLevelPreview {
			goals[i].PlanItems = goals[i].PlanItems[:topLevelPreview]
		}
	}

	return goals, nil
}

// Get 根据对外 ID 获取目标
func (s *GoalService) Get(publicID string) (*db.Goal, error) {
	var goal db.Goal
	if err := s.db.Where("public_id = ?", publicID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, storageErr("get goal", err)
	}
	return &goal, nil
}

// Update 执行部分字段更新，任何校验失败都不会写入
func (s *GoalService) Update(publicID string, update GoalUpdate) (*db.Goal, error) {
	goal, err := s.Get(publicID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		goal.Title = title
	}
	if update.Description != nil {
		goal.Description = strings.TrimSpace(*update.Description)
	}
	if update.Category != nil {
		goal.Category = strings.TrimSpace(*update.Category)
	}
	if update.TimeHorizon != nil {
		horizon, err := normalizeHorizon(*update.TimeHorizon)
		if err != nil {
			return nil, err
		}
		goal.TimeHorizon = horizon
	}
	if update.StartDate != nil {
		goal.StartDate = *update.StartDate
	}
	if update.EndDate != nil {
		goal.EndDate = update.EndDate
	}
	if update.Priority != nil {
		if *update.Priority < 1 || *update.Priority > 5 {
			return nil, ErrInvalidPriority
		}
		goal.Priority = *update.Priority
	}
	if update.Status != nil {
		switch *update.Status {
		case db.GoalStatusActive, db.GoalStatusDone, db.GoalStatusArchived:
			goal.Status = *update.Status
		default:
			return nil, fmt.Errorf("%w: %q", ErrInvalidStatus, *update.Status)
		}
	}
	if update.SuccessMetric != nil {
		goal.SuccessMetric = strings.TrimSpace(*update.SuccessMetric)
	}
	if update.TargetValue != nil {
		if *update.TargetValue < 0 {
			return nil, ErrNegativeValue
		}
		goal.TargetValue = update.TargetValue
	}
	if update.CurrentValue != nil {
		if *update.CurrentValue < 0 {
			return nil, ErrNegativeValue
		}
		goal.CurrentValue = *update.CurrentValue
	}
	if update.MetricMode != nil {
		mode, err := normalizeMetricMode(*update.MetricMode)
		if err != nil {
			return nil, err
		}
		goal.MetricMode = mode
	}

	if goal.SuccessMetric != "" && goal.TargetValue == nil {
		return nil, ErrTargetRequired
	}

	if err := s.db.Save(goal).Error; err != nil {
		return nil, storageErr("update goal", err)
	}
	return goal, nil
}

// Delete 删除目标并级联删除其全部计划项。
// 整个级联在一个事务里完成，并发读者要么看到完整的旧树，要么什么都看不到。
func (s *GoalService) Delete(publicID string) error {
	goal, err := s.Get(publicID)
	if err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("goal_id = ?", goal.ID).Delete(&db.PlanItem{}).Error; err != nil {
			return err
		}
		return tx.Delete(goal).Error
	})
	if err != nil {
		return storageErr("delete goal", err)
	}
	return nil
}

// Progress 按对外 ID 读取目标的数值完成度
func (s *GoalService) Progress(publicID string) (float64, bool, error) {
	goal, err := s.Get(publicID)
	if err != nil {
		return 0, false, err
	}
	ratio, ok := ProgressRatio(*goal)
	return ratio, ok, nil
}

func normalizeHorizon(horizon string) (string, error) {
	horizon = strings.TrimSpace(strings.ToLower(horizon))
	if horizon == "" {
		return db.HorizonYear, nil
	}
	switch horizon {
	case db.HorizonYear, db.HorizonQuarter, db.HorizonMonth, db.HorizonCustom:
		return horizon, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidHorizon, horizon)
	}
}

func normalizeMetricMode(mode string) (string, error) {
	mode = strings.TrimSpace(strings.ToLower(mode))
	if mode == "" {
		return db.MetricModeManual, nil
	}
	switch mode {
	case db.MetricModeManual, db.MetricModeCount, db.MetricModeEffort:
		return mode, nil
	default:
		return "", fmt.Errorf("%w: unsupported metric mode %q", ErrValidation, mode)
	}
}
