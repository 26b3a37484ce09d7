package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/planlog/internal/db"
	"github.com/planlog/internal/recurrence"
	"gorm.io/gorm"
)

// PlanService 负责计划项的增删改查、树结构维护与状态切换
type PlanService struct {
	db *gorm.DB
}

// PlanItemInput 定义创建计划项时可配置字段。
// GoalID/ParentID 均为对外 ID；Recurrence 仅在 ScheduleType=recurring 时允许。
type PlanItemInput struct {
	GoalID       string
	ParentID     string
	Title        string
	Description  string
	Type         string
	DueDate      *time.Time
	Effort       *int
	Period       string
	ScheduleType string
	Recurrence   *recurrence.Rule
}

// PlanItemUpdate 定义部分更新时的可选字段，nil 表示保持不变。
// Status 的写入统一走状态机，完成时间由状态机决定，调用方不能单独指定。
type PlanItemUpdate struct {
	Title       *string
	Description *string
	Type        *string
	DueDate     *time.Time
	Effort      *int
	Period      *string
	Status      *string
}

// PlanItemFilter 描述计划项列表过滤条件，零值字段不参与过滤
type PlanItemFilter struct {
	GoalID   string
	ParentID string
	Status   string
	DueFrom  *time.Time
	DueTo    *time.Time
}

// NewPlanService 构造 PlanService
func NewPlanService(gdb *gorm.DB) *PlanService {
	return &PlanService{db: gdb}
}

// List 返回满足过滤条件的计划项，按到期日和创建顺序升序排列
func (s *PlanService) List(filter PlanItemFilter) ([]db.PlanItem, error) {
	query := s.db.Model(&db.PlanItem{})

	if filter.GoalID != "" {
		var goal db.Goal
		if err := s.db.Where("public_id = ?", filter.GoalID).First(&goal).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrGoalNotFound
			}
			return nil, storageErr("find goal", err)
		}
		query = query.Where("goal_id = ?", goal.ID)
	}
	if filter.ParentID != "" {
		parent, err := s.Get(filter.ParentID)
		if err != nil {
			return nil, err
		}
		query = query.Where("parent_id = ?", parent.ID)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.DueFrom != nil {
		query = query.Where("due_date >= ?", recurrence.Truncate(*filter.DueFrom))
	}
	if filter.DueTo != nil {
		query = query.Where("due_date < ?", recurrence.Truncate(*filter.DueTo).AddDate(0, 0, 1))
	}

	var items []db.PlanItem
	if err := query.Order("due_date asc").Order("id asc").Find(&items).Error; err != nil {
		return nil, storageErr("list plan items", err)
	}
	return items, nil
}

// Create 新建计划项（一次性任务或重复模板）
func (s *PlanService) Create(input PlanItemInput, now time.Time) (*db.PlanItem, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, ErrTitleRequired
	}

	itemType, err := normalizeItemType(input.Type)
	if err != nil {
		return nil, err
	}

	if input.Effort != nil && *input.Effort <= 0 {
		return nil, fmt.Errorf("%w: effort must be a positive number of minutes", ErrValidation)
	}

	var goal db.Goal
	if err := s.db.Where("public_id = ?", input.GoalID).First(&goal).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrGoalNotFound
		}
		return nil, storageErr("find goal", err)
	}

	var parentID *uint
	if strings.TrimSpace(input.ParentID) != "" {
		var parent db.PlanItem
		if err := s.db.Where("public_id = ?", input.ParentID).First(&parent).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, ErrParentNotFound
			}
			return nil, storageErr("find parent", err)
		}
		if parent.GoalID != goal.ID {
			return nil, ErrCrossGoalParent
		}
		parentID = &parent.ID
	}

	item := db.PlanItem{
		PublicID:     uuid.NewString(),
		GoalID:       goal.ID,
		ParentID:     parentID,
		Title:        title,
		Description:  strings.TrimSpace(input.Description),
		Type:         itemType,
		Status:       db.ItemStatusTodo,
		DueDate:      input.DueDate,
		Effort:       input.Effort,
		Period:       strings.TrimSpace(input.Period),
		ScheduleType: db.ScheduleOneOff,
	}

	switch strings.TrimSpace(input.ScheduleType) {
	case "", db.ScheduleOneOff:
		if input.Recurrence != nil {
			return nil, ErrRuleForbidden
		}
	case db.ScheduleRecurring:
		if input.Recurrence == nil {
			return nil, ErrRuleRequired
		}
		anchor := now
		if input.DueDate != nil {
			anchor = *input.DueDate
		}
		if err := input.Recurrence.Validate(anchor); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrValidation, err)
		}
		item.ScheduleType = db.ScheduleRecurring
		item.RecurUnit = input.Recurrence.Unit
		item.RecurInterval = input.Recurrence.Interval
		item.RecurWeekdays = recurrence.FormatWeekdays(input.Recurrence.Weekdays)
		item.RecurMonthday = input.Recurrence.Monthday
		item.RecurUntil = input.Recurrence.Until
	default:
		return nil, fmt.Errorf("%w: unsupported schedule type %q", ErrValidation, input.ScheduleType)
	}

	if err := s.db.Create(&item).Error; err != nil {
		return nil, storageErr("create plan item", err)
	}
	return &item, nil
}

// Get 根据对外 ID 获取计划项
func (s *PlanService) Get(publicID string) (*db.PlanItem, error) {
	var item db.PlanItem
	if err := s.db.Where("public_id = ?", publicID).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrPlanItemNotFound
		}
		return nil, storageErr("get plan item", err)
	}
	return &item, nil
}

// Update 执行部分字段更新。状态变更走状态机并联动目标进度，
// 与其余字段写入同处一个事务，保证读改写的原子性。
func (s *PlanService) Update(publicID string, update PlanItemUpdate, now time.Time) (*db.PlanItem, error) {
	item, err := s.Get(publicID)
	if err != nil {
		return nil, err
	}

	if update.Title != nil {
		title := strings.TrimSpace(*update.Title)
		if title == "" {
			return nil, ErrTitleRequired
		}
		item.Title = title
	}
	if update.Description != nil {
		item.Description = strings.TrimSpace(*update.Description)
	}
	if update.Type != nil {
		itemType, err := normalizeItemType(*update.Type)
		if err != nil {
			return nil, err
		}
		item.Type = itemType
	}
	if update.DueDate != nil {
		item.DueDate = update.DueDate
		// 到期日同时是模板的展开锚点，改动后规则要对新锚点重新校验
		if item.IsTemplate() {
			rule, err := ruleOf(*item)
			if err != nil {
				return nil, err
			}
			if err := rule.Validate(*update.DueDate); err != nil {
				return nil, fmt.Errorf("%w: %w", ErrValidation, err)
			}
		}
	}
	if update.Effort != nil {
		if *update.Effort <= 0 {
			return nil, fmt.Errorf("%w: effort must be a positive number of minutes", ErrValidation)
		}
		item.Effort = update.Effort
	}
	if update.Period != nil {
		item.Period = strings.TrimSpace(*update.Period)
	}

	// 模板没有自己的状态，状态写入只对一次性任务和已物化实例开放
	if update.Status != nil && item.IsTemplate() {
		return nil, ErrTemplateUntoggleable
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if update.Status != nil {
			return s.applyTransition(tx, item, *update.Status, now)
		}
		return tx.Save(item).Error
	})
	if err != nil {
		if errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, storageErr("update plan item", err)
	}
	return item, nil
}

// Toggle 在 todo/done 之间切换计划项状态，返回更新后的记录。
// 状态与完成时间在一个事务内一次写入，目标进度联动也在同一事务内完成。
func (s *PlanService) Toggle(publicID string, now time.Time) (*db.PlanItem, error) {
	var item db.PlanItem
	err := s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("public_id = ?", publicID).First(&item).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return ErrPlanItemNotFound
			}
			return err
		}
		if item.IsTemplate() {
			return ErrTemplateUntoggleable
		}
		return s.applyTransition(tx, &item, oppositeStatus(item.Status), now)
	})
	if err != nil {
		if errors.Is(err, ErrNotFound) || errors.Is(err, ErrValidation) {
			return nil, err
		}
		return nil, storageErr("toggle plan item", err)
	}
	return &item, nil
}

// applyTransition 写入状态机给出的完整下一状态，并触发目标进度联动。
// 状态未发生变化时不做任何额外写入。
func (s *PlanService) applyTransition(tx *gorm.DB, item *db.PlanItem, target string, now time.Time) error {
	prev := item.Status
	status, completion, err := transition(item.Status, item.CompletionDate, target, now)
	if err != nil {
		return err
	}

	item.Status = status
	item.CompletionDate = completion
	if err := tx.Save(item).Error; err != nil {
		return err
	}

	if prev == status {
		return nil
	}

	var goal db.Goal
	if err := tx.First(&goal, item.GoalID).Error; err != nil {
		return err
	}
	strategyFor(goal.MetricMode).Apply(&goal, *item, status == db.ItemStatusDone)
	return tx.Save(&goal).Error
}

// Attach 把 child 挂到 parent 下。parentPublicID 为空表示移到顶层。
// 跨目标挂载与形成环的挂载都会被拒绝且不产生任何写入。
func (s *PlanService) Attach(childPublicID, parentPublicID string) error {
	child, err := s.Get(childPublicID)
	if err != nil {
		return err
	}

	if strings.TrimSpace(parentPublicID) == "" {
		child.ParentID = nil
		if err := s.db.Save(child).Error; err != nil {
			return storageErr("detach plan item", err)
		}
		return nil
	}

	var parent db.PlanItem
	if err := s.db.Where("public_id = ?", parentPublicID).First(&parent).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrParentNotFound
		}
		return storageErr("find parent", err)
	}

	if parent.GoalID != child.GoalID {
		return ErrCrossGoalParent
	}
	if parent.ID == child.ID {
		return ErrCyclicParent
	}

	// 沿 parent 链向上走，child 出现在链上即会成环
	index, err := s.goalItemIndex(child.GoalID)
	if err != nil {
		return err
	}
	for cursor := &parent; cursor.ParentID != nil; {
		next, ok := index[*cursor.ParentID]
		if !ok {
			break
		}
		if next.ID == child.ID {
			return ErrCyclicParent
		}
		cursor = next
	}

	child.ParentID = &parent.ID
	if err := s.db.Save(child).Error; err != nil {
		return storageErr("attach plan item", err)
	}
	return nil
}

// Descendants 返回计划项的全部后代，深度优先、父先于子。
// 每次调用都重新遍历，互不共享游标。
func (s *PlanService) Descendants(publicID string) ([]db.PlanItem, error) {
	root, err := s.Get(publicID)
	if err != nil {
		return nil, err
	}

	children, err := s.goalChildrenIndex(root.GoalID)
	if err != nil {
		return nil, err
	}

	var out []db.PlanItem
	var walk func(id uint)
	walk = func(id uint) {
		for _, child := range children[id] {
			out = append(out, *child)
			walk(child.ID)
		}
	}
	walk(root.ID)

	return out, nil
}

// DeleteSubtree 删除计划项及其整棵后代子树。
// 全部删除在一个事务内完成，不会留下半删除的孤儿节点。
func (s *PlanService) DeleteSubtree(publicID string) error {
	root, err := s.Get(publicID)
	if err != nil {
		return err
	}

	descendants, err := s.Descendants(publicID)
	if err != nil {
		return err
	}

	ids := make([]uint, 0, len(descendants)+1)
	ids = append(ids, root.ID)
	for _, item := range descendants {
		ids = append(ids, item.ID)
	}

	// 子树中若含重复模板，其已物化实例一并删除，不留悬空的 template_id
	if err := s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Where("id IN ? OR template_id IN ?", ids, ids).Delete(&db.PlanItem{}).Error
	}); err != nil {
		return storageErr("delete subtree", err)
	}
	return nil
}

// goalItemIndex 一次性加载目标下全部计划项并按内部 ID 建索引，
// 环检测与遍历都基于索引查找而非逐条查询。
func (s *PlanService) goalItemIndex(goalID uint) (map[uint]*db.PlanItem, error) {
	var items []db.PlanItem
	if err := s.db.Where("goal_id = ?", goalID).Find(&items).Error; err != nil {
		return nil, storageErr("load goal items", err)
	}

	index := make(map[uint]*db.PlanItem, len(items))
	for i := range items {
		index[items[i].ID] = &items[i]
	}
	return index, nil
}

func (s *PlanService) goalChildrenIndex(goalID uint) (map[uint][]*db.PlanItem, error) {
	index, err := s.goalItemIndex(goalID)
	if err != nil {
		return nil, err
	}

	children := make(map[uint][]*db.PlanItem)
	for _, item := range index {
		if item.ParentID != nil {
			children[*item.ParentID] = append(children[*item.ParentID], item)
		}
	}
	for id := range children {
		sort.Slice(children[id], func(i, j int) bool {
			return children[id][i].ID < children[id][j].ID
		})
	}
	return children, nil
}

func normalizeItemType(itemType string) (string, error) {
	itemType = strings.TrimSpace(strings.ToLower(itemType))
	if itemType == "" {
		return db.ItemTypeTask, nil
	}
	switch itemType {
	case db.ItemTypeTask, db.ItemTypeMilestone, db.ItemTypeHabit:
		return itemType, nil
	default:
		return "", fmt.Errorf("%w: unsupported item type %q", ErrValidation, itemType)
	}
}
