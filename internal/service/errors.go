package service

import (
	"errors"
	"fmt"
)

// 错误分类哨兵：具体错误通过 %w 包装其中之一，
// 调用方用 errors.Is 判断类别即可，无需自定义错误类型
var (
	// ErrValidation 表示输入在任何写入发生前即被拒绝
	ErrValidation = errors.New("validation failed")
	// ErrNotFound 表示引用的目标或计划项不存在
	ErrNotFound = errors.New("not found")
	// ErrConflict 表示并发写入撞上了同一实体（如重复物化同一实例）
	ErrConflict = errors.New("conflict")
	// ErrStorage 表示存储层不可用，原样向上传递，不在核心层重试
	ErrStorage = errors.New("storage failure")
)

var (
	ErrGoalNotFound     = fmt.Errorf("%w: goal", ErrNotFound)
	ErrPlanItemNotFound = fmt.Errorf("%w: plan item", ErrNotFound)
	ErrParentNotFound   = fmt.Errorf("%w: parent plan item", ErrNotFound)

	ErrTitleRequired        = fmt.Errorf("%w: title is required", ErrValidation)
	ErrInvalidPriority      = fmt.Errorf("%w: priority must be between 1 and 5", ErrValidation)
	ErrInvalidHorizon       = fmt.Errorf("%w: unsupported time horizon", ErrValidation)
	ErrTargetRequired       = fmt.Errorf("%w: success metric requires a non-negative target value", ErrValidation)
	ErrNegativeValue        = fmt.Errorf("%w: value must not be negative", ErrValidation)
	ErrInvalidStatus        = fmt.Errorf("%w: unsupported status", ErrValidation)
	ErrRuleRequired         = fmt.Errorf("%w: recurring item requires a recurrence rule", ErrValidation)
	ErrRuleForbidden        = fmt.Errorf("%w: one-off item must not carry a recurrence rule", ErrValidation)
	ErrCrossGoalParent      = fmt.Errorf("%w: parent belongs to a different goal", ErrValidation)
	ErrCyclicParent         = fmt.Errorf("%w: parent chain would form a cycle", ErrValidation)
	ErrNotRecurring         = fmt.Errorf("%w: plan item is not a recurring template", ErrValidation)
	ErrTemplateUntoggleable = fmt.Errorf("%w: recurring template itself cannot be toggled", ErrValidation)
)

// storageErr 统一包装存储层错误，保留原始错误链
func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}
