package service

import (
	"fmt"
	"time"

	"github.com/planlog/internal/db"
)

// transition 是状态机的唯一入口：给定当前状态与目标状态，
// 一次性返回完整的下一状态（状态 + 完成时间），杜绝两个字段被
// 分开写入后出现 status=todo 却带完成时间之类的不一致。
// 请求当前状态是幂等空操作，不刷新已有时间戳。
func transition(current string, completion *time.Time, target string, now time.Time) (string, *time.Time, error) {
	switch target {
	case db.ItemStatusTodo:
		return db.ItemStatusTodo, nil, nil
	case db.ItemStatusDone:
		if current == db.ItemStatusDone && completion != nil {
			return db.ItemStatusDone, completion, nil
		}
		done := now
		return db.ItemStatusDone, &done, nil
	default:
		return "", nil, fmt.Errorf("%w: %q", ErrInvalidStatus, target)
	}
}

// oppositeStatus 返回切换操作的目标状态
func oppositeStatus(current string) string {
	if current == db.ItemStatusDone {
		return db.ItemStatusTodo
	}
	return db.ItemStatusDone
}
