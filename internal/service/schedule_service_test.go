package service

import (
	"errors"
	"testing"
	"time"

	"github.com/planlog/internal/db"
	"github.com/planlog/internal/recurrence"
)

func datePtr(y int, m time.Month, d int) *time.Time {
	t := time.Date(y, m, d, 0, 0, 0, 0, time.Local)
	return &t
}

func createWeeklyTemplate(t *testing.T, goalID string) *db.PlanItem {
	t.Helper()
	tpl, err := NewPlanService(db.DB).Create(PlanItemInput{
		GoalID:       goalID,
		Title:        "晚间阅读",
		Type:         db.ItemTypeHabit,
		DueDate:      datePtr(2025, time.January, 6), // 周一
		ScheduleType: db.ScheduleRecurring,
		Recurrence: &recurrence.Rule{
			Unit:     recurrence.UnitWeekly,
			Interval: 1,
			Weekdays: []time.Weekday{time.Monday, time.Wednesday, time.Friday},
		},
	}, testNow())
	if err != nil {
		t.Fatalf("create template returned error: %v", err)
	}
	return tpl
}

func TestQueryWindowExpandsRecurringTemplates(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	goal, _ := NewGoalService(db.DB).Create(GoalInput{Title: "阅读目标"}, testNow())
	tpl := createWeeklyTemplate(t, goal.PublicID)

	// 随后两周应展开出 6 个虚拟实例，全部落在周一/三/五
	items, err := NewScheduleService(db.DB).QueryWindow("", *datePtr(2025, time.January, 13), *datePtr(2025, time.January, 26))
	if err != nil {
		t.Fatalf("QueryWindow returned error: %v", err)
	}
	if len(items) != 6 {
		t.Fatalf("expected 6 occurrences, got %d", len(items))
	}
	for _, entry := range items {
		if !entry.Virtual {
			t.Fatal("expected untouched occurrences to stay virtual")
		}
		if entry.Item.PublicID != tpl.PublicID {
			t.Fatal("expected virtual occurrences to carry the template id")
		}
		switch entry.Item.DueDate.Weekday() {
		case time.Monday, time.Wednesday, time.Friday:
		default:
			t.Fatalf("occurrence on unexpected weekday %s", entry.Item.DueDate.Weekday())
		}
		if entry.Item.Status != db.ItemStatusTodo {
			t.Fatalf("expected virtual occurrences to start as todo, got %s", entry.Item.Status)
		}
	}

	// 模板本身不得出现在窗口里
	for _, entry := range items {
		if entry.Item.TemplateID == nil {
			t.Fatal("window leaked the recurring template itself")
		}
	}
}

func TestToggleOccurrenceMaterializesExactlyOnce(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	goal, _ := NewGoalService(db.DB).Create(GoalInput{Title: "阅读目标"}, testNow())
	tpl := createWeeklyTemplate(t, goal.PublicID)
	schedules := NewScheduleService(db.DB)

	occurrence := *datePtr(2025, time.January, 13)
	done, err := schedules.ToggleOccurrence(tpl.PublicID, occurrence, testNow())
	if err != nil {
		t.Fatalf("ToggleOccurrence returned error: %v", err)
	}
	if done.Status != db.ItemStatusDone || done.CompletionDate == nil {
		t.Fatal("expected materialized occurrence to be done with completion date")
	}
	if done.PublicID == tpl.PublicID {
		t.Fatal("materialized occurrence must get its own identity")
	}

	// 模板不受影响
	reloadedTpl, _ := NewPlanService(db.DB).Get(tpl.PublicID)
	if reloadedTpl.Status != db.ItemStatusTodo || reloadedTpl.CompletionDate != nil {
		t.Fatal("toggling an occurrence must not mutate the template")
	}

	// 重新查询同一窗口：该日期只出现一条已落库记录，没有虚拟+落库的重复
	items, err := schedules.QueryWindow("", occurrence, occurrence)
	if err != nil {
		t.Fatalf("QueryWindow returned error: %v", err)
	}
	if len(items) != 1 {
		t.Fatalf("expected exactly 1 entry for the materialized date, got %d", len(items))
	}
	if items[0].Virtual || items[0].Item.PublicID != done.PublicID {
		t.Fatal("expected the stored record to replace the virtual occurrence")
	}

	// 并发/重复物化复用已有记录而不是新建
	again, err := schedules.Materialize(tpl.PublicID, occurrence)
	if err != nil {
		t.Fatalf("Materialize returned error: %v", err)
	}
	if again.ID != done.ID {
		t.Fatal("second materialization must reuse the winning record")
	}
	if again.Status != db.ItemStatusDone {
		t.Fatal("reused record must keep its own status")
	}

	var count int64
	db.DB.Model(&db.PlanItem{}).Where("template_id IS NOT NULL").Count(&count)
	if count != 1 {
		t.Fatalf("expected a single stored occurrence, got %d", count)
	}
}

func TestMaterializeRejectsNonOccurrenceDates(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	goal, _ := NewGoalService(db.DB).Create(GoalInput{Title: "阅读目标"}, testNow())
	tpl := createWeeklyTemplate(t, goal.PublicID)
	schedules := NewScheduleService(db.DB)

	// 周二不在规则里
	if _, err := schedules.Materialize(tpl.PublicID, *datePtr(2025, time.January, 14)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error for off-rule date, got %v", err)
	}

	oneOff, _ := NewPlanService(db.DB).Create(PlanItemInput{GoalID: goal.PublicID, Title: "普通任务"}, testNow())
	if _, err := schedules.Materialize(oneOff.PublicID, *datePtr(2025, time.January, 14)); !errors.Is(err, ErrNotRecurring) {
		t.Fatalf("expected not-recurring error, got %v", err)
	}
}

func TestScenarioOneOffDueTodayRollsUpProgress(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	goals := NewGoalService(db.DB)
	plans := NewPlanService(db.DB)
	schedules := NewScheduleService(db.DB)

	goal, err := goals.Create(GoalInput{
		Title:         "写完 100 页",
		SuccessMetric: "pages",
		TargetValue:   floatPtr(100),
		MetricMode:    db.MetricModeCount,
	}, testNow())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	today := recurrence.Truncate(testNow())
	item, err := plans.Create(PlanItemInput{GoalID: goal.PublicID, Title: "今日一页", DueDate: &today}, testNow())
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	if _, err := plans.Toggle(item.PublicID, testNow()); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	items, err := schedules.QueryWindow(goal.PublicID, today, today)
	if err != nil {
		t.Fatalf("QueryWindow returned error: %v", err)
	}
	if len(items) != 1 || items[0].Item.Status != db.ItemStatusDone {
		t.Fatalf("expected the completed item in today's window, got %+v", items)
	}

	ratio, ok, err := goals.Progress(goal.PublicID)
	if err != nil || !ok {
		t.Fatalf("Progress returned %v / ok=%v", err, ok)
	}
	if ratio != 0.01 {
		t.Fatalf("expected ratio 0.01 under count strategy, got %v", ratio)
	}
}

func TestWindowOrdering(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	goals := NewGoalService(db.DB)
	plans := NewPlanService(db.DB)
	schedules := NewScheduleService(db.DB)

	urgent, _ := goals.Create(GoalInput{Title: "要紧目标", Priority: 1}, testNow())
	casual, _ := goals.Create(GoalInput{Title: "随缘目标", Priority: 5}, testNow())

	lateCasual, _ := plans.Create(PlanItemInput{GoalID: casual.PublicID, Title: "晚到期", DueDate: datePtr(2025, time.January, 10)}, testNow())
	earlyCasual, _ := plans.Create(PlanItemInput{GoalID: casual.PublicID, Title: "早到期随缘", DueDate: datePtr(2025, time.January, 8)}, testNow())
	earlyUrgent, _ := plans.Create(PlanItemInput{GoalID: urgent.PublicID, Title: "早到期要紧", DueDate: datePtr(2025, time.January, 8)}, testNow())
	finished, _ := plans.Create(PlanItemInput{GoalID: urgent.PublicID, Title: "已完成", DueDate: datePtr(2025, time.January, 7)}, testNow())
	if _, err := plans.Toggle(finished.PublicID, testNow()); err != nil {
		t.Fatalf("Toggle returned error: %v", err)
	}

	items, err := schedules.QueryWindow("", *datePtr(2025, time.January, 6), *datePtr(2025, time.January, 12))
	if err != nil {
		t.Fatalf("QueryWindow returned error: %v", err)
	}

	want := []string{earlyUrgent.PublicID, earlyCasual.PublicID, lateCasual.PublicID, finished.PublicID}
	if len(items) != len(want) {
		t.Fatalf("expected %d items, got %d", len(want), len(items))
	}
	for i, entry := range items {
		if entry.Item.PublicID != want[i] {
			t.Fatalf("position %d: expected %s, got %s", i, want[i], entry.Item.Title)
		}
	}

	rollup, err := schedules.Rollup("", *datePtr(2025, time.January, 6), *datePtr(2025, time.January, 12))
	if err != nil {
		t.Fatalf("Rollup returned error: %v", err)
	}
	if rollup.Total != 4 || rollup.Done != 1 || rollup.Todo != 3 {
		t.Fatalf("unexpected rollup: %+v", rollup)
	}
}

func TestDeleteSubtreeRemovesMaterializedOccurrences(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	goal, _ := NewGoalService(db.DB).Create(GoalInput{Title: "阅读目标"}, testNow())
	tpl := createWeeklyTemplate(t, goal.PublicID)
	schedules := NewScheduleService(db.DB)
	plans := NewPlanService(db.DB)

	occ, err := schedules.ToggleOccurrence(tpl.PublicID, *datePtr(2025, time.January, 13), testNow())
	if err != nil {
		t.Fatalf("ToggleOccurrence returned error: %v", err)
	}

	if err := plans.DeleteSubtree(tpl.PublicID); err != nil {
		t.Fatalf("DeleteSubtree returned error: %v", err)
	}

	// 已物化实例随模板一起消失，不留悬空的 template_id
	if _, err := plans.Get(occ.PublicID); !errors.Is(err, ErrPlanItemNotFound) {
		t.Fatalf("expected occurrence to be deleted with its template, got %v", err)
	}
	var count int64
	db.DB.Model(&db.PlanItem{}).Where("template_id IS NOT NULL").Count(&count)
	if count != 0 {
		t.Fatalf("expected no stored occurrences after template deletion, got %d", count)
	}

	// 窗口里也不再出现该模板的任何实例
	items, err := schedules.QueryWindow("", *datePtr(2025, time.January, 13), *datePtr(2025, time.January, 26))
	if err != nil {
		t.Fatalf("QueryWindow returned error: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("expected empty window after template deletion, got %d items", len(items))
	}
}

func TestQueryWindowRejectsInvertedRange(t *testing.T) {
	cleanup := setupTestDB(t)
	defer cleanup()

	if _, err := NewScheduleService(db.DB).QueryWindow("", *datePtr(2025, time.January, 10), *datePtr(2025, time.January, 5)); !errors.Is(err, ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
