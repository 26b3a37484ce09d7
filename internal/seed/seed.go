// Package seed 支持从 YAML 文件批量导入目标与计划项树。
// 导入走与单条创建完全相同的服务入口，校验规则一致。
package seed

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/planlog/internal/recurrence"
	"github.com/planlog/internal/service"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"
)

// File 是种子文件的顶层结构
type File struct {
	Goals []GoalSpec `yaml:"goals"`
}

// GoalSpec 描述一个目标及其计划项森林
type GoalSpec struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Category    string     `yaml:"category"`
	Horizon     string     `yaml:"horizon"`
	Start       string     `yaml:"start"`
	End         string     `yaml:"end"`
	Priority    int        `yaml:"priority"`
	Metric      string     `yaml:"metric"`
	Target      *float64   `yaml:"target"`
	MetricMode  string     `yaml:"metric_mode"`
	Items       []ItemSpec `yaml:"items"`
}

// ItemSpec 描述一个计划项，Children 可任意嵌套
type ItemSpec struct {
	Title       string     `yaml:"title"`
	Description string     `yaml:"description"`
	Type        string     `yaml:"type"`
	Due         string     `yaml:"due"`
	Effort      *int       `yaml:"effort"`
	Period      string     `yaml:"period"`
	Schedule    string     `yaml:"schedule"`
	Recurrence  *RuleSpec  `yaml:"recurrence"`
	Children    []ItemSpec `yaml:"children"`
}

// RuleSpec 是重复规则的 YAML 形式
type RuleSpec struct {
	Unit     string   `yaml:"unit"`
	Interval int      `yaml:"interval"`
	Weekdays []string `yaml:"weekdays"`
	Monthday int      `yaml:"monthday"`
	Until    string   `yaml:"until"`
}

// LoadFile 读取并解析种子文件
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return Parse(data)
}

// Parse 解析种子内容
func Parse(data []byte) (*File, error) {
	var file File
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}
	return &file, nil
}

// Apply 依次创建全部目标与计划项，返回创建的目标数与计划项数。
// 任一条目校验失败立即中止并返回错误。
func Apply(gdb *gorm.DB, file *File, now time.Time) (int, int, error) {
	goals := service.NewGoalService(gdb)
	plans := service.NewPlanService(gdb)

	// 种子里的日期与 now 同属一个时区，保证与命令行录入落在同一天
	loc := now.Location()

	var goalCount, itemCount int
	for _, spec := range file.Goals {
		start, err := parseDate(spec.Start, loc)
		if err != nil {
			return goalCount, itemCount, err
		}
		end, err := parseDate(spec.End, loc)
		if err != nil {
			return goalCount, itemCount, err
		}

		goal, err := goals.Create(service.GoalInput{
			Title:         spec.Title,
			Description:   spec.Description,
			Category:      spec.Category,
			TimeHorizon:   spec.Horizon,
			StartDate:     start,
			EndDate:       end,
			Priority:      spec.Priority,
			SuccessMetric: spec.Metric,
			TargetValue:   spec.Target,
			MetricMode:    spec.MetricMode,
		}, now)
		if err != nil {
			return goalCount, itemCount, fmt.Errorf("goal %q: %w", spec.Title, err)
		}
		goalCount++

		created, err := applyItems(plans, goal.PublicID, "", spec.Items, now)
		itemCount += created
		if err != nil {
			return goalCount, itemCount, err
		}
	}

	return goalCount, itemCount, nil
}

func applyItems(plans *service.PlanService, goalID, parentID string, specs []ItemSpec, now time.Time) (int, error) {
	var count int
	for _, spec := range specs {
		due, err := parseDate(spec.Due, now.Location())
		if err != nil {
			return count, err
		}

		rule, err := buildRule(spec.Recurrence, now.Location())
		if err != nil {
			return count, fmt.Errorf("item %q: %w", spec.Title, err)
		}

		schedule := spec.Schedule
		if schedule == "" && rule != nil {
			schedule = "recurring"
		}

		item, err := plans.Create(service.PlanItemInput{
			GoalID:       goalID,
			ParentID:     parentID,
			Title:        spec.Title,
			Description:  spec.Description,
			Type:         spec.Type,
			DueDate:      due,
			Effort:       spec.Effort,
			Period:       spec.Period,
			ScheduleType: schedule,
			Recurrence:   rule,
		}, now)
		if err != nil {
			return count, fmt.Errorf("item %q: %w", spec.Title, err)
		}
		count++

		created, err := applyItems(plans, goalID, item.PublicID, spec.Children, now)
		count += created
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

func buildRule(spec *RuleSpec, loc *time.Location) (*recurrence.Rule, error) {
	if spec == nil {
		return nil, nil
	}

	weekdays, err := recurrence.ParseWeekdays(strings.Join(spec.Weekdays, ","))
	if err != nil {
		return nil, err
	}

	until, err := parseDate(spec.Until, loc)
	if err != nil {
		return nil, err
	}

	interval := spec.Interval
	if interval == 0 {
		interval = 1
	}

	return &recurrence.Rule{
		Unit:     spec.Unit,
		Interval: interval,
		Weekdays: weekdays,
		Monthday: spec.Monthday,
		Until:    until,
	}, nil
}

func parseDate(value string, loc *time.Location) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, loc)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return &t, nil
}
