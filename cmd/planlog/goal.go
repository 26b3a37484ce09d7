package main

import (
	"fmt"
	"time"

	"github.com/planlog/internal/db"
	"github.com/planlog/internal/service"
	"github.com/spf13/cobra"
)

var goalCmd = &cobra.Command{
	Use:   "goal",
	Short: "Manage goals",
}

var (
	goalStatusFlag  string
	goalCategory    string
	goalHorizon     string
	goalPriority    int
	goalMetric      string
	goalTarget      float64
	goalMetricMode  string
	goalDescription string
	goalStartFlag   string
	goalEndFlag     string
)

var goalListCmd = &cobra.Command{
	Use:   "list",
	Short: "List goals ordered by priority",
	RunE: func(cmd *cobra.Command, args []string) error {
		goals, err := service.NewGoalService(db.DB).List(service.GoalFilter{Status: goalStatusFlag})
		if err != nil {
			return err
		}

		for _, goal := range goals {
			progress := "-"
			if ratio, ok := service.ProgressRatio(goal); ok {
				progress = fmt.Sprintf("%3.0f%%", ratio*100)
			}
			fmt.Printf("%-36s  p%d  %-8s  %-5s  %s\n", goal.PublicID, goal.Priority, goal.Status, progress, goal.Title)
			for _, item := range goal.PlanItems {
				fmt.Printf("    [%s] %s\n", statusMark(item.Status), item.Title)
			}
		}
		return nil
	},
}

var goalAddCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var target *float64
		if cmd.Flags().Changed("target") {
			target = &goalTarget
		}

		start, err := dateFlag(goalStartFlag)
		if err != nil {
			return err
		}
		end, err := dateFlag(goalEndFlag)
		if err != nil {
			return err
		}

		goal, err := service.NewGoalService(db.DB).Create(service.GoalInput{
			Title:         args[0],
			Description:   goalDescription,
			Category:      goalCategory,
			TimeHorizon:   goalHorizon,
			StartDate:     start,
			EndDate:       end,
			Priority:      goalPriority,
			SuccessMetric: goalMetric,
			TargetValue:   target,
			MetricMode:    goalMetricMode,
		}, now())
		if err != nil {
			return err
		}

		fmt.Printf("created goal %s (%s)\n", goal.Title, goal.PublicID)
		return nil
	},
}

var goalRmCmd = &cobra.Command{
	Use:   "rm <goal-id>",
	Short: "Delete a goal and all of its plan items",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.NewGoalService(db.DB).Delete(args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var goalProgressCmd = &cobra.Command{
	Use:   "progress <goal-id>",
	Short: "Show numeric progress for a goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ratio, ok, err := service.NewGoalService(db.DB).Progress(args[0])
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("no target value set")
			return nil
		}
		fmt.Printf("%.0f%%\n", ratio*100)
		return nil
	},
}

func init() {
	goalListCmd.Flags().StringVar(&goalStatusFlag, "status", "", "filter by status: active|done|archived")

	goalAddCmd.Flags().StringVar(&goalDescription, "desc", "", "description")
	goalAddCmd.Flags().StringVar(&goalCategory, "category", "", "category tag")
	goalAddCmd.Flags().StringVar(&goalHorizon, "horizon", "", "time horizon: year|quarter|month|custom")
	goalAddCmd.Flags().IntVar(&goalPriority, "priority", 0, "priority 1-5, 1 is highest (default 3)")
	goalAddCmd.Flags().StringVar(&goalMetric, "metric", "", "success metric label, e.g. pages")
	goalAddCmd.Flags().Float64Var(&goalTarget, "target", 0, "target value for the success metric")
	goalAddCmd.Flags().StringVar(&goalMetricMode, "metric-mode", "", "currentValue strategy: manual|count|effort")
	goalAddCmd.Flags().StringVar(&goalStartFlag, "start", "", "start date YYYY-MM-DD (default today)")
	goalAddCmd.Flags().StringVar(&goalEndFlag, "end", "", "end date YYYY-MM-DD")

	goalCmd.AddCommand(goalListCmd, goalAddCmd, goalRmCmd, goalProgressCmd)
	rootCmd.AddCommand(goalCmd)
}

func statusMark(status string) string {
	if status == db.ItemStatusDone {
		return "x"
	}
	return " "
}

// dateFlag 解析 YYYY-MM-DD 形式的命令行日期
func dateFlag(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	t, err := time.ParseInLocation("2006-01-02", value, location)
	if err != nil {
		return nil, fmt.Errorf("invalid date %q, expected YYYY-MM-DD", value)
	}
	return &t, nil
}
