package main

import (
	"fmt"
	"time"

	"github.com/planlog/internal/db"
	"github.com/planlog/internal/recurrence"
	"github.com/planlog/internal/seed"
	"github.com/planlog/internal/service"
	"github.com/spf13/cobra"
)

var (
	windowGoal string
	weekOffset int
)

var todayCmd = &cobra.Command{
	Use:   "today",
	Short: "Show items due today",
	RunE: func(cmd *cobra.Command, args []string) error {
		day := recurrence.Truncate(now())
		return printWindow(windowGoal, day, day)
	},
}

var weekCmd = &cobra.Command{
	Use:   "week",
	Short: "Show items due in the current week (Monday start)",
	RunE: func(cmd *cobra.Command, args []string) error {
		start := weekStart(now()).AddDate(0, 0, 7*weekOffset)
		end := start.AddDate(0, 0, 6)
		fmt.Printf("week of %s\n", start.Format("2006-01-02"))
		return printWindow(windowGoal, start, end)
	},
}

var seedCmd = &cobra.Command{
	Use:   "seed <file.yaml>",
	Short: "Import goals and plan items from a YAML file",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, err := seed.LoadFile(args[0])
		if err != nil {
			return err
		}
		goals, items, err := seed.Apply(db.DB, file, now())
		if err != nil {
			return err
		}
		fmt.Printf("imported %d goals, %d plan items\n", goals, items)
		return nil
	},
}

func init() {
	todayCmd.Flags().StringVar(&windowGoal, "goal", "", "restrict to one goal id")
	weekCmd.Flags().StringVar(&windowGoal, "goal", "", "restrict to one goal id")
	weekCmd.Flags().IntVar(&weekOffset, "offset", 0, "week offset, e.g. -1 for last week")

	rootCmd.AddCommand(todayCmd, weekCmd, seedCmd)
}

func printWindow(goalID string, start, end time.Time) error {
	schedules := service.NewScheduleService(db.DB)

	items, err := schedules.QueryWindow(goalID, start, end)
	if err != nil {
		return err
	}

	var done, todo int
	for _, entry := range items {
		if entry.Item.Status == db.ItemStatusDone {
			done++
		} else {
			todo++
		}
	}
	fmt.Printf("todo %d / done %d\n", todo, done)

	for _, entry := range items {
		due := "          "
		if entry.Item.DueDate != nil {
			due = entry.Item.DueDate.Format("2006-01-02")
		}
		marker := " "
		if entry.Virtual {
			// 虚拟实例：用模板 ID 加 --date 寻址，首次 toggle 时才会落库
			marker = "~"
		}
		fmt.Printf("[%s]%s %s  %-36s  %s", statusMark(entry.Item.Status), marker, due, entry.Item.PublicID, entry.Item.Title)
		if entry.Item.Goal.Title != "" {
			fmt.Printf("  (%s)", entry.Item.Goal.Title)
		}
		fmt.Println()
	}
	return nil
}

// weekStart 返回所在 ISO 周的周一零点
func weekStart(t time.Time) time.Time {
	offset := (int(t.Weekday()) + 6) % 7
	return recurrence.Truncate(t).AddDate(0, 0, -offset)
}
