package main

import (
	"fmt"

	"github.com/planlog/internal/db"
	"github.com/planlog/internal/recurrence"
	"github.com/planlog/internal/service"
	"github.com/spf13/cobra"
)

var (
	itemGoal        string
	itemParent      string
	itemDescription string
	itemType        string
	itemDue         string
	itemEffort      int
	itemPeriod      string
	itemSchedule    string
	recurUnit       string
	recurInterval   int
	recurWeekdays   string
	recurMonthday   int
	recurUntil      string
	toggleDate      string
)

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Create a plan item (quick capture defaults to a one-off task due today)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		due, err := dateFlag(itemDue)
		if err != nil {
			return err
		}
		if due == nil && itemSchedule != db.ScheduleRecurring {
			// 快速录入缺省今天到期
			today := recurrence.Truncate(now())
			due = &today
		}

		var effort *int
		if cmd.Flags().Changed("effort") {
			effort = &itemEffort
		}

		var rule *recurrence.Rule
		if itemSchedule == db.ScheduleRecurring {
			weekdays, err := recurrence.ParseWeekdays(recurWeekdays)
			if err != nil {
				return err
			}
			until, err := dateFlag(recurUntil)
			if err != nil {
				return err
			}
			rule = &recurrence.Rule{
				Unit:     recurUnit,
				Interval: recurInterval,
				Weekdays: weekdays,
				Monthday: recurMonthday,
				Until:    until,
			}
		}

		item, err := service.NewPlanService(db.DB).Create(service.PlanItemInput{
			GoalID:       itemGoal,
			ParentID:     itemParent,
			Title:        args[0],
			Description:  itemDescription,
			Type:         itemType,
			DueDate:      due,
			Effort:       effort,
			Period:       itemPeriod,
			ScheduleType: itemSchedule,
			Recurrence:   rule,
		}, now())
		if err != nil {
			return err
		}

		fmt.Printf("created %s %s (%s)\n", item.Type, item.Title, item.PublicID)
		return nil
	},
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <item-id>",
	Short: "Toggle an item between todo and done",
	Long: `Toggle an item between todo and done.

For a recurring template pass --date to address one occurrence; the occurrence
is materialized as its own record on first toggle.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var item *db.PlanItem
		var err error

		if toggleDate != "" {
			date, derr := dateFlag(toggleDate)
			if derr != nil {
				return derr
			}
			item, err = service.NewScheduleService(db.DB).ToggleOccurrence(args[0], *date, now())
		} else {
			item, err = service.NewPlanService(db.DB).Toggle(args[0], now())
		}
		if err != nil {
			return err
		}

		fmt.Printf("[%s] %s\n", statusMark(item.Status), item.Title)
		return nil
	},
}

var treeCmd = &cobra.Command{
	Use:   "tree <item-id>",
	Short: "Print an item and its descendant subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		plans := service.NewPlanService(db.DB)
		root, err := plans.Get(args[0])
		if err != nil {
			return err
		}
		descendants, err := plans.Descendants(args[0])
		if err != nil {
			return err
		}

		fmt.Printf("[%s] %s (%s)\n", statusMark(root.Status), root.Title, root.PublicID)

		// 遍历结果保证父先于子，因此父节点深度总是已知的
		depths := map[uint]int{root.ID: 0}
		for _, item := range descendants {
			depth := depths[*item.ParentID] + 1
			depths[item.ID] = depth
			for i := 0; i < depth; i++ {
				fmt.Print("  ")
			}
			fmt.Printf("[%s] %s (%s)\n", statusMark(item.Status), item.Title, item.PublicID)
		}
		return nil
	},
}

var rmCmd = &cobra.Command{
	Use:   "rm <item-id>",
	Short: "Delete an item and its descendant subtree",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := service.NewPlanService(db.DB).DeleteSubtree(args[0]); err != nil {
			return err
		}
		fmt.Println("deleted")
		return nil
	},
}

var (
	listGoal   string
	listParent string
	listStatus string
)

var itemsCmd = &cobra.Command{
	Use:   "items",
	Short: "List plan items with optional filters",
	RunE: func(cmd *cobra.Command, args []string) error {
		items, err := service.NewPlanService(db.DB).List(service.PlanItemFilter{
			GoalID:   listGoal,
			ParentID: listParent,
			Status:   listStatus,
		})
		if err != nil {
			return err
		}

		for _, item := range items {
			due := "          "
			if item.DueDate != nil {
				due = item.DueDate.Format("2006-01-02")
			}
			fmt.Printf("[%s] %s  %-36s  %s\n", statusMark(item.Status), due, item.PublicID, item.Title)
		}
		return nil
	},
}

var attachCmd = &cobra.Command{
	Use:   "attach <item-id> [parent-id]",
	Short: "Move an item under a parent, or to the top level if no parent given",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		parent := ""
		if len(args) == 2 {
			parent = args[1]
		}
		if err := service.NewPlanService(db.DB).Attach(args[0], parent); err != nil {
			return err
		}
		fmt.Println("attached")
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&itemGoal, "goal", "", "goal id the item belongs to (required)")
	addCmd.Flags().StringVar(&itemParent, "parent", "", "parent item id")
	addCmd.Flags().StringVar(&itemDescription, "desc", "", "description")
	addCmd.Flags().StringVar(&itemType, "type", "", "item type: task|milestone|habit")
	addCmd.Flags().StringVar(&itemDue, "due", "", "due date YYYY-MM-DD")
	addCmd.Flags().IntVar(&itemEffort, "effort", 0, "effort estimate in minutes")
	addCmd.Flags().StringVar(&itemPeriod, "period", "", "period label, e.g. 2025-W03")
	addCmd.Flags().StringVar(&itemSchedule, "schedule", "", "schedule type: one-off|recurring")
	addCmd.Flags().StringVar(&recurUnit, "recur-unit", "", "recurrence unit: daily|weekly|monthly")
	addCmd.Flags().IntVar(&recurInterval, "recur-interval", 1, "recurrence interval")
	addCmd.Flags().StringVar(&recurWeekdays, "recur-weekdays", "", "weekday set for weekly rules, e.g. mon,wed,fri")
	addCmd.Flags().IntVar(&recurMonthday, "recur-monthday", 0, "day of month for monthly rules")
	addCmd.Flags().StringVar(&recurUntil, "recur-until", "", "rule end date YYYY-MM-DD")
	addCmd.MarkFlagRequired("goal")

	toggleCmd.Flags().StringVar(&toggleDate, "date", "", "occurrence date YYYY-MM-DD for recurring templates")

	itemsCmd.Flags().StringVar(&listGoal, "goal", "", "filter by goal id")
	itemsCmd.Flags().StringVar(&listParent, "parent", "", "filter by parent item id")
	itemsCmd.Flags().StringVar(&listStatus, "status", "", "filter by status: todo|done")

	rootCmd.AddCommand(addCmd, toggleCmd, treeCmd, rmCmd, attachCmd, itemsCmd)
}
