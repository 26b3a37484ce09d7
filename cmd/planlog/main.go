package main

import (
	"fmt"
	"os"
	"time"

	"github.com/planlog/internal/config"
	"github.com/planlog/internal/db"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "planlog",
	Short: "planlog - break long-horizon goals into plan items and track daily execution",
	Long: `planlog decomposes goals into a tree of plan items and tracks execution
against them day by day and week by week.

Examples:
  # Create a goal and a task due today
  planlog goal add "Read 12 books" --metric books --target 12 --metric-mode count
  planlog add "Pick reading list" --goal <goal-id>

  # See today's items and check one off
  planlog today
  planlog toggle <item-id>

  # Recurring items are expanded on demand
  planlog add "Evening run" --goal <goal-id> --schedule recurring \
      --recur-unit weekly --recur-weekdays mon,wed,fri --due 2025-01-06
  planlog week`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg := config.Load()
		if dbPath != "" {
			cfg.DatabasePath = dbPath
		}

		location = time.Local
		if cfg.Timezone != "" {
			loc, err := time.LoadLocation(cfg.Timezone)
			if err != nil {
				return fmt.Errorf("invalid PLANLOG_TZ %q: %w", cfg.Timezone, err)
			}
			location = loc
		}

		return db.Init(cfg.DatabasePath)
	},
}

var (
	dbPath string

	// location 决定"今天"的边界，所有命令统一经 now() 取当前时间
	location *time.Location
)

func init() {
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "database file path (defaults to DATABASE_PATH or planlog.db)")
}

// now 返回配置时区下的当前时间，核心操作的时间全部由这里显式传入
func now() time.Time {
	return time.Now().In(location)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
