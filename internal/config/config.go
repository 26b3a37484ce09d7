package config

import (
	"os"
	"strings"
)

// AppConfig 汇总运行所需的基础配置。
type AppConfig struct {
	DatabasePath string
	Timezone     string
}

// Load 从环境变量读取应用配置，并为缺失项提供安全的默认值。
// Timezone 为 IANA 时区名，决定"一天"的边界；为空时使用本地时区。
func Load() AppConfig {
	databasePath := strings.TrimSpace(os.Getenv("DATABASE_PATH"))
	if databasePath == "" {
		databasePath = "planlog.db"
	}

	timezone := strings.TrimSpace(os.Getenv("PLANLOG_TZ"))

	return AppConfig{
		DatabasePath: databasePath,
		Timezone:     timezone,
	}
}
