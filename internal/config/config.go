package config

import (
	"path/filepath"
	"time"

	"github.com/spf13/viper"

	"github.com/lingoplay/core/internal/sidestore"
)

type (
	Config struct {
		HTTP
		Global
		Database
		SideStore
		Log
		Tasks
		Snapshot
		User
		Demo
		Broker
	}

	HTTP struct {
		Port int32
		Host string
	}
	Global struct {
		ShutdownTimeoutInSeconds int
	}
	Database struct {
		Path       string
		BundlePath string
		LogSQL     bool
	}
	SideStore struct {
		Path      string
		Namespace string
	}
	Log struct {
		Level  string
		Format string // "text" or "json"
	}
	Tasks struct {
		Enabled         bool
		Workers         int
		ReleaseAfter    time.Duration
		CleanupInterval time.Duration
	}
	Snapshot struct {
		Enabled  bool
		Schedule string // Cron format: "0 3 * * *" = daily at 03:00
	}
	User struct {
		DefaultName string
	}
	Demo struct {
		Enabled bool // Broker rejects every write
	}
	Broker struct {
		URL string // When set, CLI commands go through the broker instead of the file
	}
)

// sideStorePath returns the configured side store path, defaulting to a
// file next to the exercise database.
func sideStorePath(v *viper.Viper, dbPath string) string {
	if p := v.GetString("SIDESTORE_PATH"); p != "" {
		return p
	}
	return filepath.Join(filepath.Dir(dbPath), sidestore.DefaultFileName)
}

func NewConfig() *Config {
	v := viper.New()
	v.AutomaticEnv()
	v.SetDefault("port", 8188)
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("shutdown_timeout_in_seconds", 2)
	v.SetDefault("database_path", DefaultDatabasePath)
	v.SetDefault("bundle_database_path", DefaultBundleDatabasePath)
	v.SetDefault("database_log_sql", false)
	v.SetDefault("sidestore_path", "")
	v.SetDefault("sidestore_namespace", sidestore.DefaultNamespace)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "text")
	v.SetDefault("default_user_name", "default")
	v.SetDefault("demo_mode", false)
	v.SetDefault("broker_url", "")

	// Task queue defaults
	v.SetDefault("tasks_enabled", true)
	v.SetDefault("tasks_workers", 1)
	v.SetDefault("tasks_release_after", "10m")
	v.SetDefault("tasks_cleanup_interval", "1h")

	v.SetDefault("snapshot_enabled", false)
	v.SetDefault("snapshot_schedule", DefaultSnapshotSchedule)

	dbPath := v.GetString("DATABASE_PATH")

	return &Config{
		HTTP: HTTP{
			Port: v.GetInt32("PORT"),
			Host: v.GetString("HOST"),
		},
		Global: Global{
			ShutdownTimeoutInSeconds: v.GetInt("SHUTDOWN_TIMEOUT_IN_SECONDS"),
		},
		Database: Database{
			Path:       dbPath,
			BundlePath: v.GetString("BUNDLE_DATABASE_PATH"),
			LogSQL:     v.GetBool("DATABASE_LOG_SQL"),
		},
		SideStore: SideStore{
			Path:      sideStorePath(v, dbPath),
			Namespace: v.GetString("SIDESTORE_NAMESPACE"),
		},
		Log: Log{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
		Tasks: Tasks{
			Enabled:         v.GetBool("TASKS_ENABLED"),
			Workers:         v.GetInt("TASKS_WORKERS"),
			ReleaseAfter:    v.GetDuration("TASKS_RELEASE_AFTER"),
			CleanupInterval: v.GetDuration("TASKS_CLEANUP_INTERVAL"),
		},
		Snapshot: Snapshot{
			Enabled:  v.GetBool("SNAPSHOT_ENABLED"),
			Schedule: v.GetString("SNAPSHOT_SCHEDULE"),
		},
		User: User{
			DefaultName: v.GetString("DEFAULT_USER_NAME"),
		},
		Demo: Demo{
			Enabled: v.GetBool("DEMO_MODE"),
		},
		Broker: Broker{
			URL: v.GetString("BROKER_URL"),
		},
	}
}
