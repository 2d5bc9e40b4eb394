package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/ksred/remind-me/internal/effects"
)

// Effect sink names accepted in effects.sinks
const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkMCP   = "mcp"
)

// Config represents the main application configuration
type Config struct {
	Database  Database  `json:"database" mapstructure:"database"`
	Server    Server    `json:"server" mapstructure:"server"`
	HTTP      HTTP      `json:"http" mapstructure:"http"`
	Scheduler Scheduler `json:"scheduler" mapstructure:"scheduler"`
	Effects   Effects   `json:"effects" mapstructure:"effects"`
}

// Database represents the local SQLite store configuration
type Database struct {
	Path         string        `json:"path" mapstructure:"path"`
	BusyTimeout  time.Duration `json:"busy_timeout" mapstructure:"busy_timeout"`
	MaxOpenConns int           `json:"max_open_conns" mapstructure:"max_open_conns"`
	JournalMode  string        `json:"journal_mode" mapstructure:"journal_mode"`
	LogLevel     string        `json:"log_level" mapstructure:"log_level"`
}

// Server represents process-wide settings
type Server struct {
	LogLevel string `json:"log_level" mapstructure:"log_level"`
	Debug    bool   `json:"debug" mapstructure:"debug"`
	LogFile  string `json:"log_file" mapstructure:"log_file"`
}

// HTTP represents HTTP server configuration
type HTTP struct {
	Port         int      `json:"port" mapstructure:"port"`
	AllowOrigins []string `json:"allow_origins" mapstructure:"allow_origins"`
}

// Scheduler configures the background due sweep
type Scheduler struct {
	Enabled       bool          `json:"enabled" mapstructure:"enabled"`
	Interval      time.Duration `json:"interval" mapstructure:"interval"`
	ListBatchSize int           `json:"list_batch_size" mapstructure:"list_batch_size"`
}

// Effects selects where side effects are delivered
type Effects struct {
	Sinks []string `json:"sinks" mapstructure:"sinks"`
	Redis Redis    `json:"redis" mapstructure:"redis"`
	// CompleteHaptic is played when a task is completed
	CompleteHaptic string `json:"complete_haptic" mapstructure:"complete_haptic"`
}

// Redis represents the pub/sub effect sink configuration
type Redis struct {
	Addr     string `json:"addr" mapstructure:"addr"`
	Password string `json:"password" mapstructure:"password"`
	DB       int    `json:"db" mapstructure:"db"`
	Channel  string `json:"channel" mapstructure:"channel"`
}

// DefaultDatabasePath returns the per-user location of the task store
func DefaultDatabasePath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "remind-me", "remind-me.db")
	}
	return "remind-me.db"
}

// NewDefault returns a Config instance with default values
func NewDefault() *Config {
	return &Config{
		Database: Database{
			Path:         DefaultDatabasePath(),
			BusyTimeout:  5 * time.Second,
			MaxOpenConns: 4,
			JournalMode:  "WAL",
			LogLevel:     "silent",
		},
		Server: Server{
			LogLevel: "info",
			Debug:    false,
		},
		HTTP: HTTP{
			Port:         8082,
			AllowOrigins: []string{"http://localhost:3000", "http://localhost:5173", "tauri://localhost"},
		},
		Scheduler: Scheduler{
			Enabled:       true,
			Interval:      30 * time.Second,
			ListBatchSize: 100,
		},
		Effects: Effects{
			Sinks: []string{SinkLog},
			Redis: Redis{
				Addr:    "localhost:6379",
				Channel: "remind-me:effects",
			},
			CompleteHaptic: string(effects.HapticSelection),
		},
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Database validation
	if c.Database.Path == "" {
		return fmt.Errorf("database path is required")
	}
	if c.Database.BusyTimeout < 0 {
		return fmt.Errorf("busy timeout cannot be negative")
	}
	if c.Database.MaxOpenConns <= 0 {
		return fmt.Errorf("max open connections must be greater than 0")
	}
	validJournalModes := map[string]bool{
		"":         true,
		"DELETE":   true,
		"TRUNCATE": true,
		"PERSIST":  true,
		"MEMORY":   true,
		"WAL":      true,
		"OFF":      true,
	}
	if !validJournalModes[c.Database.JournalMode] {
		return fmt.Errorf("invalid journal mode: %s", c.Database.JournalMode)
	}
	validGormLevels := map[string]bool{
		"silent": true,
		"error":  true,
		"warn":   true,
		"info":   true,
	}
	if !validGormLevels[c.Database.LogLevel] {
		return fmt.Errorf("invalid database log level: %s", c.Database.LogLevel)
	}

	// Server validation
	validLogLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
		"fatal": true,
	}
	if !validLogLevels[c.Server.LogLevel] {
		return fmt.Errorf("invalid log level: %s", c.Server.LogLevel)
	}

	// HTTP validation
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("HTTP port must be between 1 and 65535")
	}

	// Scheduler validation
	if c.Scheduler.Enabled && c.Scheduler.Interval <= 0 {
		return fmt.Errorf("scheduler interval must be positive")
	}
	if c.Scheduler.ListBatchSize <= 0 {
		return fmt.Errorf("list batch size must be greater than 0")
	}

	// Effects validation
	for _, sink := range c.Effects.Sinks {
		switch sink {
		case SinkLog, SinkMCP:
		case SinkRedis:
			if c.Effects.Redis.Addr == "" {
				return fmt.Errorf("redis address is required when the redis sink is enabled")
			}
		default:
			return fmt.Errorf("unknown effect sink: %s", sink)
		}
	}
	if _, err := c.CompleteHapticKind(); err != nil {
		return fmt.Errorf("invalid complete haptic: %w", err)
	}

	return nil
}

// CompleteHapticKind parses the haptic played on task completion
func (c *Config) CompleteHapticKind() (effects.HapticKind, error) {
	return effects.ParseHapticKind(c.Effects.CompleteHaptic)
}

// HasSink reports whether the named effect sink is enabled
func (c *Config) HasSink(name string) bool {
	for _, sink := range c.Effects.Sinks {
		if sink == name {
			return true
		}
	}
	return false
}

// DatabaseOptions converts the database section to the options map used by database.NewDatabase
func (c *Config) DatabaseOptions() map[string]interface{} {
	return map[string]interface{}{
		"path":           c.Database.Path,
		"busy_timeout":   c.Database.BusyTimeout,
		"max_open_conns": c.Database.MaxOpenConns,
		"journal_mode":   c.Database.JournalMode,
		"log_level":      c.Database.LogLevel,
	}
}
