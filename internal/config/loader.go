package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/viper"
)

// LoadConfig loads configuration from file and environment variables
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set config type
	v.SetConfigType("yaml")

	// Set config name
	v.SetConfigName("config")

	// Add config search paths
	if configPath != "" {
		// Use explicit path if provided
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("./config")

		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".remind-me"))
		}
	}

	// Set defaults (these will be overridden by config file and env vars)
	setDefaults(v)

	// Configure environment variable handling
	v.SetEnvPrefix("REMIND_ME")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Bind specific environment variables
	bindEnvVars(v)

	// Read configuration file (if exists)
	if err := v.ReadInConfig(); err != nil {
		// It's ok if config file doesn't exist, we have defaults and env vars
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	// REDIS_URL overrides the individual redis settings
	if redisURL := os.Getenv("REDIS_URL"); redisURL != "" {
		if err := applyRedisURL(v, redisURL); err != nil {
			return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
		}
	}

	// Unmarshal configuration
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}

	// Comma-separated env values arrive as a single element
	config.Effects.Sinks = splitList(config.Effects.Sinks)
	config.HTTP.AllowOrigins = splitList(config.HTTP.AllowOrigins)

	// Validate configuration
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	d := NewDefault()

	// Database defaults
	v.SetDefault("database.path", d.Database.Path)
	v.SetDefault("database.busy_timeout", "5s")
	v.SetDefault("database.max_open_conns", d.Database.MaxOpenConns)
	v.SetDefault("database.journal_mode", d.Database.JournalMode)
	v.SetDefault("database.log_level", d.Database.LogLevel)

	// Server defaults
	v.SetDefault("server.log_level", "info")
	v.SetDefault("server.debug", false)
	v.SetDefault("server.log_file", "")

	// HTTP defaults
	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.allow_origins", d.HTTP.AllowOrigins)

	// Scheduler defaults
	v.SetDefault("scheduler.enabled", true)
	v.SetDefault("scheduler.interval", "30s")
	v.SetDefault("scheduler.list_batch_size", d.Scheduler.ListBatchSize)

	// Effects defaults
	v.SetDefault("effects.sinks", d.Effects.Sinks)
	v.SetDefault("effects.redis.addr", d.Effects.Redis.Addr)
	v.SetDefault("effects.redis.password", "")
	v.SetDefault("effects.redis.db", 0)
	v.SetDefault("effects.redis.channel", d.Effects.Redis.Channel)
	v.SetDefault("effects.complete_haptic", d.Effects.CompleteHaptic)
}

// bindEnvVars binds specific environment variables to configuration keys
func bindEnvVars(v *viper.Viper) {
	// Log level can be set via LOG_LEVEL or REMIND_ME_SERVER_LOG_LEVEL
	v.BindEnv("server.log_level", "LOG_LEVEL", "REMIND_ME_SERVER_LOG_LEVEL")

	// Debug mode
	v.BindEnv("server.debug", "DEBUG", "REMIND_ME_SERVER_DEBUG")

	// Store location can be set via REMIND_ME_DB or REMIND_ME_DATABASE_PATH
	v.BindEnv("database.path", "REMIND_ME_DB", "REMIND_ME_DATABASE_PATH")
}

// applyRedisURL sets the redis sink from a redis:// URL
func applyRedisURL(v *viper.Viper, redisURL string) error {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return err
	}

	v.Set("effects.redis.addr", opts.Addr)
	v.Set("effects.redis.password", opts.Password)
	v.Set("effects.redis.db", opts.DB)
	return nil
}

func splitList(values []string) []string {
	var out []string
	for _, value := range values {
		for _, part := range strings.Split(value, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// LoadConfigOrDefault loads configuration or returns default if loading fails
func LoadConfigOrDefault(configPath string) *Config {
	config, err := LoadConfig(configPath)
	if err != nil {
		// Log the error but return default config
		fmt.Fprintf(os.Stderr, "Warning: Failed to load config: %v. Using defaults.\n", err)
		return NewDefault()
	}
	return config
}
