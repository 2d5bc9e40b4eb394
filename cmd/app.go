package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/ksred/remind-me/internal/config"
	"github.com/ksred/remind-me/internal/database"
	"github.com/ksred/remind-me/internal/database/migrations"
	"github.com/ksred/remind-me/internal/effects"
	"github.com/ksred/remind-me/internal/mcp"
	"github.com/ksred/remind-me/internal/services"
	"github.com/ksred/remind-me/internal/utils"
)

// app holds the wired core shared by the mcp and http commands
type app struct {
	cfg         *config.Config
	logger      zerolog.Logger
	db          *database.Database
	dispatcher  *effects.Dispatcher
	taskService *services.TaskService
	closers     []func() error
}

// bootstrap loads configuration, opens and migrates the store, and wires the
// task service. Logs go to a file when stdioMode is set, since stdout then
// carries JSON-RPC.
func bootstrap(ctx context.Context, configPath string, stdioMode bool) (*app, error) {
	cfg, err := loadConfiguration(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger := setupLogging(cfg, stdioMode)
	logger.Info().Str("version", version).Msg("Starting remind-me")

	db, err := openStore(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}

	a := &app{
		cfg:     cfg,
		logger:  logger,
		db:      db,
		closers: []func() error{db.Close},
	}

	a.dispatcher = effects.NewDispatcher(logger)
	a.registerSinks(ctx)

	completeHaptic, err := cfg.CompleteHapticKind()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	store := database.NewTaskStore(db, logger).WithBatchSize(cfg.Scheduler.ListBatchSize)
	a.taskService = services.NewTaskService(store, a.dispatcher, logger, services.WithCompleteHaptic(completeHaptic))

	return a, nil
}

// loadConfiguration loads configuration from file or environment
func loadConfiguration(configPath string) (*config.Config, error) {
	if configPath != "" {
		// An explicit file must load
		return config.LoadConfig(configPath)
	}

	cfg := config.LoadConfigOrDefault("")
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// setupLogging configures the application logger
func setupLogging(cfg *config.Config, stdioMode bool) zerolog.Logger {
	logConfig := utils.DefaultConfig()
	if cfg.Server.Debug {
		logConfig = utils.DevelopmentConfig()
	}
	if cfg.Server.LogLevel != "" {
		logConfig.Level = cfg.Server.LogLevel
	}

	logConfig.LogFile = cfg.Server.LogFile
	if logConfig.LogFile == "" && stdioMode {
		logConfig.LogFile = utils.DefaultLogFile()
	}

	return utils.SetupGlobalLogger(logConfig)
}

// openStore connects to the task store and brings its schema up to date.
// Any migration failure is fatal: the store is closed and never served.
func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*database.Database, error) {
	logger.Info().Str("path", cfg.Database.Path).Msg("Opening task store")

	db := database.NewDatabase(cfg.DatabaseOptions())
	if err := db.Connect(); err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	report, err := db.Migrate(ctx, migrations.Catalog(), logger)
	if err != nil {
		_ = db.Close()
		if utils.IsStartupError(err) {
			return nil, fmt.Errorf("task store cannot be opened: %w", err)
		}
		return nil, fmt.Errorf("failed to migrate task store: %w", err)
	}

	logger.Info().
		Int("from_version", report.StartVersion).
		Int("to_version", report.FinalVersion).
		Ints("applied", report.Applied).
		Msg("Task store ready")

	return db, nil
}

// registerSinks attaches the configured log and redis effect channels. The
// mcp sink is attached by newMCPServer once the MCP server exists.
func (a *app) registerSinks(ctx context.Context) {
	if a.cfg.HasSink(config.SinkLog) {
		ch := effects.NewLogChannel(a.logger)
		a.dispatcher.Register(effects.WithNotificationChannel(ch), effects.WithHapticChannel(ch))
	}

	if a.cfg.HasSink(config.SinkRedis) {
		rc := a.cfg.Effects.Redis
		client := redis.NewClient(&redis.Options{
			Addr:     rc.Addr,
			Password: rc.Password,
			DB:       rc.DB,
		})
		a.closers = append(a.closers, client.Close)

		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		defer cancel()
		if err := client.Ping(pingCtx).Err(); err != nil {
			// Effects are best effort; a missing subscriber host is not fatal
			a.logger.Warn().Err(err).Str("addr", rc.Addr).Msg("Redis effect sink unreachable")
		}

		ch := effects.NewRedisChannel(client, rc.Channel)
		a.dispatcher.Register(effects.WithNotificationChannel(ch), effects.WithHapticChannel(ch))
	}
}

// newMCPServer builds the MCP server and, when enabled, attaches it as an effect sink
func (a *app) newMCPServer() (*mcp.Server, error) {
	server, err := mcp.NewServer(a.taskService, a.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create MCP server: %w", err)
	}

	if a.cfg.HasSink(config.SinkMCP) {
		ch := mcp.NewNotificationChannel(server)
		a.dispatcher.Register(effects.WithNotificationChannel(ch), effects.WithHapticChannel(ch))
	}

	notifiers, haptics := a.dispatcher.Channels()
	a.logger.Info().
		Strs("sinks", a.cfg.Effects.Sinks).
		Int("notification_channels", notifiers).
		Int("haptic_channels", haptics).
		Msg("Effect sinks registered")

	return server, nil
}

// startScheduler runs the background due sweep if enabled. The returned
// channel is closed when it stops; it is nil when the scheduler is off.
func (a *app) startScheduler(ctx context.Context) <-chan struct{} {
	if !a.cfg.Scheduler.Enabled {
		a.logger.Info().Msg("Due scheduler disabled")
		return nil
	}
	return services.NewDueScheduler(a.taskService, a.cfg.Scheduler.Interval, a.logger).Start(ctx)
}

// Close releases the store and sink connections in reverse order
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
