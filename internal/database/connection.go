package database

import (
	"context"
	"fmt"
	stdlog "log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ksred/remind-me/internal/models"
	"github.com/ksred/remind-me/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Database owns the SQLite connection and gates access to it until the
// schema has been migrated.
type Database struct {
	db       *gorm.DB
	config   map[string]interface{}
	migrated bool
	mu       sync.RWMutex
}

// NewDatabase creates a new Database instance
func NewDatabase(config map[string]interface{}) *Database {
	return &Database{
		config: config,
	}
}

// Connect opens the SQLite store with retry logic
func (d *Database) Connect() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	dsn, err := d.buildDSN()
	if err != nil {
		return err
	}

	gormConfig := &gorm.Config{
		Logger: logger.New(
			stdlog.New(os.Stderr, "\r\n", stdlog.LstdFlags),
			logger.Config{
				SlowThreshold:             200 * time.Millisecond,
				LogLevel:                  d.getLogLevel(),
				IgnoreRecordNotFoundError: true,
			},
		),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
		TranslateError: true,
	}

	maxRetries := 3
	retryDelay := time.Millisecond * 200

	for i := 0; i < maxRetries; i++ {
		d.db, err = gorm.Open(sqlite.Open(dsn), gormConfig)
		if err == nil || !isRetryableError(err) {
			break
		}

		if i < maxRetries-1 {
			time.Sleep(retryDelay)
			retryDelay *= 2
		}
	}

	if err != nil {
		d.db = nil
		return fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	// SQLite serializes writers itself; a small pool keeps lock waits short.
	sqlDB.SetMaxOpenConns(d.getConfigInt("max_open_conns", 4))
	sqlDB.SetMaxIdleConns(d.getConfigInt("max_open_conns", 4))
	sqlDB.SetConnMaxIdleTime(d.getConfigDuration("conn_max_idle_time", time.Minute*10))

	d.migrated = false
	return nil
}

// Migrate brings the schema up to the catalog's latest version. It holds the
// write lock for the whole run, so store operations wait for it, and only a
// successful run opens the store for use.
func (d *Database) Migrate(ctx context.Context, catalog Catalog, log zerolog.Logger) (*MigrationReport, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	report, err := NewMigrationRunner(d.db, catalog, log).Run(ctx)
	if err != nil {
		d.migrated = false
		return report, err
	}

	d.migrated = true
	return report, nil
}

// Ready reports whether a migration run has completed successfully
func (d *Database) Ready() bool {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db != nil && d.migrated
}

// acquire returns the connection under the read lock. Callers must invoke
// release when done.
func (d *Database) acquire() (db *gorm.DB, release func(), err error) {
	d.mu.RLock()
	if d.db == nil {
		d.mu.RUnlock()
		return nil, nil, fmt.Errorf("database not connected")
	}
	if !d.migrated {
		d.mu.RUnlock()
		return nil, nil, utils.ErrSchemaNotReady
	}
	return d.db, d.mu.RUnlock, nil
}

// Health checks the database connection health
func (d *Database) Health(ctx context.Context) error {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return fmt.Errorf("database not connected")
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("database ping failed: %w", err)
	}

	if !d.migrated {
		return utils.ErrSchemaNotReady
	}

	return nil
}

// SchemaVersion returns the store's current ledger version
func (d *Database) SchemaVersion(ctx context.Context) (int, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return 0, fmt.Errorf("database not connected")
	}

	ledger := NewLedger(d.db)
	if err := ledger.Ensure(ctx); err != nil {
		return 0, err
	}
	return ledger.CurrentVersion(ctx)
}

// SchemaHistory returns the applied migration steps, oldest first
func (d *Database) SchemaHistory(ctx context.Context) ([]models.SchemaMigration, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	if d.db == nil {
		return nil, fmt.Errorf("database not connected")
	}

	ledger := NewLedger(d.db)
	if err := ledger.Ensure(ctx); err != nil {
		return nil, err
	}
	return ledger.History(ctx)
}

// Close closes the database connection
func (d *Database) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.db == nil {
		return nil
	}

	sqlDB, err := d.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database connection: %w", err)
	}

	d.db = nil
	d.migrated = false
	return nil
}

// DB returns the underlying gorm.DB instance
func (d *Database) DB() *gorm.DB {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.db
}

// SetDB sets the underlying gorm.DB instance (for testing). The schema is
// treated as unmigrated until Migrate runs.
func (d *Database) SetDB(db *gorm.DB) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.db = db
	d.migrated = false
}

// WithTransaction executes a function within a database transaction once the schema is ready
func (d *Database) WithTransaction(ctx context.Context, fn func(*gorm.DB) error) error {
	db, release, err := d.acquire()
	if err != nil {
		return err
	}
	defer release()

	return db.WithContext(ctx).Transaction(fn)
}

// buildDSN constructs the go-sqlite3 DSN from config, creating the parent
// directory of an on-disk store.
func (d *Database) buildDSN() (string, error) {
	path := d.getConfigString("path", "remind-me.db")
	busyTimeout := d.getConfigDuration("busy_timeout", 5*time.Second)
	journalMode := d.getConfigString("journal_mode", "WAL")

	params := []string{fmt.Sprintf("_busy_timeout=%d", busyTimeout.Milliseconds())}

	if isMemoryPath(path) {
		if path == ":memory:" {
			// Every pooled connection would otherwise get its own empty database.
			path = "file::memory:?cache=shared"
		}
	} else {
		if !strings.HasPrefix(path, "file:") {
			if dir := filepath.Dir(path); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return "", fmt.Errorf("failed to create database directory: %w", err)
				}
			}
		}
		if journalMode != "" {
			params = append(params, "_journal_mode="+journalMode)
		}
		// Take the write lock at BEGIN so a read-then-write transaction waits
		// on the busy timeout instead of failing its lock upgrade.
		params = append(params, "_txlock=immediate")
	}

	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + strings.Join(params, "&"), nil
}

func isMemoryPath(path string) bool {
	return path == ":memory:" || strings.Contains(path, "mode=memory") || strings.HasPrefix(path, "file::memory:")
}

// getLogLevel returns the GORM log level from config
func (d *Database) getLogLevel() logger.LogLevel {
	level := d.getConfigString("log_level", "silent")
	switch level {
	case "silent":
		return logger.Silent
	case "error":
		return logger.Error
	case "warn":
		return logger.Warn
	case "info":
		return logger.Info
	default:
		return logger.Silent
	}
}

// Helper methods for config access

func (d *Database) getConfigString(key string, defaultValue string) string {
	if val, ok := d.config[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

func (d *Database) getConfigInt(key string, defaultValue int) int {
	if val, ok := d.config[key].(int); ok && val > 0 {
		return val
	}
	// Try to convert from float64 (common in JSON parsing)
	if val, ok := d.config[key].(float64); ok && val > 0 {
		return int(val)
	}
	return defaultValue
}

func (d *Database) getConfigDuration(key string, defaultValue time.Duration) time.Duration {
	if val, ok := d.config[key].(string); ok {
		if duration, err := time.ParseDuration(val); err == nil {
			return duration
		}
	}
	if val, ok := d.config[key].(time.Duration); ok {
		return val
	}
	return defaultValue
}

// isRetryableError reports whether opening the store may succeed on a later attempt
func isRetryableError(err error) bool {
	if err == nil {
		return false
	}

	errStr := err.Error()
	retryableErrors := []string{
		"database is locked",
		"database table is locked",
		"sqlite_busy",
	}

	for _, retryable := range retryableErrors {
		if containsIgnoreCase(errStr, retryable) {
			return true
		}
	}

	return false
}

// containsIgnoreCase checks if string contains substring (case insensitive)
func containsIgnoreCase(s, substr string) bool {
	return len(s) >= len(substr) &&
		strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
