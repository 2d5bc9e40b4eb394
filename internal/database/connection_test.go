package database

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/ksred/remind-me/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var memoryDBCounter atomic.Int64

// setupTestDB opens a private shared-cache in-memory store. Nothing is migrated.
func setupTestDB(t *testing.T) *Database {
	t.Helper()

	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db := NewDatabase(map[string]interface{}{
		"path":           fmt.Sprintf("file:%s_%d?mode=memory&cache=shared", name, memoryDBCounter.Add(1)),
		"max_open_conns": 1,
	})
	require.NoError(t, db.Connect())
	t.Cleanup(func() { _ = db.Close() })
	return db
}

// testCatalog mirrors the production v1 table so store tests do not depend on the migrations package
func testCatalog(t *testing.T) Catalog {
	t.Helper()
	c, err := NewCatalog(Migration{
		Version: 1,
		Name:    "create_task_table",
		Run: func(ctx context.Context, db *gorm.DB, _ zerolog.Logger) error {
			return db.Exec(`CREATE TABLE IF NOT EXISTS task (
    id TEXT PRIMARY KEY,
    title TEXT,
    completed INTEGER DEFAULT 0,
    time TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);`).Error
		},
	})
	require.NoError(t, err)
	return c
}

func setupMigratedDB(t *testing.T) *Database {
	t.Helper()
	db := setupTestDB(t)
	_, err := db.Migrate(context.Background(), testCatalog(t), zerolog.Nop())
	require.NoError(t, err)
	return db
}

func TestNewDatabase(t *testing.T) {
	config := map[string]interface{}{
		"path": "/tmp/remind-me.db",
	}

	db := NewDatabase(config)
	assert.NotNil(t, db)
	assert.Equal(t, config, db.config)
	assert.Nil(t, db.db)
	assert.False(t, db.Ready())
}

func TestDatabase_buildDSN(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		config   map[string]interface{}
		expected string
	}{
		{
			name: "On-disk store",
			config: map[string]interface{}{
				"path":         filepath.Join(dir, "data", "tasks.db"),
				"busy_timeout": "2s",
				"journal_mode": "DELETE",
			},
			expected: filepath.Join(dir, "data", "tasks.db") + "?_busy_timeout=2000&_journal_mode=DELETE&_txlock=immediate",
		},
		{
			name:     "Default values",
			config:   map[string]interface{}{},
			expected: "remind-me.db?_busy_timeout=5000&_journal_mode=WAL&_txlock=immediate",
		},
		{
			name:     "Plain memory store is shared across the pool",
			config:   map[string]interface{}{"path": ":memory:"},
			expected: "file::memory:?cache=shared&_busy_timeout=5000",
		},
		{
			name:     "Named memory store keeps its query",
			config:   map[string]interface{}{"path": "file:t1?mode=memory&cache=shared"},
			expected: "file:t1?mode=memory&cache=shared&_busy_timeout=5000",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db := NewDatabase(tt.config)
			result, err := db.buildDSN()
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}

	assert.DirExists(t, filepath.Join(dir, "data"), "parent directory is created")
}

func TestDatabase_getConfigInt(t *testing.T) {
	db := NewDatabase(map[string]interface{}{
		"int_key":    123,
		"float_key":  456.0,
		"string_key": "test",
	})

	assert.Equal(t, 123, db.getConfigInt("int_key", 999))
	assert.Equal(t, 456, db.getConfigInt("float_key", 999))
	assert.Equal(t, 999, db.getConfigInt("missing_key", 999))
	assert.Equal(t, 999, db.getConfigInt("string_key", 999))
}

func TestDatabase_getConfigDuration(t *testing.T) {
	db := NewDatabase(map[string]interface{}{
		"duration_string": "5m",
		"duration_direct": 10 * time.Minute,
		"invalid_string":  "invalid",
		"int_key":         123,
	})

	assert.Equal(t, 5*time.Minute, db.getConfigDuration("duration_string", time.Hour))
	assert.Equal(t, 10*time.Minute, db.getConfigDuration("duration_direct", time.Hour))
	assert.Equal(t, time.Hour, db.getConfigDuration("missing_key", time.Hour))
	assert.Equal(t, time.Hour, db.getConfigDuration("invalid_string", time.Hour))
	assert.Equal(t, time.Hour, db.getConfigDuration("int_key", time.Hour))
}

func TestDatabase_getLogLevel(t *testing.T) {
	tests := []struct {
		name     string
		config   map[string]interface{}
		expected logger.LogLevel
	}{
		{name: "Silent", config: map[string]interface{}{"log_level": "silent"}, expected: logger.Silent},
		{name: "Error", config: map[string]interface{}{"log_level": "error"}, expected: logger.Error},
		{name: "Warn", config: map[string]interface{}{"log_level": "warn"}, expected: logger.Warn},
		{name: "Info", config: map[string]interface{}{"log_level": "info"}, expected: logger.Info},
		{name: "Invalid defaults to silent", config: map[string]interface{}{"log_level": "loud"}, expected: logger.Silent},
		{name: "Missing defaults to silent", config: map[string]interface{}{}, expected: logger.Silent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, NewDatabase(tt.config).getLogLevel())
		})
	}
}

func TestDatabase_isRetryableError(t *testing.T) {
	tests := []struct {
		name        string
		err         error
		shouldRetry bool
	}{
		{name: "Nil error", err: nil, shouldRetry: false},
		{name: "Locked database", err: &mockError{message: "database is locked"}, shouldRetry: true},
		{name: "Busy code", err: &mockError{message: "SQLITE_BUSY: retry"}, shouldRetry: true},
		{name: "Case insensitive matching", err: &mockError{message: "DATABASE IS LOCKED"}, shouldRetry: true},
		{name: "Syntax error", err: &mockError{message: "near \"SELEC\": syntax error"}, shouldRetry: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.shouldRetry, isRetryableError(tt.err))
		})
	}
}

// Mock error for testing error handling
type mockError struct {
	message string
}

func (e *mockError) Error() string {
	return e.message
}

func TestDatabase_ConnectionLifecycle(t *testing.T) {
	db := setupTestDB(t)
	require.NotNil(t, db.DB())

	err := db.Health(context.Background())
	assert.ErrorIs(t, err, utils.ErrSchemaNotReady, "connected but not migrated")

	require.NoError(t, db.Close())
	assert.Nil(t, db.DB())
	assert.False(t, db.Ready())

	// Multiple closes should be safe
	assert.NoError(t, db.Close())
}

func TestDatabase_OperationsWithoutConnection(t *testing.T) {
	db := NewDatabase(map[string]interface{}{})
	ctx := context.Background()

	_, err := db.Migrate(ctx, testCatalog(t), zerolog.Nop())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not connected")

	err = db.Health(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not connected")

	err = db.WithTransaction(ctx, func(tx *gorm.DB) error { return nil })
	require.Error(t, err)
	assert.Contains(t, err.Error(), "database not connected")

	_, err = db.SchemaVersion(ctx)
	require.Error(t, err)
}

func TestDatabase_StartupGate(t *testing.T) {
	ctx := context.Background()

	t.Run("Store operations wait for migration", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewTaskStore(db, zerolog.Nop())

		_, err := store.Count(ctx)
		assert.ErrorIs(t, err, utils.ErrSchemaNotReady)

		report, err := db.Migrate(ctx, testCatalog(t), zerolog.Nop())
		require.NoError(t, err)
		assert.Equal(t, 1, report.FinalVersion)
		assert.True(t, db.Ready())

		count, err := store.Count(ctx)
		require.NoError(t, err)
		assert.Zero(t, count)
	})

	t.Run("Store calls block while a migration runs", func(t *testing.T) {
		db := setupTestDB(t)
		store := NewTaskStore(db, zerolog.Nop())

		entered := make(chan struct{})
		release := make(chan struct{})
		createTable := testCatalog(t).Steps()[0].Run
		held := MustCatalog(Migration{
			Version: 1,
			Name:    "create_task_table",
			Run: func(ctx context.Context, tx *gorm.DB, log zerolog.Logger) error {
				if err := createTable(ctx, tx, log); err != nil {
					return err
				}
				close(entered)
				<-release
				return nil
			},
		})

		migrateErr := make(chan error, 1)
		go func() {
			_, err := db.Migrate(ctx, held, zerolog.Nop())
			migrateErr <- err
		}()
		<-entered

		type countResult struct {
			count int64
			err   error
		}
		counted := make(chan countResult, 1)
		go func() {
			count, err := store.Count(ctx)
			counted <- countResult{count, err}
		}()

		select {
		case r := <-counted:
			t.Fatalf("Count returned during migration: %d, %v", r.count, r.err)
		case <-time.After(100 * time.Millisecond):
		}

		close(release)
		require.NoError(t, <-migrateErr)

		select {
		case r := <-counted:
			require.NoError(t, r.err)
			assert.Zero(t, r.count)
		case <-time.After(5 * time.Second):
			t.Fatal("Count still blocked after migration finished")
		}
	})

	t.Run("Failed migration keeps the store closed", func(t *testing.T) {
		db := setupTestDB(t)
		broken := MustCatalog(Migration{
			Version: 1,
			Name:    "broken",
			Run: func(ctx context.Context, tx *gorm.DB, _ zerolog.Logger) error {
				return tx.Exec("CREATE TABLE").Error
			},
		})

		_, err := db.Migrate(ctx, broken, zerolog.Nop())
		require.Error(t, err)
		assert.True(t, utils.IsStartupError(err))
		assert.False(t, db.Ready())

		err = db.WithTransaction(ctx, func(tx *gorm.DB) error { return nil })
		assert.ErrorIs(t, err, utils.ErrSchemaNotReady)
	})

	t.Run("Schema version is readable before migration", func(t *testing.T) {
		db := setupTestDB(t)

		version, err := db.SchemaVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 0, version)
	})
}

func TestDatabase_OnDiskStore(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "tasks.db")

	db := NewDatabase(map[string]interface{}{"path": path})
	require.NoError(t, db.Connect())

	_, err := db.Migrate(ctx, testCatalog(t), zerolog.Nop())
	require.NoError(t, err)
	require.NoError(t, db.Health(ctx))
	require.NoError(t, db.Close())

	// Reopening sees the ledger left by the first run
	db = NewDatabase(map[string]interface{}{"path": path})
	require.NoError(t, db.Connect())
	defer db.Close()

	report, err := db.Migrate(ctx, testCatalog(t), zerolog.Nop())
	require.NoError(t, err)
	assert.Equal(t, 1, report.StartVersion)
	assert.Empty(t, report.Applied)
}

func TestDatabase_SchemaHistory(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	history, err := db.SchemaHistory(ctx)
	require.NoError(t, err)
	assert.Empty(t, history)

	_, err = db.Migrate(ctx, testCatalog(t), zerolog.Nop())
	require.NoError(t, err)

	history, err = db.SchemaHistory(ctx)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 1, history[0].Version)
	assert.Equal(t, "create_task_table", history[0].Name)
	assert.False(t, history[0].AppliedTime().IsZero())
}
