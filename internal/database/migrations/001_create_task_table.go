package migrations

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// createTaskTableSQL must stay byte-for-byte stable: stores created by every
// earlier client ran exactly this statement.
const createTaskTableSQL = `CREATE TABLE IF NOT EXISTS task (
    id TEXT PRIMARY KEY,
    title TEXT,
    completed INTEGER DEFAULT 0,
    time TEXT,
    created_at TEXT DEFAULT (datetime('now')),
    updated_at TEXT DEFAULT (datetime('now'))
);`

// CreateTaskTable creates the task table
func CreateTaskTable(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	logger.Info().Msg("Creating task table")

	return db.WithContext(ctx).Exec(createTaskTableSQL).Error
}
