package migrations

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// IndexTaskCreatedAt backs the ordered keyset listing
func IndexTaskCreatedAt(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	logger.Info().Msg("Adding created_at index to task table")

	return db.WithContext(ctx).Exec(`
		CREATE INDEX IF NOT EXISTS idx_task_created_at
		ON task(created_at, id)
	`).Error
}
