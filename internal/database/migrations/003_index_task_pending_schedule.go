package migrations

import (
	"context"

	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// IndexTaskPendingSchedule adds a partial index over the reminder time of open tasks
func IndexTaskPendingSchedule(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error {
	logger.Info().Msg("Adding pending schedule index to task table")

	return db.WithContext(ctx).Exec(`
		CREATE INDEX IF NOT EXISTS idx_task_pending_time
		ON task(time)
		WHERE completed = 0
	`).Error
}
