package migrations

import (
	"github.com/ksred/remind-me/internal/database"
)

// Steps returns every known migration in version order
func Steps() []database.Migration {
	return []database.Migration{
		{
			Version: 1,
			Name:    "create_task_table",
			Run:     CreateTaskTable,
		},
		{
			Version: 2,
			Name:    "index_task_created_at",
			Run:     IndexTaskCreatedAt,
		},
		{
			Version: 3,
			Name:    "index_task_pending_schedule",
			Run:     IndexTaskPendingSchedule,
		},
	}
}

// Catalog returns the catalog this build migrates stores to
func Catalog() database.Catalog {
	return database.MustCatalog(Steps()...)
}
