package database

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/ksred/remind-me/internal/utils"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// tableSteps builds n steps that each create table tN
func tableSteps(n int) []Migration {
	steps := make([]Migration, 0, n)
	for i := 1; i <= n; i++ {
		table := fmt.Sprintf("t%d", i)
		steps = append(steps, Migration{
			Version: i,
			Name:    "create_" + table,
			Run: func(ctx context.Context, db *gorm.DB, _ zerolog.Logger) error {
				return db.Exec("CREATE TABLE " + table + " (id INTEGER PRIMARY KEY)").Error
			},
		})
	}
	return steps
}

func TestNewCatalog(t *testing.T) {
	noop := func(context.Context, *gorm.DB, zerolog.Logger) error { return nil }

	tests := []struct {
		name    string
		steps   []Migration
		wantErr string
	}{
		{name: "Empty catalog", steps: nil},
		{name: "Contiguous versions", steps: tableSteps(3)},
		{
			name:    "Starts above one",
			steps:   []Migration{{Version: 2, Name: "b", Run: noop}},
			wantErr: "expected 1",
		},
		{
			name:    "Gap",
			steps:   []Migration{{Version: 1, Name: "a", Run: noop}, {Version: 3, Name: "c", Run: noop}},
			wantErr: "expected 2",
		},
		{
			name:    "Duplicate",
			steps:   []Migration{{Version: 1, Name: "a", Run: noop}, {Version: 1, Name: "a2", Run: noop}},
			wantErr: "expected 2",
		},
		{
			name:    "Missing name",
			steps:   []Migration{{Version: 1, Run: noop}},
			wantErr: "has no name",
		},
		{
			name:    "Missing run function",
			steps:   []Migration{{Version: 1, Name: "a"}},
			wantErr: "has no run function",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := NewCatalog(tt.steps...)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, len(tt.steps), c.MaxVersion())
		})
	}
}

func TestCatalog_StepsIsACopy(t *testing.T) {
	c := MustCatalog(tableSteps(2)...)

	steps := c.Steps()
	steps[0].Name = "changed"

	assert.Equal(t, "create_t1", c.Steps()[0].Name)
}

func TestMigrationRunner_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("Applies every step from any start version", func(t *testing.T) {
		for catalogSize := 0; catalogSize <= 4; catalogSize++ {
			for start := 0; start <= catalogSize; start++ {
				t.Run(fmt.Sprintf("catalog=%d/start=%d", catalogSize, start), func(t *testing.T) {
					db := setupTestDB(t).DB()

					if start > 0 {
						_, err := NewMigrationRunner(db, MustCatalog(tableSteps(start)...), zerolog.Nop()).Run(ctx)
						require.NoError(t, err)
					}

					runner := NewMigrationRunner(db, MustCatalog(tableSteps(catalogSize)...), zerolog.Nop())
					report, err := runner.Run(ctx)
					require.NoError(t, err)

					assert.Equal(t, start, report.StartVersion)
					assert.Equal(t, catalogSize, report.FinalVersion)
					assert.Len(t, report.Applied, catalogSize-start)

					version, err := NewLedger(db).CurrentVersion(ctx)
					require.NoError(t, err)
					assert.Equal(t, catalogSize, version)

					again, err := runner.Run(ctx)
					require.NoError(t, err)
					assert.Empty(t, again.Applied, "re-running is a no-op")
					assert.Equal(t, catalogSize, again.FinalVersion)
				})
			}
		}
	})

	t.Run("Applies steps in order", func(t *testing.T) {
		db := setupTestDB(t).DB()

		var order []int
		steps := tableSteps(3)
		for i := range steps {
			run := steps[i].Run
			version := steps[i].Version
			steps[i].Run = func(ctx context.Context, tx *gorm.DB, log zerolog.Logger) error {
				order = append(order, version)
				return run(ctx, tx, log)
			}
		}

		_, err := NewMigrationRunner(db, MustCatalog(steps...), zerolog.Nop()).Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, []int{1, 2, 3}, order)
	})

	t.Run("Failing step rolls back alone and stops the run", func(t *testing.T) {
		db := setupTestDB(t).DB()

		steps := tableSteps(4)
		steps[2].Run = func(ctx context.Context, tx *gorm.DB, _ zerolog.Logger) error {
			if err := tx.Exec("CREATE TABLE t3 (id INTEGER PRIMARY KEY)").Error; err != nil {
				return err
			}
			return errors.New("disk on fire")
		}

		report, err := NewMigrationRunner(db, MustCatalog(steps...), zerolog.Nop()).Run(ctx)
		require.Error(t, err)

		var failed *utils.MigrationFailedError
		require.ErrorAs(t, err, &failed)
		assert.Equal(t, 3, failed.Version)
		assert.Equal(t, "create_t3", failed.Name)
		assert.ErrorIs(t, err, utils.ErrMigrationFailed)
		assert.Contains(t, err.Error(), "disk on fire")

		assert.Equal(t, []int{1, 2}, report.Applied)

		version, err := NewLedger(db).CurrentVersion(ctx)
		require.NoError(t, err)
		assert.Equal(t, 2, version)

		assert.True(t, db.Migrator().HasTable("t2"))
		assert.False(t, db.Migrator().HasTable("t3"), "partial step is rolled back")
		assert.False(t, db.Migrator().HasTable("t4"), "later steps are not attempted")
	})

	t.Run("Store newer than the catalog", func(t *testing.T) {
		db := setupTestDB(t).DB()

		_, err := NewMigrationRunner(db, MustCatalog(tableSteps(3)...), zerolog.Nop()).Run(ctx)
		require.NoError(t, err)

		report, err := NewMigrationRunner(db, MustCatalog(tableSteps(2)...), zerolog.Nop()).Run(ctx)
		require.Error(t, err)

		var tooNew *utils.SchemaTooNewError
		require.ErrorAs(t, err, &tooNew)
		assert.Equal(t, 3, tooNew.StoreVersion)
		assert.Equal(t, 2, tooNew.CatalogVersion)
		assert.Empty(t, report.Applied)
	})

	t.Run("Cancelled context stops before the next step", func(t *testing.T) {
		db := setupTestDB(t).DB()
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		_, err := NewMigrationRunner(db, MustCatalog(tableSteps(1)...), zerolog.Nop()).Run(cctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, context.Canceled)
	})

	t.Run("Ledger rows carry the injected clock", func(t *testing.T) {
		db := setupTestDB(t).DB()
		fixed := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)

		_, err := NewMigrationRunner(db, MustCatalog(tableSteps(2)...), zerolog.Nop()).
			WithClock(func() time.Time { return fixed }).
			Run(ctx)
		require.NoError(t, err)

		history, err := NewLedger(db).History(ctx)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, "create_t1", history[0].Name)
		assert.Equal(t, fixed, history[1].AppliedTime())
	})
}

func TestMigrationRunner_Pending(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t).DB()

	_, err := NewMigrationRunner(db, MustCatalog(tableSteps(1)...), zerolog.Nop()).Run(ctx)
	require.NoError(t, err)

	pending, err := NewMigrationRunner(db, MustCatalog(tableSteps(3)...), zerolog.Nop()).Pending(ctx)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.Equal(t, 2, pending[0].Version)
	assert.Equal(t, 3, pending[1].Version)

	version, err := NewLedger(db).CurrentVersion(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, version, "listing pending steps applies nothing")
}
