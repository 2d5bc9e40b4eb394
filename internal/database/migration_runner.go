package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ksred/remind-me/internal/utils"
	"github.com/rs/zerolog"
	"gorm.io/gorm"
)

// MigrationFunc is a function that performs a migration
type MigrationFunc func(ctx context.Context, db *gorm.DB, logger zerolog.Logger) error

// Migration is one step of the schema catalog
type Migration struct {
	Version int
	Name    string
	Run     MigrationFunc
}

// Catalog is the ordered, immutable list of migrations a build knows about.
// Versions start at 1 and have no gaps.
type Catalog struct {
	steps []Migration
}

// NewCatalog validates and freezes the given steps. Steps must be supplied in version order.
func NewCatalog(steps ...Migration) (Catalog, error) {
	frozen := make([]Migration, 0, len(steps))
	for i, step := range steps {
		want := i + 1
		if step.Version != want {
			return Catalog{}, fmt.Errorf("catalog step %d has version %d, expected %d", i, step.Version, want)
		}
		if step.Name == "" {
			return Catalog{}, fmt.Errorf("catalog step %d has no name", step.Version)
		}
		if step.Run == nil {
			return Catalog{}, fmt.Errorf("catalog step %d (%s) has no run function", step.Version, step.Name)
		}
		frozen = append(frozen, step)
	}
	return Catalog{steps: frozen}, nil
}

// MustCatalog is NewCatalog for package-level catalogs; it panics on an invalid catalog
func MustCatalog(steps ...Migration) Catalog {
	c, err := NewCatalog(steps...)
	if err != nil {
		panic(err)
	}
	return c
}

// MaxVersion is the version a store reaches after the whole catalog is applied
func (c Catalog) MaxVersion() int {
	return len(c.steps)
}

// Steps returns a copy of the catalog's steps
func (c Catalog) Steps() []Migration {
	out := make([]Migration, len(c.steps))
	copy(out, c.steps)
	return out
}

// after returns the steps with a version greater than v, ascending
func (c Catalog) after(v int) []Migration {
	if v >= len(c.steps) {
		return nil
	}
	if v < 0 {
		v = 0
	}
	return c.Steps()[v:]
}

// MigrationReport summarises a migration run
type MigrationReport struct {
	StartVersion int   `json:"start_version"`
	FinalVersion int   `json:"final_version"`
	Applied      []int `json:"applied"`
}

// MigrationRunner brings a store up to the catalog's latest version
type MigrationRunner struct {
	db      *gorm.DB
	logger  zerolog.Logger
	catalog Catalog
	now     func() time.Time
}

// NewMigrationRunner creates a new migration runner
func NewMigrationRunner(db *gorm.DB, catalog Catalog, logger zerolog.Logger) *MigrationRunner {
	return &MigrationRunner{
		db:      db,
		logger:  utils.ForComponent(logger, "migrations"),
		catalog: catalog,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// WithClock overrides the clock used for ledger timestamps
func (r *MigrationRunner) WithClock(now func() time.Time) *MigrationRunner {
	r.now = now
	return r
}

// Run applies every pending migration, each in its own transaction. A failing
// step is rolled back and stops the run; earlier steps stay committed.
func (r *MigrationRunner) Run(ctx context.Context) (*MigrationReport, error) {
	ledger := NewLedger(r.db)
	if err := ledger.Ensure(ctx); err != nil {
		return nil, err
	}

	current, err := ledger.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}

	report := &MigrationReport{StartVersion: current, FinalVersion: current, Applied: []int{}}

	if r.catalog.MaxVersion() < current {
		return report, &utils.SchemaTooNewError{StoreVersion: current, CatalogVersion: r.catalog.MaxVersion()}
	}

	pending := r.catalog.after(current)
	if len(pending) == 0 {
		r.logger.Debug().Int("version", current).Msg("Schema is up to date")
		return report, nil
	}

	for _, migration := range pending {
		if err := ctx.Err(); err != nil {
			return report, &utils.MigrationFailedError{Version: migration.Version, Name: migration.Name, Cause: err}
		}

		r.logger.Info().
			Int("version", migration.Version).
			Str("name", migration.Name).
			Msg("Running migration")

		if err := r.apply(ctx, migration); err != nil {
			r.logger.Error().
				Err(err).
				Int("version", migration.Version).
				Str("name", migration.Name).
				Msg("Migration failed, rolled back")
			return report, err
		}

		report.Applied = append(report.Applied, migration.Version)
		report.FinalVersion = migration.Version

		r.logger.Info().
			Int("version", migration.Version).
			Str("name", migration.Name).
			Msg("Migration completed successfully")
	}

	return report, nil
}

func (r *MigrationRunner) apply(ctx context.Context, migration Migration) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := migration.Run(ctx, tx, r.logger); err != nil {
			return err
		}
		return NewLedger(tx).RecordApplied(ctx, migration.Version, migration.Name, r.now())
	})
	if err != nil {
		return &utils.MigrationFailedError{Version: migration.Version, Name: migration.Name, Cause: err}
	}
	return nil
}

// Pending returns the migrations that have not been applied yet
func (r *MigrationRunner) Pending(ctx context.Context) ([]Migration, error) {
	ledger := NewLedger(r.db)
	if err := ledger.Ensure(ctx); err != nil {
		return nil, err
	}
	current, err := ledger.CurrentVersion(ctx)
	if err != nil {
		return nil, err
	}
	if r.catalog.MaxVersion() < current {
		return nil, &utils.SchemaTooNewError{StoreVersion: current, CatalogVersion: r.catalog.MaxVersion()}
	}
	return r.catalog.after(current), nil
}
