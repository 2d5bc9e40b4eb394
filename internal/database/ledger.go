package database

import (
	"context"
	"fmt"
	"time"

	"github.com/ksred/remind-me/internal/models"
	"github.com/ksred/remind-me/internal/utils"
	"gorm.io/gorm"
)

const createLedgerTableSQL = `CREATE TABLE IF NOT EXISTS schema_migrations (
    version INTEGER PRIMARY KEY,
    name TEXT NOT NULL,
    applied_at TEXT NOT NULL
)`

// Ledger records which schema version a store is at. It operates on whatever
// *gorm.DB it is given, so binding it to a transaction makes its writes
// commit or roll back together with the schema change.
type Ledger struct {
	db *gorm.DB
}

// NewLedger creates a ledger bound to db (a connection or a transaction)
func NewLedger(db *gorm.DB) *Ledger {
	return &Ledger{db: db}
}

// Ensure creates the ledger table. A new ledger is at version 0.
func (l *Ledger) Ensure(ctx context.Context) error {
	if err := l.db.WithContext(ctx).Exec(createLedgerTableSQL).Error; err != nil {
		return utils.WrapDatabaseError("create schema ledger", err)
	}
	return nil
}

// CurrentVersion returns the highest applied version, or 0 for a store that has never been migrated
func (l *Ledger) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := l.db.WithContext(ctx).
		Model(&models.SchemaMigration{}).
		Select("COALESCE(MAX(version), 0)").
		Scan(&version).Error
	if err != nil {
		return 0, utils.WrapDatabaseError("read schema version", err)
	}
	return version, nil
}

// RecordApplied advances the ledger by exactly one version
func (l *Ledger) RecordApplied(ctx context.Context, version int, name string, appliedAt time.Time) error {
	current, err := l.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if version != current+1 {
		return &utils.VersionOrderError{Current: current, Attempted: version}
	}

	record := &models.SchemaMigration{
		Version:   version,
		Name:      name,
		AppliedAt: models.FormatTimestamp(appliedAt),
	}
	if err := l.db.WithContext(ctx).Create(record).Error; err != nil {
		return utils.WrapDatabaseError(fmt.Sprintf("record schema version %d", version), err)
	}
	return nil
}

// History returns the applied migrations in version order
func (l *Ledger) History(ctx context.Context) ([]models.SchemaMigration, error) {
	var rows []models.SchemaMigration
	if err := l.db.WithContext(ctx).Order("version ASC").Find(&rows).Error; err != nil {
		return nil, utils.WrapDatabaseError("read schema history", err)
	}
	return rows, nil
}
