package models

import "time"

// SchemaMigration is one row of the schema version ledger: a migration step
// that has been applied to this store. Rows are append-only.
type SchemaMigration struct {
	Version   int    `gorm:"column:version;primaryKey;autoIncrement:false" json:"version"`
	Name      string `gorm:"column:name;not null" json:"name"`
	AppliedAt string `gorm:"column:applied_at;not null" json:"applied_at"`
}

// TableName ensures consistent table naming
func (SchemaMigration) TableName() string {
	return "schema_migrations"
}

// AppliedTime decodes AppliedAt, returning the zero time if it is unreadable
func (m SchemaMigration) AppliedTime() time.Time {
	t, err := ParseTimestamp(m.AppliedAt)
	if err != nil {
		return time.Time{}
	}
	return t
}
