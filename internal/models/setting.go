package models

import (
	"database/sql/driver"
	"strconv"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// Setting stores a JSON-encoded runtime setting by key.
type Setting struct {
	Key       string       `gorm:"primaryKey;type:varchar(128)"` // Setting key.
	Value     SettingValue // JSON value.
	UpdatedAt time.Time    `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// SettingValue is a JSON document column. SQLite gives any non-text
// declared type NUMERIC affinity and turns a bare JSON number such as 60
// into an INTEGER, so the column is TEXT there and jsonb on PostgreSQL.
type SettingValue datatypes.JSON

// GormDBDataType picks the column type per dialect.
func (SettingValue) GormDBDataType(db *gorm.DB, _ *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "text"
	case "postgres":
		return "jsonb"
	default:
		return "json"
	}
}

// Value implements driver.Valuer.
func (v SettingValue) Value() (driver.Value, error) {
	return datatypes.JSON(v).Value()
}

// Scan implements sql.Scanner. Numeric values come from rows written
// while the SQLite column still had NUMERIC affinity.
func (v *SettingValue) Scan(src any) error {
	switch n := src.(type) {
	case int64:
		*v = SettingValue(strconv.FormatInt(n, 10))
		return nil
	case float64:
		*v = SettingValue(strconv.FormatFloat(n, 'f', -1, 64))
		return nil
	}
	return (*datatypes.JSON)(v).Scan(src)
}

// MarshalJSON emits the stored document as-is.
func (v SettingValue) MarshalJSON() ([]byte, error) {
	return datatypes.JSON(v).MarshalJSON()
}

// UnmarshalJSON stores the raw document.
func (v *SettingValue) UnmarshalJSON(data []byte) error {
	return (*datatypes.JSON)(v).UnmarshalJSON(data)
}
