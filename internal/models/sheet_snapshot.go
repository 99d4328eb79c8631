package models

import (
	"time"

	"gorm.io/datatypes"
)

// SheetSnapshot stores the latest rows pulled from an external spreadsheet.
type SheetSnapshot struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Source        string         `gorm:"type:varchar(128);not null;uniqueIndex"` // Configured source name.
	SpreadsheetID string         `gorm:"type:varchar(128);not null"`             // Upstream sheet id.
	Range         string         `gorm:"type:varchar(128)"`                      // A1 range fetched.
	Rows          datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"`      // [][]string rows.
	RowCount      int            `gorm:"not null;default:0"`                     // Number of rows.
	LastError     string         `gorm:"type:text"`                              // Last failure, cleared on success.

	FetchedAt time.Time `gorm:"not null"`                // Last successful fetch.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
