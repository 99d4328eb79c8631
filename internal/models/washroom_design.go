package models

import (
	"time"

	"gorm.io/datatypes"
)

// WashroomDesign describes one washroom layout inside a project.
type WashroomDesign struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	ProjectID uint64 `gorm:"not null;index"` // Owning project.

	Name     string         `gorm:"type:text;not null"`                // Design label.
	Gender   string         `gorm:"type:varchar(32)"`                  // Male, female, accessible, unisex.
	Cubicles int            `gorm:"not null;default:0"`                // Number of cubicles.
	Fixtures datatypes.JSON `gorm:"type:jsonb;not null;default:'[]'"` // [{"product_id":1,"quantity":2}].
	Notes    string         `gorm:"type:text"`                         // Free-form notes.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
