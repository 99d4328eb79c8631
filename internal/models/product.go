package models

import "time"

// Product is a fixture in the catalogue (partition panel, hinge, lock, ...).
type Product struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	SKU       string  `gorm:"type:varchar(64);not null;uniqueIndex"`  // Stock keeping unit.
	Name      string  `gorm:"type:text;not null"`                     // Display name.
	Category  string  `gorm:"type:varchar(64);index"`                 // Catalogue category.
	Unit      string  `gorm:"type:varchar(32);not null;default:'pc'"` // Unit of measure.
	BasePrice float64 `gorm:"type:decimal(12,2);not null;default:0"`  // List price, never negative.
	IsActive  bool    `gorm:"not null;default:true"`                  // Whether it can be quoted.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
