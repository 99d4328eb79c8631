package models

import "time"

// Vendor supplies products at negotiated rates.
type Vendor struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name         string `gorm:"type:text;not null;uniqueIndex"` // Vendor name.
	ContactEmail string `gorm:"type:text"`                      // Contact email.
	Phone        string `gorm:"type:text"`                      // Contact phone.
	IsActive     bool   `gorm:"not null;default:true"`          // Whether rates are usable.

	RateCards []RateCard `gorm:"foreignKey:VendorID"` // Vendor price list.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// RateCard is a vendor's unit price for a product.
type RateCard struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	VendorID  uint64  `gorm:"not null;uniqueIndex:idx_rate_cards_vendor_product"` // Vendor.
	Vendor    Vendor  `gorm:"foreignKey:VendorID"`                                // Related vendor.
	ProductID uint64  `gorm:"not null;uniqueIndex:idx_rate_cards_vendor_product"` // Product.
	Product   Product `gorm:"foreignKey:ProductID"`                               // Related product.

	UnitPrice       float64 `gorm:"type:decimal(12,2);not null;default:0"` // Vendor unit price, never negative.
	InstallPrice    float64 `gorm:"type:decimal(12,2);not null;default:0"` // Per-unit installation, never negative.
	MinimumQuantity int     `gorm:"not null;default:0"`                    // Minimum order quantity.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
