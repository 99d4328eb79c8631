package models

import "time"

// QuotationStatus represents the lifecycle state of a quotation.
type QuotationStatus string

// QuotationStatus constants define quotation states.
const (
	QuotationStatusDraft    QuotationStatus = "draft"
	QuotationStatusSent     QuotationStatus = "sent"
	QuotationStatusAccepted QuotationStatus = "accepted"
	QuotationStatusRejected QuotationStatus = "rejected"
)

// Quotation is a priced offer for a project.
type Quotation struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Number     string          `gorm:"type:varchar(64);not null;uniqueIndex"`     // Human-readable number.
	ProjectID  *uint64         `gorm:"index"`                                     // Related project.
	LeadID     *uint64         `gorm:"index"`                                     // Related lead.
	ClientName string          `gorm:"type:text"`                                 // Addressee.
	Currency   string          `gorm:"type:varchar(8);not null;default:'USD'"`    // ISO currency.
	Status     QuotationStatus `gorm:"type:varchar(32);not null;default:'draft'"` // Lifecycle state.

	DiscountPercent string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	TaxPercent      string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	Subtotal        string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	Discount        string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	Tax             string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	Total           string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.

	Notes string `gorm:"type:text"` // Terms and notes printed on the document.

	Items []QuotationItem `gorm:"foreignKey:QuotationID;constraint:OnDelete:CASCADE"` // Line items.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}

// QuotationItem is one priced line of a quotation.
type QuotationItem struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	QuotationID uint64  `gorm:"not null;index"` // Owning quotation.
	ProductID   *uint64 `gorm:"index"`          // Catalogue product, if any.

	Description string `gorm:"type:text;not null"`                    // Printed description.
	Quantity    string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	UnitPrice   string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	LineTotal   string `gorm:"type:varchar(32);not null;default:'0'"` // Decimal string.
	SortOrder   int    `gorm:"not null;default:0"`                    // Print order.
}
