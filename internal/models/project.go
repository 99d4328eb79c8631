package models

import "time"

// ProjectStatus represents the delivery state of a project.
type ProjectStatus string

// ProjectStatus constants define project delivery states.
const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusOnHold    ProjectStatus = "on_hold"
	ProjectStatusCompleted ProjectStatus = "completed"
	ProjectStatusCancelled ProjectStatus = "cancelled"
)

// Valid reports whether the status is known.
func (s ProjectStatus) Valid() bool {
	switch s {
	case ProjectStatusActive, ProjectStatusOnHold, ProjectStatusCompleted, ProjectStatusCancelled:
		return true
	default:
		return false
	}
}

// Project is a real job, usually converted from a qualified lead.
type Project struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	LeadID *uint64 `gorm:"index"` // Source lead, when converted.

	Name       string        `gorm:"type:text;not null"`                          // Project name.
	ClientName string        `gorm:"type:text"`                                   // Client contact.
	Location   string        `gorm:"type:text"`                                   // Site address.
	Status     ProjectStatus `gorm:"type:varchar(32);not null;default:'active'"` // Delivery state.
	Notes      string        `gorm:"type:text"`                                   // Free-form notes.

	Designs []WashroomDesign `gorm:"foreignKey:ProjectID"` // Washroom designs.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
