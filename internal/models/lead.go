package models

import "time"

// LeadStatus represents where a lead sits in the sales funnel.
type LeadStatus string

// LeadStatus constants define the funnel stages.
const (
	// LeadStatusNew marks a freshly captured lead.
	LeadStatusNew LeadStatus = "new"
	// LeadStatusContacted marks a lead staff has reached out to.
	LeadStatusContacted LeadStatus = "contacted"
	// LeadStatusQualified marks a lead worth quoting.
	LeadStatusQualified LeadStatus = "qualified"
	// LeadStatusLost marks a lead that went nowhere.
	LeadStatusLost LeadStatus = "lost"
	// LeadStatusConverted marks a lead that became a project.
	LeadStatusConverted LeadStatus = "converted"
)

// Valid reports whether the status is one of the known stages.
func (s LeadStatus) Valid() bool {
	switch s {
	case LeadStatusNew, LeadStatusContacted, LeadStatusQualified, LeadStatusLost, LeadStatusConverted:
		return true
	default:
		return false
	}
}

// Lead is a sales lead captured from the site or entered by staff.
type Lead struct {
	ID uint64 `gorm:"primaryKey;autoIncrement"` // Primary key.

	Name    string     `gorm:"type:text;not null"`                           // Contact name.
	Email   string     `gorm:"type:text;index"`                              // Contact email.
	Phone   string     `gorm:"type:text"`                                    // Contact phone.
	Company string     `gorm:"type:text"`                                    // Company or site name.
	Source  string     `gorm:"type:varchar(64);not null;default:'admin'"`    // Where the lead came from.
	Status  LeadStatus `gorm:"type:varchar(32);not null;default:'new';index"` // Funnel stage.
	Notes   string     `gorm:"type:text"`                                    // Free-form notes.

	EstimatedValue float64 `gorm:"type:decimal(12,2);not null;default:0"` // Rough deal size.

	ProjectID *uint64 `gorm:"index"` // Project created on conversion.

	CreatedAt time.Time `gorm:"not null;autoCreateTime"` // Creation timestamp.
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime"` // Last update timestamp.
}
