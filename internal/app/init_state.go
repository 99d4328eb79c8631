package app

import (
	"fmt"

	"github.com/fixturedesk/leaddesk/internal/models"
	"gorm.io/gorm"
)

// HasAdminInitialized reports whether at least one admin account exists.
// A database that has not been migrated yet counts as uninitialized.
func HasAdminInitialized(conn *gorm.DB) (bool, error) {
	if conn == nil {
		return false, fmt.Errorf("nil db")
	}
	if !conn.Migrator().HasTable(&models.Admin{}) {
		return false, nil
	}
	var exists bool
	if errFind := conn.Model(&models.Admin{}).Select("count(*) > 0").Find(&exists).Error; errFind != nil {
		return false, errFind
	}
	return exists, nil
}
