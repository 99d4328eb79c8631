package sheets

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fixturedesk/leaddesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// StoreSnapshot upserts the rows fetched for a source and clears its last error.
func StoreSnapshot(ctx context.Context, db *gorm.DB, source string, target Target, rows [][]string, fetchedAt time.Time) error {
	if db == nil {
		return fmt.Errorf("store sheet snapshot: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if fetchedAt.IsZero() {
		fetchedAt = time.Now()
	}
	if rows == nil {
		rows = [][]string{}
	}
	payload, errMarshal := json.Marshal(rows)
	if errMarshal != nil {
		return fmt.Errorf("store sheet snapshot: marshal rows: %w", errMarshal)
	}

	fetchedAt = fetchedAt.UTC()
	snapshot := models.SheetSnapshot{
		Source:        source,
		SpreadsheetID: target.SpreadsheetID,
		Range:         target.Range,
		Rows:          payload,
		RowCount:      len(rows),
		LastError:     "",
		FetchedAt:     fetchedAt,
		UpdatedAt:     fetchedAt,
	}
	if err := db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "source"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"spreadsheet_id",
			"range",
			"rows",
			"row_count",
			"last_error",
			"fetched_at",
			"updated_at",
		}),
	}).Create(&snapshot).Error; err != nil {
		return fmt.Errorf("store sheet snapshot: upsert: %w", err)
	}
	return nil
}

// RecordFailure stores the failure message on the source's snapshot, keeping
// the previously fetched rows.
func RecordFailure(ctx context.Context, db *gorm.DB, source string, target Target, failure error, at time.Time) error {
	if db == nil {
		return fmt.Errorf("record sheet failure: nil db")
	}
	if failure == nil {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if at.IsZero() {
		at = time.Now()
	}
	at = at.UTC()

	res := db.WithContext(ctx).Model(&models.SheetSnapshot{}).
		Where("source = ?", source).
		Updates(map[string]any{"last_error": failure.Error(), "updated_at": at})
	if res.Error != nil {
		return fmt.Errorf("record sheet failure: update: %w", res.Error)
	}
	if res.RowsAffected > 0 {
		return nil
	}

	snapshot := models.SheetSnapshot{
		Source:        source,
		SpreadsheetID: target.SpreadsheetID,
		Range:         target.Range,
		Rows:          []byte("[]"),
		LastError:     failure.Error(),
		FetchedAt:     time.Time{}.UTC(),
		UpdatedAt:     at,
	}
	if errCreate := db.WithContext(ctx).Create(&snapshot).Error; errCreate != nil {
		return fmt.Errorf("record sheet failure: create: %w", errCreate)
	}
	return nil
}

// ListSnapshots returns every stored snapshot ordered by source.
func ListSnapshots(ctx context.Context, db *gorm.DB) ([]models.SheetSnapshot, error) {
	if db == nil {
		return nil, fmt.Errorf("list sheet snapshots: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var snapshots []models.SheetSnapshot
	if err := db.WithContext(ctx).Order("source ASC").Find(&snapshots).Error; err != nil {
		return nil, fmt.Errorf("list sheet snapshots: %w", err)
	}
	return snapshots, nil
}
