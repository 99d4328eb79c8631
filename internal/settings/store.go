package settings

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"

	"github.com/fixturedesk/leaddesk/internal/models"
	"gorm.io/gorm"
)

var snapshot atomic.Value

func init() {
	snapshot.Store(map[string]json.RawMessage{})
}

// Refresh reloads every setting row into the in-memory snapshot.
func Refresh(ctx context.Context, db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("settings refresh: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var rows []models.Setting
	if errFind := db.WithContext(ctx).Find(&rows).Error; errFind != nil {
		return fmt.Errorf("settings refresh: %w", errFind)
	}
	next := make(map[string]json.RawMessage, len(rows))
	for _, row := range rows {
		next[row.Key] = json.RawMessage(row.Value)
	}
	snapshot.Store(next)
	return nil
}

// Replace swaps the snapshot for the given values.
func Replace(values map[string]json.RawMessage) {
	next := make(map[string]json.RawMessage, len(values))
	for k, v := range values {
		next[k] = v
	}
	snapshot.Store(next)
}

// DBConfigValue returns the raw JSON value for key from the last snapshot.
func DBConfigValue(key string) (json.RawMessage, bool) {
	current, _ := snapshot.Load().(map[string]json.RawMessage)
	raw, ok := current[key]
	if !ok || len(raw) == 0 {
		return nil, false
	}
	return raw, true
}
