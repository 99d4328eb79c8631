package sheets

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(sqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.SheetSnapshot{}, &models.Vendor{}, &models.Product{}, &models.RateCard{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}
	return db
}

// fakeFetcher serves canned rows; a call blocks while its gate is set.
type fakeFetcher struct {
	mu    sync.Mutex
	calls int
	rows  map[string][][]string
	err   error
	gates map[int]chan struct{}
}

func (f *fakeFetcher) Fetch(ctx context.Context, spreadsheetID, _ string) ([][]string, error) {
	f.mu.Lock()
	f.calls++
	call := f.calls
	gate := f.gates[call]
	rows := f.rows[spreadsheetID]
	err := f.err
	f.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if err != nil {
		return nil, err
	}
	return rows, nil
}
