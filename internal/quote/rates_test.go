package quote

import (
	"context"
	"testing"

	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
)

func TestLoadRates_SkipsInactive(t *testing.T) {
	db, err := gorm.Open(sqlite.Open("file:quote_rates?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if errMigrate := db.AutoMigrate(&models.Vendor{}, &models.Product{}, &models.RateCard{}); errMigrate != nil {
		t.Fatalf("migrate: %v", errMigrate)
	}

	acme := models.Vendor{Name: "Acme", IsActive: true}
	gone := models.Vendor{Name: "Gone", IsActive: true}
	panel := models.Product{SKU: "P-1", Name: "Panel", Category: "partitions", Unit: "pc", IsActive: true}
	for _, row := range []any{&acme, &gone, &panel} {
		if errCreate := db.Create(row).Error; errCreate != nil {
			t.Fatalf("create: %v", errCreate)
		}
	}
	if errUpdate := db.Model(&gone).Update("is_active", false).Error; errUpdate != nil {
		t.Fatalf("deactivate vendor: %v", errUpdate)
	}
	cards := []models.RateCard{
		{VendorID: acme.ID, ProductID: panel.ID, UnitPrice: 100, InstallPrice: 10},
		{VendorID: gone.ID, ProductID: panel.ID, UnitPrice: 50},
	}
	if errCreate := db.Create(&cards).Error; errCreate != nil {
		t.Fatalf("create cards: %v", errCreate)
	}

	rates, err := LoadRates(context.Background(), db)
	if err != nil {
		t.Fatalf("load rates: %v", err)
	}
	if len(rates) != 1 {
		t.Fatalf("expected 1 rate, got %d", len(rates))
	}
	if rates[0].VendorName != "Acme" || rates[0].SKU != "P-1" || rates[0].InstallPrice != 10 {
		t.Fatalf("unexpected rate %+v", rates[0])
	}
}
