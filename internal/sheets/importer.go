package sheets

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/fixturedesk/leaddesk/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KindRateCards marks a source whose rows are vendor price lists.
const KindRateCards = "rate-cards"

// ImportResult summarises a rate card import.
type ImportResult struct {
	Imported int `json:"imported"`
	Skipped  int `json:"skipped"`
}

type rateCardRow struct {
	vendor       string
	sku          string
	product      string
	unitPrice    float64
	installPrice float64
	minQuantity  int
}

var headerAliases = map[string]string{
	"vendor":           "vendor",
	"vendor_name":      "vendor",
	"sku":              "sku",
	"product":          "product",
	"product_name":     "product",
	"name":             "product",
	"unit_price":       "unit_price",
	"price":            "unit_price",
	"install_price":    "install_price",
	"installation":     "install_price",
	"min_qty":          "min_qty",
	"minimum_quantity": "min_qty",
}

// parseRateCardRows maps sheet rows to rate card rows. The first row is the
// header; rows with a missing vendor or sku, or an invalid or negative price,
// are skipped.
func parseRateCardRows(rows [][]string) ([]rateCardRow, int, error) {
	if len(rows) == 0 {
		return nil, 0, fmt.Errorf("parse rate cards: empty sheet")
	}
	columns := make(map[string]int)
	for i, cell := range rows[0] {
		name := strings.ToLower(strings.TrimSpace(cell))
		name = strings.ReplaceAll(name, " ", "_")
		if alias, ok := headerAliases[name]; ok {
			if _, seen := columns[alias]; !seen {
				columns[alias] = i
			}
		}
	}
	for _, required := range []string{"vendor", "sku", "unit_price"} {
		if _, ok := columns[required]; !ok {
			return nil, 0, fmt.Errorf("parse rate cards: missing %q column", required)
		}
	}

	cell := func(row []string, column string) string {
		idx, ok := columns[column]
		if !ok || idx >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[idx])
	}

	out := make([]rateCardRow, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		parsed := rateCardRow{
			vendor:  cell(row, "vendor"),
			sku:     strings.ToUpper(cell(row, "sku")),
			product: cell(row, "product"),
		}
		if parsed.vendor == "" || parsed.sku == "" {
			skipped++
			continue
		}
		unit, errUnit := parsePrice(cell(row, "unit_price"))
		install, errInstall := parsePrice(cell(row, "install_price"))
		if errUnit != nil || errInstall != nil {
			skipped++
			continue
		}
		parsed.unitPrice = unit
		parsed.installPrice = install
		if raw := cell(row, "min_qty"); raw != "" {
			qty, errQty := strconv.Atoi(raw)
			if errQty != nil || qty < 0 {
				skipped++
				continue
			}
			parsed.minQuantity = qty
		}
		if parsed.product == "" {
			parsed.product = parsed.sku
		}
		out = append(out, parsed)
	}
	return out, skipped, nil
}

func parsePrice(raw string) (float64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	raw = strings.TrimLeft(raw, "$₹€£ ")
	raw = strings.ReplaceAll(raw, ",", "")
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if value < 0 {
		return 0, fmt.Errorf("negative price %v", value)
	}
	return value, nil
}

// ImportRateCards upserts vendors, products and rate cards from sheet rows.
func ImportRateCards(ctx context.Context, db *gorm.DB, rows [][]string) (ImportResult, error) {
	var result ImportResult
	if db == nil {
		return result, fmt.Errorf("import rate cards: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	parsed, skipped, errParse := parseRateCardRows(rows)
	if errParse != nil {
		return result, errParse
	}
	result.Skipped = skipped

	errTx := db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		vendors := make(map[string]uint64)
		products := make(map[string]uint64)
		for _, row := range parsed {
			vendorID, ok := vendors[row.vendor]
			if !ok {
				vendor := models.Vendor{Name: row.vendor, IsActive: true}
				if err := tx.Where("name = ?", row.vendor).FirstOrCreate(&vendor).Error; err != nil {
					return fmt.Errorf("import rate cards: vendor %s: %w", row.vendor, err)
				}
				vendorID = vendor.ID
				vendors[row.vendor] = vendorID
			}
			productID, ok := products[row.sku]
			if !ok {
				product := models.Product{SKU: row.sku, Name: row.product, Unit: "pc", IsActive: true}
				if err := tx.Where("sku = ?", row.sku).FirstOrCreate(&product).Error; err != nil {
					return fmt.Errorf("import rate cards: product %s: %w", row.sku, err)
				}
				productID = product.ID
				products[row.sku] = productID
			}
			card := models.RateCard{
				VendorID:        vendorID,
				ProductID:       productID,
				UnitPrice:       row.unitPrice,
				InstallPrice:    row.installPrice,
				MinimumQuantity: row.minQuantity,
			}
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "vendor_id"}, {Name: "product_id"}},
				DoUpdates: clause.AssignmentColumns([]string{"unit_price", "install_price", "minimum_quantity", "updated_at"}),
			}).Create(&card).Error; err != nil {
				return fmt.Errorf("import rate cards: upsert %s/%s: %w", row.vendor, row.sku, err)
			}
			result.Imported++
		}
		return nil
	})
	if errTx != nil {
		return ImportResult{}, errTx
	}
	return result, nil
}
