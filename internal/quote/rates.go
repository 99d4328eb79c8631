package quote

import (
	"context"
	"fmt"

	"gorm.io/gorm"
)

// LoadRates reads the public rate card: every rate of an active vendor for
// an active product, ordered by category, product and price.
func LoadRates(ctx context.Context, db *gorm.DB) ([]Rate, error) {
	if db == nil {
		return nil, fmt.Errorf("quote load rates: nil db")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	var rates []Rate
	errFind := db.WithContext(ctx).
		Table("rate_cards").
		Select(`rate_cards.vendor_id AS vendor_id,
			vendors.name AS vendor_name,
			rate_cards.product_id AS product_id,
			products.sku AS sku,
			products.name AS product_name,
			products.category AS category,
			products.unit AS unit,
			rate_cards.unit_price AS unit_price,
			rate_cards.install_price AS install_price,
			rate_cards.minimum_quantity AS minimum_quantity`).
		Joins("JOIN vendors ON vendors.id = rate_cards.vendor_id").
		Joins("JOIN products ON products.id = rate_cards.product_id").
		Where("vendors.is_active = ? AND products.is_active = ?", true, true).
		Order("products.category ASC, products.name ASC, rate_cards.unit_price ASC").
		Scan(&rates).Error
	if errFind != nil {
		return nil, fmt.Errorf("quote load rates: %w", errFind)
	}
	if rates == nil {
		rates = []Rate{}
	}
	return rates, nil
}
