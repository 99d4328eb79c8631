package quote

import (
	"github.com/fixturedesk/leaddesk/internal/models"
	"github.com/shopspring/decimal"
)

// Fill copies priced totals and lines onto q, replacing its items.
func Fill(q *models.Quotation, discountPercent, taxPercent decimal.Decimal, totals Totals) {
	if q == nil {
		return
	}
	q.DiscountPercent = discountPercent.String()
	q.TaxPercent = taxPercent.String()
	q.Subtotal = totals.Subtotal.StringFixed(2)
	q.Discount = totals.Discount.StringFixed(2)
	q.Tax = totals.Tax.StringFixed(2)
	q.Total = totals.Total.StringFixed(2)

	q.Items = make([]models.QuotationItem, 0, len(totals.Lines))
	for i, line := range totals.Lines {
		q.Items = append(q.Items, models.QuotationItem{
			ProductID:   line.ProductID,
			Description: line.Description,
			Quantity:    line.Quantity.String(),
			UnitPrice:   line.UnitPrice.StringFixed(2),
			LineTotal:   line.LineTotal.StringFixed(2),
			SortOrder:   i,
		})
	}
}
