// Package quote prices quotations and rate card estimates with decimal
// arithmetic and renders quotation documents.
package quote

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrInvalidLine is returned for a line with an unusable quantity or price.
var ErrInvalidLine = errors.New("quote: invalid line")

var hundred = decimal.NewFromInt(100)

// LineInput is an unpriced quotation line.
type LineInput struct {
	ProductID   *uint64         `json:"product_id"`
	Description string          `json:"description"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitPrice   decimal.Decimal `json:"unit_price"`
}

// PricedLine is a line with its total.
type PricedLine struct {
	LineInput
	LineTotal decimal.Decimal `json:"line_total"`
}

// Totals is the priced result of a set of lines.
type Totals struct {
	Lines    []PricedLine    `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Tax      decimal.Decimal `json:"tax"`
	Total    decimal.Decimal `json:"total"`
}

// Price totals the lines, applies the discount percentage to the subtotal
// and the tax percentage to the discounted amount. Amounts are rounded to
// two places.
func Price(lines []LineInput, discountPercent, taxPercent decimal.Decimal) (Totals, error) {
	if discountPercent.IsNegative() || discountPercent.GreaterThan(hundred) {
		return Totals{}, fmt.Errorf("quote price: discount %s out of range", discountPercent)
	}
	if taxPercent.IsNegative() {
		return Totals{}, fmt.Errorf("quote price: negative tax %s", taxPercent)
	}

	totals := Totals{Lines: make([]PricedLine, 0, len(lines))}
	subtotal := decimal.Zero
	for i, line := range lines {
		line.Description = strings.TrimSpace(line.Description)
		if line.Description == "" {
			return Totals{}, fmt.Errorf("%w: line %d has no description", ErrInvalidLine, i+1)
		}
		if !line.Quantity.IsPositive() {
			return Totals{}, fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidLine, i+1)
		}
		if line.UnitPrice.IsNegative() {
			return Totals{}, fmt.Errorf("%w: line %d unit price is negative", ErrInvalidLine, i+1)
		}
		lineTotal := line.Quantity.Mul(line.UnitPrice).Round(2)
		subtotal = subtotal.Add(lineTotal)
		totals.Lines = append(totals.Lines, PricedLine{LineInput: line, LineTotal: lineTotal})
	}

	totals.Subtotal = subtotal.Round(2)
	totals.Discount = totals.Subtotal.Mul(discountPercent).Div(hundred).Round(2)
	taxable := totals.Subtotal.Sub(totals.Discount)
	totals.Tax = taxable.Mul(taxPercent).Div(hundred).Round(2)
	totals.Total = taxable.Add(totals.Tax)
	return totals, nil
}

// FormatNumber builds a quotation number such as QT-202610-0042.
func FormatNumber(prefix string, at time.Time, seq int64) string {
	prefix = strings.ToUpper(strings.TrimSpace(prefix))
	if prefix == "" {
		prefix = "QT"
	}
	if seq < 1 {
		seq = 1
	}
	return fmt.Sprintf("%s-%s-%04d", prefix, at.Format("200601"), seq)
}

// ParseAmount parses a stored decimal string, treating blanks as zero.
func ParseAmount(raw string) (decimal.Decimal, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(raw)
}
