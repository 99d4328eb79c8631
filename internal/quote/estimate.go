package quote

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
)

// Rate is one vendor's price for a product, as shown on the public rate card.
type Rate struct {
	VendorID        uint64  `json:"vendor_id"`
	VendorName      string  `json:"vendor_name"`
	ProductID       uint64  `json:"product_id"`
	SKU             string  `json:"sku"`
	ProductName     string  `json:"product_name"`
	Category        string  `json:"category"`
	Unit            string  `json:"unit"`
	UnitPrice       float64 `json:"unit_price"`
	InstallPrice    float64 `json:"install_price"`
	MinimumQuantity int     `json:"minimum_quantity"`
}

// FixtureLine asks for a quantity of a product.
type FixtureLine struct {
	ProductID uint64 `json:"product_id" binding:"required"`
	Quantity  int    `json:"quantity" binding:"required,gt=0"`
}

// EstimateLine is the cheapest usable rate found for a fixture line.
type EstimateLine struct {
	ProductID    uint64          `json:"product_id"`
	ProductName  string          `json:"product_name"`
	VendorName   string          `json:"vendor_name"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unit_price"`
	InstallPrice decimal.Decimal `json:"install_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
}

// Estimate is a rough price built from rate cards.
type Estimate struct {
	Lines       []EstimateLine  `json:"lines"`
	Unavailable []uint64        `json:"unavailable,omitempty"`
	Total       decimal.Decimal `json:"total"`
}

// BuildEstimate picks, for every line, the rate with the lowest unit plus
// install price whose minimum quantity is met. Products without a usable rate
// are listed as unavailable.
func BuildEstimate(lines []FixtureLine, rates []Rate, includeInstall bool) (Estimate, error) {
	byProduct := make(map[uint64][]Rate)
	for _, rate := range rates {
		byProduct[rate.ProductID] = append(byProduct[rate.ProductID], rate)
	}

	est := Estimate{Lines: make([]EstimateLine, 0, len(lines)), Total: decimal.Zero}
	for i, line := range lines {
		if line.Quantity <= 0 {
			return Estimate{}, fmt.Errorf("%w: line %d quantity must be positive", ErrInvalidLine, i+1)
		}
		candidates := byProduct[line.ProductID]
		sort.SliceStable(candidates, func(a, b int) bool {
			return rateCost(candidates[a], includeInstall).LessThan(rateCost(candidates[b], includeInstall))
		})
		var chosen *Rate
		for idx := range candidates {
			if candidates[idx].MinimumQuantity <= line.Quantity {
				chosen = &candidates[idx]
				break
			}
		}
		if chosen == nil {
			est.Unavailable = append(est.Unavailable, line.ProductID)
			continue
		}

		qty := decimal.NewFromInt(int64(line.Quantity))
		unit := decimal.NewFromFloat(chosen.UnitPrice)
		install := decimal.Zero
		if includeInstall {
			install = decimal.NewFromFloat(chosen.InstallPrice)
		}
		lineTotal := qty.Mul(unit.Add(install)).Round(2)
		est.Lines = append(est.Lines, EstimateLine{
			ProductID:    line.ProductID,
			ProductName:  chosen.ProductName,
			VendorName:   chosen.VendorName,
			Quantity:     line.Quantity,
			UnitPrice:    unit,
			InstallPrice: install,
			LineTotal:    lineTotal,
		})
		est.Total = est.Total.Add(lineTotal)
	}
	return est, nil
}

func rateCost(rate Rate, includeInstall bool) decimal.Decimal {
	cost := decimal.NewFromFloat(rate.UnitPrice)
	if includeInstall {
		cost = cost.Add(decimal.NewFromFloat(rate.InstallPrice))
	}
	return cost
}
