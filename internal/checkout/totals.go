package checkout

import (
	"github.com/shopspring/decimal"

	"github.com/natecorreia/tillpoint-backend/pkg/db/models"
)

// priceLine computes one sale line from the catalog price captured at
// checkout time. Tax is rounded per line to two places; the header totals
// are sums of the rounded lines so receipt arithmetic always adds up.
func priceLine(product models.Product, quantity int64, taxRate decimal.Decimal) models.SaleLine {
	qty := decimal.NewFromInt(quantity)
	subtotal := product.UnitPrice.Mul(qty).Round(2)
	tax := subtotal.Mul(taxRate).Round(2)
	return models.SaleLine{
		ProductID: product.ID,
		SKU:       product.SKU,
		Name:      product.Name,
		Quantity:  quantity,
		UnitPrice: product.UnitPrice,
		UnitCost:  product.CostPrice,
		Subtotal:  subtotal,
		TaxAmount: tax,
		Total:     subtotal.Add(tax),
	}
}

// sumLines folds line amounts into the header totals.
func sumLines(lines []models.SaleLine) (subtotal, tax, total decimal.Decimal) {
	subtotal, tax, total = decimal.Zero, decimal.Zero, decimal.Zero
	for _, line := range lines {
		subtotal = subtotal.Add(line.Subtotal)
		tax = tax.Add(line.TaxAmount)
		total = total.Add(line.Total)
	}
	return subtotal, tax, total
}
