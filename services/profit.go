package services

import (
	"math"

	"aunz-product-finder/models"
)

// EstimateProfit computes the cost/margin model for buying quantity
// units at costCNY (plus per-unit shipping, both in CNY) and reselling
// at marketPriceLocal. It is pure and deterministic; every division is
// guarded, so the result never carries NaN or Inf.
//
// The same function backs both the engine's profit sub-score input and
// the ad-hoc "what if I buy N units" calculation exposed to callers.
func EstimateProfit(costCNY, marketPriceLocal float64, quantity int, exchangeRate, shippingPerUnitCNY float64) models.ProfitAnalysis {
	p := models.ProfitAnalysis{
		CostPriceCNY:       costCNY,
		ShippingPerUnitCNY: shippingPerUnitCNY,
		Quantity:           quantity,
		ExchangeRate:       exchangeRate,
		MarketPriceLocal:   marketPriceLocal,
	}

	qty := float64(quantity)
	p.TotalCostCNY = (costCNY + shippingPerUnitCNY) * qty
	p.TotalCostLocal = p.TotalCostCNY * exchangeRate
	p.RevenueLocal = marketPriceLocal * qty
	p.GrossProfitLocal = p.RevenueLocal - p.TotalCostLocal

	if p.RevenueLocal > 0 {
		p.ProfitMarginPercent = p.GrossProfitLocal / p.RevenueLocal * 100
		p.MarginValid = true
	}
	if p.TotalCostLocal > 0 {
		p.ROIPercent = p.GrossProfitLocal / p.TotalCostLocal * 100
		p.ROIValid = true
	}

	// Break-even recovers the full purchase outlay. Only meaningful when
	// each unit sells above its landed cost.
	unitCostLocal := (costCNY + shippingPerUnitCNY) * exchangeRate
	if marketPriceLocal > unitCostLocal && marketPriceLocal > 0 {
		p.BreakEvenQuantity = int(math.Ceil(p.TotalCostLocal / marketPriceLocal))
		p.BreakEvenReachable = true
	}

	return p
}
