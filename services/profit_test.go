package services

import (
	"math"
	"testing"
)

func approx(got, want, eps float64) bool {
	return math.Abs(got-want) <= eps
}

func TestEstimateProfitRoundTrip(t *testing.T) {
	p := EstimateProfit(50, 100, 100, 0.213, 15)

	if p.TotalCostCNY != 6500 {
		t.Errorf("TotalCostCNY: got %.2f, want 6500", p.TotalCostCNY)
	}
	if !approx(p.TotalCostLocal, 1384.5, 1e-6) {
		t.Errorf("TotalCostLocal: got %.4f, want 1384.5", p.TotalCostLocal)
	}
	if p.RevenueLocal != 10000 {
		t.Errorf("RevenueLocal: got %.2f, want 10000", p.RevenueLocal)
	}
	if !approx(p.GrossProfitLocal, 8615.5, 1e-6) {
		t.Errorf("GrossProfitLocal: got %.4f, want 8615.5", p.GrossProfitLocal)
	}
	if !p.MarginValid || !approx(p.ProfitMarginPercent, 86.155, 1e-6) {
		t.Errorf("ProfitMarginPercent: got %.4f (valid=%v), want 86.155", p.ProfitMarginPercent, p.MarginValid)
	}
	if !p.ROIValid {
		t.Error("ROIValid: got false, want true")
	}
	if !p.BreakEvenReachable || p.BreakEvenQuantity != 14 {
		t.Errorf("BreakEvenQuantity: got %d (reachable=%v), want 14", p.BreakEvenQuantity, p.BreakEvenReachable)
	}
}

func TestEstimateProfitNegativeMargin(t *testing.T) {
	p := EstimateProfit(100, 20, 100, 0.213, 15)

	if p.GrossProfitLocal >= 0 {
		t.Errorf("GrossProfitLocal: got %.2f, want negative", p.GrossProfitLocal)
	}
	if p.BreakEvenReachable {
		t.Error("BreakEvenReachable: got true, want false for negative per-unit margin")
	}
	if p.BreakEvenQuantity != 0 {
		t.Errorf("BreakEvenQuantity: got %d, want 0 when unreachable", p.BreakEvenQuantity)
	}
}

func TestEstimateProfitZeroRevenue(t *testing.T) {
	p := EstimateProfit(50, 0, 100, 0.213, 15)

	if p.MarginValid {
		t.Error("MarginValid: got true, want false when revenue is zero")
	}
	if p.ProfitMarginPercent != 0 {
		t.Errorf("ProfitMarginPercent: got %.2f, want 0", p.ProfitMarginPercent)
	}
	if p.BreakEvenReachable {
		t.Error("BreakEvenReachable: got true, want false when market price is zero")
	}
	if math.IsNaN(p.ProfitMarginPercent) || math.IsNaN(p.ROIPercent) {
		t.Error("NaN leaked out of the estimator")
	}
}

func TestEstimateProfitZeroCost(t *testing.T) {
	p := EstimateProfit(0, 100, 0, 0.213, 0)

	if p.ROIValid {
		t.Error("ROIValid: got true, want false when total cost is zero")
	}
	if math.IsNaN(p.ROIPercent) || math.IsInf(p.ROIPercent, 0) {
		t.Errorf("ROIPercent: got %v, want guarded 0", p.ROIPercent)
	}
}

func TestEstimateProfitDeterministic(t *testing.T) {
	a := EstimateProfit(37.5, 89.9, 250, 0.233, 12)
	b := EstimateProfit(37.5, 89.9, 250, 0.233, 12)
	if a != b {
		t.Error("identical inputs produced different results")
	}
}
