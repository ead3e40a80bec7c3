package services

import (
	"aunz-product-finder/config"
	"aunz-product-finder/models"
)

// Trend direction thresholds on the series slope (interest points).
const (
	trendUpThreshold   = 5.0
	trendDownThreshold = -5.0
)

// Normalizer maps heterogeneous raw source responses onto one
// comparable 0–100 scale per signal dimension. Every score is clamped
// to [0,100]; an unavailable source yields the neutral default 0.
type Normalizer struct {
	cfg *config.Config
}

// NewNormalizer creates a Normalizer using the configured scale constants.
func NewNormalizer(cfg *config.Config) *Normalizer {
	return &Normalizer{cfg: cfg}
}

// DemandScore scores total marketplace listing volume. Each set maps
// linearly from 0 listings (0) to the configured saturation count
// (100), then saturates; the per-source scores are averaged so one
// saturated platform cannot mask dead ones.
func (n *Normalizer) DemandScore(sets []*models.ListingSet) float64 {
	var sum float64
	var cnt int
	for _, s := range sets {
		if s == nil {
			continue
		}
		sum += clamp(100 * float64(s.Count) / float64(n.cfg.DemandSaturationCount))
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return clamp(sum / float64(cnt))
}

// TrendScore rewards both high current interest and an upward slope.
// The slope is the mean of the most recent third of points minus the
// mean of the earliest third. An empty or missing series scores 0.
func (n *Normalizer) TrendScore(s *models.InterestSeries) float64 {
	if s == nil || len(s.Points) == 0 {
		return 0
	}
	latest := s.Points[len(s.Points)-1].Value
	slope := seriesSlope(s.Points)
	return clamp(0.7*latest + 0.3*(50+slope))
}

// ProfitScore maps the revenue-based margin (price − landed cost)/price
// onto [0,100]: the configured margin ceiling (80%+ by default) scores
// 100, zero or negative margin scores 0. Missing cost or price data
// scores 0.
func (n *Normalizer) ProfitScore(costCNY, exchangeRate, marketPriceLocal float64) float64 {
	if costCNY <= 0 || marketPriceLocal <= 0 {
		return 0
	}
	costLocal := costCNY * exchangeRate
	marginPct := (marketPriceLocal - costLocal) / marketPriceLocal * 100
	return clamp(marginPct / n.cfg.MarginCeilingPercent * 100)
}

// CompetitionScore is inverse to the total active listing count: zero
// competing listings scores 100, falling linearly to 0 at the
// configured floor count. No usable marketplace data scores 0.
func (n *Normalizer) CompetitionScore(sets []*models.ListingSet) float64 {
	var total int
	var cnt int
	for _, s := range sets {
		if s == nil {
			continue
		}
		total += s.Count
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return clamp(100 * (1 - float64(total)/float64(n.cfg.CompetitionFloorCount)))
}

// MarketPrice derives the target-market selling price as the average of
// the platform price-range averages. Returns 0 when no platform
// reported prices.
func (n *Normalizer) MarketPrice(sets []*models.ListingSet) float64 {
	var sum float64
	var cnt int
	for _, s := range sets {
		if s == nil || s.PriceRange == nil || s.PriceRange.Avg <= 0 {
			continue
		}
		sum += s.PriceRange.Avg
		cnt++
	}
	if cnt == 0 {
		return 0
	}
	return sum / float64(cnt)
}

// DeriveDirection classifies the series slope: up above +5, down below
// −5, flat in between. Series with fewer than two points are flat.
func DeriveDirection(points []models.InterestPoint) string {
	if len(points) < 2 {
		return models.TrendFlat
	}
	slope := seriesSlope(points)
	switch {
	case slope > trendUpThreshold:
		return models.TrendUp
	case slope < trendDownThreshold:
		return models.TrendDown
	default:
		return models.TrendFlat
	}
}

func seriesSlope(points []models.InterestPoint) float64 {
	k := len(points) / 3
	if k == 0 {
		k = 1
	}
	return mean(points[len(points)-k:]) - mean(points[:k])
}

func mean(points []models.InterestPoint) float64 {
	if len(points) == 0 {
		return 0
	}
	var sum float64
	for _, p := range points {
		sum += p.Value
	}
	return sum / float64(len(points))
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
