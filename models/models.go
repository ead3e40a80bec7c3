package models

import "time"

// Market is a target consumer market the ranking is computed for.
type Market string

const (
	MarketNZ Market = "NZ"
	MarketAU Market = "AU"
)

// Valid reports whether m is one of the supported markets.
func (m Market) Valid() bool {
	return m == MarketNZ || m == MarketAU
}

// Category is one candidate product line evaluated as a sourcing opportunity.
// The catalog is fixed at process start; entries are never mutated.
type Category struct {
	ID       string
	LabelEN  string
	LabelZH  string   // supplier-side (1688) search label
	Keywords []string // marketplace search keywords, most canonical first
}

// Keyword returns the canonical marketplace search keyword.
func (c Category) Keyword() string {
	if len(c.Keywords) == 0 {
		return ""
	}
	return c.Keywords[0]
}

// PriceRange summarises listing prices observed on one platform.
type PriceRange struct {
	Min float64
	Max float64
	Avg float64
}

// NewPriceRange computes min/max/avg over the given prices, ignoring
// non-positive values. Returns nil when nothing usable remains.
func NewPriceRange(prices []float64) *PriceRange {
	var valid []float64
	for _, p := range prices {
		if p > 0 {
			valid = append(valid, p)
		}
	}
	if len(valid) == 0 {
		return nil
	}

	pr := &PriceRange{Min: valid[0], Max: valid[0]}
	var total float64
	for _, p := range valid {
		total += p
		if p < pr.Min {
			pr.Min = p
		}
		if p > pr.Max {
			pr.Max = p
		}
	}
	pr.Avg = total / float64(len(valid))
	return pr
}

// ListingSet is the raw result of one marketplace fetch for one
// category/market. It lives only for the duration of a ranking run.
type ListingSet struct {
	SourceID   string
	CategoryID string
	Market     Market
	Count      int
	PriceRange *PriceRange
	FetchedAt  time.Time
}

// InterestPoint is one sample of a search-interest time series.
type InterestPoint struct {
	Date  string
	Value float64 // 0..100
}

// Trend directions derived from the series slope.
const (
	TrendUp   = "up"
	TrendFlat = "flat"
	TrendDown = "down"
)

// InterestSeries is a time-indexed search-interest curve for one
// keyword/market. Direction is derived from the points, never sourced.
type InterestSeries struct {
	Keyword   string
	Market    Market
	Points    []InterestPoint
	Direction string
}

// SupplierQuote is the representative supplier offer retained for a
// category: the cheapest match, ties broken by highest sold count.
type SupplierQuote struct {
	Title        string
	UnitPriceCNY float64
	ProductURL   string
	MOQ          int
	SoldCount    int
}

// ScoreBreakdown holds the four normalized sub-scores, each in [0,100].
// An unavailable source contributes 0 to its dimension, never NaN.
type ScoreBreakdown struct {
	Demand      float64
	Trend       float64
	Profit      float64
	Competition float64
}

// ProfitAnalysis is the cost/margin model for one category at a given
// purchase quantity. All derived fields are guarded against division by
// zero: MarginValid/ROIValid are false when the denominator was zero.
type ProfitAnalysis struct {
	CostPriceCNY       float64
	ShippingPerUnitCNY float64
	Quantity           int
	ExchangeRate       float64 // CNY -> local
	MarketPriceLocal   float64

	TotalCostCNY     float64
	TotalCostLocal   float64
	RevenueLocal     float64
	GrossProfitLocal float64

	ProfitMarginPercent float64
	MarginValid         bool
	ROIPercent          float64
	ROIValid            bool

	// BreakEvenQuantity is the number of units that must sell to recover
	// the full purchase outlay. Meaningless when the per-unit margin is
	// not positive; BreakEvenReachable is false in that case.
	BreakEvenQuantity  int
	BreakEvenReachable bool
}

// RankingEntry is one row of the final ranked result. Rank is assigned
// only after the global sort; entries are immutable once built.
type RankingEntry struct {
	Rank          int
	Category      Category
	TotalScore    float64
	Scores        ScoreBreakdown
	PlatformStats map[string]*ListingSet
	SupplierQuote *SupplierQuote // nil when the supplier source had no match
	Profit        ProfitAnalysis
}

// RankingResult is the top-level artifact of one ranking run.
type RankingResult struct {
	Market             Market
	Entries            []*RankingEntry // rank-ascending
	GeneratedAt        time.Time
	ElapsedSeconds     float64
	SourceAvailability map[string]bool
}
