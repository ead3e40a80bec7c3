package sources

import (
	"context"
	"errors"

	"aunz-product-finder/models"
)

// ErrUnavailable is the only error adapters return for transient
// failures (timeout, rate limit, malformed response). The ranking
// engine treats it as a real signal — a zeroed sub-score and an
// availability flag — never as a run failure.
var ErrUnavailable = errors.New("source unavailable")

// ListingSource fetches marketplace listings for a search keyword.
// Implementations must be safe for concurrent calls across categories.
type ListingSource interface {
	ID() string
	ServesMarket(m models.Market) bool
	FetchListings(ctx context.Context, keyword string, market models.Market) (*models.ListingSet, error)
}

// InterestSource fetches a search-interest time series for a keyword.
type InterestSource interface {
	ID() string
	FetchInterest(ctx context.Context, keyword string, market models.Market) (*models.InterestSeries, error)
}

// SupplierSource fetches the representative supplier offer for a
// keyword. maxPriceCNY <= 0 means no price ceiling.
type SupplierSource interface {
	ID() string
	FetchQuote(ctx context.Context, keyword string, maxPriceCNY float64) (*models.SupplierQuote, error)
}

// BestQuote picks the representative offer from a batch: cheapest
// first, ties broken by highest sold count. Zero-priced rows are
// ignored. Returns nil for an empty or all-invalid batch.
func BestQuote(quotes []*models.SupplierQuote) *models.SupplierQuote {
	var best *models.SupplierQuote
	for _, q := range quotes {
		if q == nil || q.UnitPriceCNY <= 0 {
			continue
		}
		if best == nil ||
			q.UnitPriceCNY < best.UnitPriceCNY ||
			(q.UnitPriceCNY == best.UnitPriceCNY && q.SoldCount > best.SoldCount) {
			best = q
		}
	}
	return best
}
